package database

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-errors/errors"
	"github.com/simplereach/timeutils"
)

// MigrationHistoryIndex is the reserved system index holding one document per
// migration attempt. The leading dot keeps it out of the user index
// namespace.
const MigrationHistoryIndex = ".vsaas_migration_history"

// RollbackOnFailureOutcome records what the automatic restore attempt did
// when a migration failed mid-flight.
type RollbackOnFailureOutcome string

const (
	RollbackOnFailureSucceeded RollbackOnFailureOutcome = "succeeded"
	RollbackOnFailureFailed    RollbackOnFailureOutcome = "failed"
	RollbackOnFailureSkipped   RollbackOnFailureOutcome = "skipped_no_backup"
)

// MigrationResult is the outcome of one migration attempt. It is immutable
// after creation; a later rollback only extends the persisted entry.
type MigrationResult struct {
	Success           bool                     `json:"success"`
	MigrationId       string                   `json:"migrationId"`
	Timestamp         time.Time                `json:"timestamp"`
	DurationMs        int64                    `json:"durationMs"`
	Plan              MigrationPlan            `json:"plan"`
	BackupIndexName   string                   `json:"backupIndexName,omitempty"`
	ErrorMessage      string                   `json:"errorMessage,omitempty"`
	RollbackOnFailure RollbackOnFailureOutcome `json:"rollbackOnFailure,omitempty"`
}

// RollbackStatus is the outcome of an explicit rollback of a recorded
// migration.
type RollbackStatus struct {
	Timestamp    time.Time `json:"timestamp"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// MigrationHistoryEntry is a persisted migration result plus its optional
// rollback outcome. RolledBack is set at most once.
type MigrationHistoryEntry struct {
	MigrationResult
	RolledBack *RollbackStatus `json:"rolledBack,omitempty"`
}

// MigrationHistoryStore persists the audit trail of migration attempts in
// the reserved system index.
type MigrationHistoryStore struct {
	cluster ClusterAPI
}

func NewMigrationHistoryStore(cluster ClusterAPI) *MigrationHistoryStore {
	return &MigrationHistoryStore{cluster: cluster}
}

// historyIndexMapping fixes the mapping of the reserved index. The embedded
// plan is stored but not indexed, so arbitrary field names cannot blow up
// the mapping.
var historyIndexMapping = map[string]any{
	"mappings": map[string]any{
		"properties": map[string]any{
			"migrationId":       map[string]any{"type": "keyword"},
			"timestamp":         map[string]any{"type": "date"},
			"success":           map[string]any{"type": "boolean"},
			"durationMs":        map[string]any{"type": "long"},
			"backupIndexName":   map[string]any{"type": "keyword"},
			"errorMessage":      map[string]any{"type": "text"},
			"rollbackOnFailure": map[string]any{"type": "keyword"},
			"plan":              map[string]any{"type": "object", "enabled": false},
			"rolledBack": map[string]any{
				"properties": map[string]any{
					"timestamp":    map[string]any{"type": "date"},
					"success":      map[string]any{"type": "boolean"},
					"errorMessage": map[string]any{"type": "text"},
				},
			},
		},
	},
}

// Record upserts the entry keyed by its migration id. When the reserved
// index does not exist yet it is created with its fixed mapping before the
// write. Letting the cluster auto-create the index on first write would
// leave it with a dynamic mapping, so existence is checked up front.
func (s *MigrationHistoryStore) Record(ctx context.Context, entry MigrationHistoryEntry) error {
	err := s.ensureHistoryIndex(ctx)
	if err != nil {
		return err
	}

	return s.cluster.IndexDocument(ctx, MigrationHistoryIndex, entry.MigrationId, entry)
}

// Update merges a partial document into the entry with the given migration
// id. It fails when the entry does not exist.
func (s *MigrationHistoryStore) Update(ctx context.Context, migrationId string, partial any) error {
	return s.cluster.UpdateDocument(ctx, MigrationHistoryIndex, migrationId, partial)
}

// Get returns the entry for the migration id, or nil when none is recorded.
func (s *MigrationHistoryStore) Get(ctx context.Context, migrationId string) (*MigrationHistoryEntry, error) {
	exists, err := s.cluster.IndexExists(ctx, MigrationHistoryIndex)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	raw, err := s.cluster.Search(ctx, MigrationHistoryIndex, map[string]any{
		"query": map[string]any{
			"ids": map[string]any{"values": []string{migrationId}},
		},
		"size": 1,
	})
	if err != nil {
		return nil, err
	}

	entries, err := decodeHistoryHits(raw)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	return &entries[0], nil
}

// List returns up to limit entries sorted by timestamp, newest first.
func (s *MigrationHistoryStore) List(ctx context.Context, limit int) ([]MigrationHistoryEntry, error) {
	exists, err := s.cluster.IndexExists(ctx, MigrationHistoryIndex)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []MigrationHistoryEntry{}, nil
	}

	if limit <= 0 {
		limit = 50
	}

	raw, err := s.cluster.Search(ctx, MigrationHistoryIndex, map[string]any{
		"query": map[string]any{"match_all": map[string]any{}},
		"sort":  []map[string]any{{"timestamp": map[string]any{"order": "desc"}}},
		"size":  limit,
	})
	if err != nil {
		return nil, err
	}

	return decodeHistoryHits(raw)
}

func (s *MigrationHistoryStore) ensureHistoryIndex(ctx context.Context) error {
	exists, err := s.cluster.IndexExists(ctx, MigrationHistoryIndex)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return s.cluster.CreateIndex(ctx, MigrationHistoryIndex, historyIndexMapping)
}

// historyDocument mirrors MigrationHistoryEntry with loosely typed
// timestamps: entries written before the layer switched to date-mapped
// fields carry epoch milliseconds instead of RFC3339 strings.
type historyDocument struct {
	Success           bool                     `json:"success"`
	MigrationId       string                   `json:"migrationId"`
	Timestamp         any                      `json:"timestamp"`
	DurationMs        int64                    `json:"durationMs"`
	Plan              MigrationPlan            `json:"plan"`
	BackupIndexName   string                   `json:"backupIndexName,omitempty"`
	ErrorMessage      string                   `json:"errorMessage,omitempty"`
	RollbackOnFailure RollbackOnFailureOutcome `json:"rollbackOnFailure,omitempty"`
	RolledBack        *struct {
		Timestamp    any    `json:"timestamp"`
		Success      bool   `json:"success"`
		ErrorMessage string `json:"errorMessage,omitempty"`
	} `json:"rolledBack,omitempty"`
}

type historySearchResponse struct {
	Hits struct {
		Hits []struct {
			Source historyDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func decodeHistoryHits(raw []byte) ([]MigrationHistoryEntry, error) {
	var response historySearchResponse
	if err := sonic.Unmarshal(raw, &response); err != nil {
		return nil, errors.Errorf("failed to decode history search response: %v", err)
	}

	entries := make([]MigrationHistoryEntry, 0, len(response.Hits.Hits))
	for _, hit := range response.Hits.Hits {
		doc := hit.Source
		entry := MigrationHistoryEntry{
			MigrationResult: MigrationResult{
				Success:           doc.Success,
				MigrationId:       doc.MigrationId,
				Timestamp:         parseHistoryTime(doc.Timestamp),
				DurationMs:        doc.DurationMs,
				Plan:              doc.Plan,
				BackupIndexName:   doc.BackupIndexName,
				ErrorMessage:      doc.ErrorMessage,
				RollbackOnFailure: doc.RollbackOnFailure,
			},
		}

		if doc.RolledBack != nil {
			entry.RolledBack = &RollbackStatus{
				Timestamp:    parseHistoryTime(doc.RolledBack.Timestamp),
				Success:      doc.RolledBack.Success,
				ErrorMessage: doc.RolledBack.ErrorMessage,
			}
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

func parseHistoryTime(value any) time.Time {
	switch v := value.(type) {
	case string:
		parsed, err := timeutils.ParseDateString(v)
		if err != nil {
			return time.Time{}
		}
		return parsed
	case float64:
		// Legacy epoch milliseconds; any JSON number decodes as float64.
		return time.Unix(0, int64(v)*int64(time.Millisecond))
	default:
		return time.Time{}
	}
}

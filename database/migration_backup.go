package database

import (
	"context"
	"log"
	"time"

	"github.com/xompass/vsaas-search/search_errors"
)

// DefaultCopyTimeout bounds the synchronous document copy of backups and
// reindexes when the caller does not supply a timeout.
const DefaultCopyTimeout = time.Hour

// BackupManager snapshots an index (mapping and full data copy) before a
// risky change, so a failed migration can be restored.
type BackupManager struct {
	cluster ClusterAPI
}

func NewBackupManager(cluster ClusterAPI) *BackupManager {
	return &BackupManager{cluster: cluster}
}

// Backup creates a point-in-time copy of the index under a name derived from
// the migration id and blocks until the document copy is confirmed. On any
// failure the partial backup index is removed best-effort and a backup-failed
// error is returned; the caller must abort the migration.
func (m *BackupManager) Backup(ctx context.Context, indexName string, migrationId string, timeout time.Duration) (string, error) {
	backupIndexName := indexName + "_backup_" + migrationId

	if timeout <= 0 {
		timeout = DefaultCopyTimeout
	}

	raw, err := m.cluster.GetMapping(ctx, indexName)
	if err != nil {
		return "", search_errors.BackupFailedError("failed to read mapping of " + indexName + ": " + err.Error())
	}

	live, err := ParseLiveMapping(raw)
	if err != nil {
		return "", search_errors.BackupFailedError("failed to parse mapping of " + indexName + ": " + err.Error())
	}

	// The backup keeps the live mapping as-is, not the declared schema.
	err = m.cluster.CreateIndex(ctx, backupIndexName, map[string]any{
		"mappings": map[string]any{
			"properties": BuildProperties(live),
		},
	})
	if err != nil {
		return "", search_errors.BackupFailedError("failed to create backup index " + backupIndexName + ": " + err.Error())
	}

	if err := m.cluster.Reindex(ctx, indexName, backupIndexName, true, timeout); err != nil {
		if deleteErr := m.cluster.DeleteIndex(ctx, backupIndexName); deleteErr != nil {
			log.Printf("Warning: could not remove partial backup index %s: %v", backupIndexName, deleteErr)
		}
		return "", search_errors.BackupFailedError("failed to copy " + indexName + " into backup: " + err.Error())
	}

	return backupIndexName, nil
}

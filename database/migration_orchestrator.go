package database

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/xompass/vsaas-search/helpers"
	"github.com/xompass/vsaas-search/search_errors"
)

// DryRunMigrationId marks results of migrations that were only simulated.
const DryRunMigrationId = "dry-run"

type MigrateOptions struct {
	// DryRun computes the plan and returns a synthetic success result
	// without touching the cluster or the history.
	DryRun bool

	// Backup snapshots the index before applying the change, enabling
	// automatic restore on failure and explicit rollback later.
	Backup bool

	// WaitForCompletion forwards to the cluster's own wait semantics on
	// document copies. Migrations that do not wait cannot be safely cut
	// over, so this should stay true outside of fire-and-forget tooling.
	WaitForCompletion bool

	// Timeout bounds each synchronous document copy. Zero means the default
	// of one hour. Exceeding it raises a timeout error but does not
	// guarantee the remote operation stopped.
	Timeout time.Duration `validate:"gte=0"`

	// Refresh forces an index refresh after a successful apply so document
	// counts are immediately observable.
	Refresh bool
}

func DefaultMigrateOptions() MigrateOptions {
	return MigrateOptions{
		Backup:            true,
		WaitForCompletion: true,
		Timeout:           helpers.GetEnvDuration("MIGRATION_COPY_TIMEOUT", DefaultCopyTimeout),
	}
}

// EsMigrator drives schema migrations for a single index: plan, optional
// backup, apply (in place or via full reindex), record, and the inverse
// rollback flow. The declared schema is owned by the caller and never
// mutated here.
type EsMigrator struct {
	cluster   ClusterAPI
	indexName string
	schema    SchemaDescriptor
	locker    MigrationLocker
	backup    *BackupManager
	reindex   *ReindexExecutor
	history   *MigrationHistoryStore
}

func NewEsMigrator(cluster ClusterAPI, indexName string, schema SchemaDescriptor, locker MigrationLocker) *EsMigrator {
	if locker == nil {
		locker = NewMemoryMigrationLocker()
	}

	return &EsMigrator{
		cluster:   cluster,
		indexName: indexName,
		schema:    schema,
		locker:    locker,
		backup:    NewBackupManager(cluster),
		reindex:   NewReindexExecutor(cluster),
		history:   NewMigrationHistoryStore(cluster),
	}
}

// PlanMigration fetches the live mapping and computes the change plan. It
// persists nothing. The live mapping is re-fetched on every call; a cached
// mapping would make the diff wrong.
func (m *EsMigrator) PlanMigration(ctx context.Context) (MigrationPlan, error) {
	live := LiveMapping{}

	exists, err := m.cluster.IndexExists(ctx, m.indexName)
	if err != nil {
		return MigrationPlan{}, err
	}

	if exists {
		raw, err := m.cluster.GetMapping(ctx, m.indexName)
		if err != nil {
			return MigrationPlan{}, err
		}

		live, err = ParseLiveMapping(raw)
		if err != nil {
			return MigrationPlan{}, err
		}
	}

	return DiffSchemas(m.indexName, live, m.schema), nil
}

// Migrate applies the declared schema to the index.
//
// The execution is a short saga: plan, validate, optional backup, apply,
// record. Any failure after validation is recorded as a failure entry, a
// best-effort restore from backup is attempted when one exists, and the
// original error is re-raised. A per-index lease guards the whole mutating
// sequence against concurrent migrations of the same index.
func (m *EsMigrator) Migrate(ctx context.Context, opts MigrateOptions) (*MigrationResult, error) {
	if err := optsValidator.Struct(&opts); err != nil {
		return nil, search_errors.ValidationError("invalid migrate options: " + err.Error())
	}

	if opts.DryRun {
		plan, err := m.PlanMigration(ctx)
		if err != nil {
			return nil, err
		}

		return &MigrationResult{
			Success:     true,
			MigrationId: DryRunMigrationId,
			Timestamp:   time.Now().UTC(),
			DurationMs:  0,
			Plan:        plan,
		}, nil
	}

	// The lease must outlive the longest synchronous copy the migration can
	// block on, otherwise a slow but healthy run gets fenced out mid-flight.
	copyTimeout := opts.Timeout
	if copyTimeout <= 0 {
		copyTimeout = DefaultCopyTimeout
	}

	release, err := m.locker.Acquire(ctx, m.indexName, 2*copyTimeout)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now().UTC()
	result := &MigrationResult{
		MigrationId: uuid.New().String(),
		Timestamp:   start,
	}

	err = m.execute(ctx, result, opts)
	result.DurationMs = time.Since(start).Milliseconds()

	if err != nil {
		return m.recordFailure(ctx, result, opts, err)
	}

	result.Success = true
	if recordErr := m.history.Record(ctx, MigrationHistoryEntry{MigrationResult: *result}); recordErr != nil {
		return result, recordErr
	}

	return result, nil
}

func (m *EsMigrator) execute(ctx context.Context, result *MigrationResult, opts MigrateOptions) error {
	plan, err := m.PlanMigration(ctx)
	if err != nil {
		return err
	}
	result.Plan = plan

	// Unsupported types are fatal before any mutating call.
	if err := ValidateSchema(m.schema); err != nil {
		return err
	}

	exists, err := m.cluster.IndexExists(ctx, m.indexName)
	if err != nil {
		return err
	}

	if opts.Backup && exists {
		backupIndexName, err := m.backup.Backup(ctx, m.indexName, result.MigrationId, opts.Timeout)
		if err != nil {
			return err
		}
		result.BackupIndexName = backupIndexName
	}

	switch {
	case !exists:
		// First migration of a brand-new index: create it with the full
		// declared mapping.
		err = m.cluster.CreateIndex(ctx, m.indexName, BuildIndexMapping(m.schema))
	case plan.RequiresReindex:
		err = m.reindex.Apply(ctx, m.indexName, result.MigrationId, m.schema, opts.WaitForCompletion, opts.Timeout)
	case len(plan.AddedFields) > 0:
		err = m.reindex.ApplyAdditive(ctx, m.indexName, plan, m.schema)
	}
	if err != nil {
		return err
	}

	if opts.Refresh {
		if refreshErr := m.cluster.Refresh(ctx, m.indexName); refreshErr != nil {
			log.Printf("Warning: could not refresh %s after migration: %v", m.indexName, refreshErr)
		}
	}

	return nil
}

// recordFailure persists the failure entry and attempts a best-effort
// restore from backup. The restore is never retried and its outcome never
// masks the original error, which is always returned to the caller.
func (m *EsMigrator) recordFailure(ctx context.Context, result *MigrationResult, opts MigrateOptions, cause error) (*MigrationResult, error) {
	result.Success = false
	result.ErrorMessage = cause.Error()

	if result.BackupIndexName == "" {
		result.RollbackOnFailure = RollbackOnFailureSkipped
	} else if restoreErr := m.cluster.Reindex(ctx, result.BackupIndexName, m.indexName, true, opts.Timeout); restoreErr != nil {
		log.Printf("Warning: automatic restore of %s from %s failed: %v", m.indexName, result.BackupIndexName, restoreErr)
		result.RollbackOnFailure = RollbackOnFailureFailed
	} else {
		result.RollbackOnFailure = RollbackOnFailureSucceeded
	}

	if recordErr := m.history.Record(ctx, MigrationHistoryEntry{MigrationResult: *result}); recordErr != nil {
		log.Printf("Warning: could not record failed migration %s: %v", result.MigrationId, recordErr)
	}

	return result, cause
}

// Rollback restores the index from the backup captured by a prior
// migration and marks that migration's history entry as rolled back. A
// second rollback of the same id fails instead of re-mutating the entry.
func (m *EsMigrator) Rollback(ctx context.Context, migrationId string) (*MigrationHistoryEntry, error) {
	entry, err := m.rollbackableEntry(ctx, migrationId)
	if err != nil {
		return nil, err
	}

	indexName := entry.Plan.IndexName
	if indexName == "" {
		indexName = m.indexName
	}

	release, err := m.locker.Acquire(ctx, indexName, DefaultLockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	// A concurrent rollback of the same id may have finished between the
	// first read and the lease, so the entry is re-checked under the lock.
	entry, err = m.rollbackableEntry(ctx, migrationId)
	if err != nil {
		return nil, err
	}

	status := RollbackStatus{
		Timestamp: time.Now().UTC(),
		Success:   true,
	}

	if restoreErr := m.restoreFromBackup(ctx, indexName, entry.BackupIndexName); restoreErr != nil {
		status.Success = false
		status.ErrorMessage = restoreErr.Error()

		if updateErr := m.history.Update(ctx, migrationId, map[string]any{"rolledBack": status}); updateErr != nil {
			log.Printf("Warning: could not record failed rollback of %s: %v", migrationId, updateErr)
		}

		return nil, restoreErr
	}

	if err := m.history.Update(ctx, migrationId, map[string]any{"rolledBack": status}); err != nil {
		return nil, err
	}

	entry.RolledBack = &status
	return entry, nil
}

// rollbackableEntry fetches the history entry and verifies it can still be
// rolled back.
func (m *EsMigrator) rollbackableEntry(ctx context.Context, migrationId string) (*MigrationHistoryEntry, error) {
	entry, err := m.history.Get(ctx, migrationId)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, search_errors.NotFoundError("migration " + migrationId + " not found")
	}
	if entry.RolledBack != nil {
		return nil, search_errors.AlreadyRolledBackError("migration " + migrationId + " was already rolled back")
	}
	if entry.BackupIndexName == "" {
		return nil, search_errors.NoBackupAvailableError("migration " + migrationId + " has no backup to roll back to")
	}

	return entry, nil
}

// restoreFromBackup replaces the index with the content of the backup and
// consumes the backup index.
func (m *EsMigrator) restoreFromBackup(ctx context.Context, indexName string, backupIndexName string) error {
	exists, err := m.cluster.IndexExists(ctx, indexName)
	if err != nil {
		return err
	}

	if exists {
		if err := m.cluster.DeleteIndex(ctx, indexName); err != nil {
			return err
		}
	}

	// Restore the mapping the backup captured, then copy the documents
	// back. Letting the reindex auto-create the index would lose the typed
	// mapping.
	raw, err := m.cluster.GetMapping(ctx, backupIndexName)
	if err != nil {
		return err
	}

	backupMapping, err := ParseLiveMapping(raw)
	if err != nil {
		return err
	}

	err = m.cluster.CreateIndex(ctx, indexName, map[string]any{
		"mappings": map[string]any{
			"properties": BuildProperties(backupMapping),
		},
	})
	if err != nil {
		return err
	}

	if err := m.cluster.Reindex(ctx, backupIndexName, indexName, true, DefaultCopyTimeout); err != nil {
		return err
	}

	return m.cluster.DeleteIndex(ctx, backupIndexName)
}

// GetMigrationHistory returns the recorded migration attempts for the
// cluster, newest first.
func (m *EsMigrator) GetMigrationHistory(ctx context.Context) ([]MigrationHistoryEntry, error) {
	return m.history.List(ctx, 50)
}

// DocumentCount returns the current number of documents in the index.
func (m *EsMigrator) DocumentCount(ctx context.Context) (int64, error) {
	return m.cluster.Count(ctx, m.indexName)
}

// ValidateSchema checks every declared field type, recursing into object and
// nested sub-properties and multi-field definitions.
func ValidateSchema(schema SchemaDescriptor) error {
	return validateFields("", schema)
}

func validateFields(prefix string, fields map[string]FieldDescriptor) error {
	for name, field := range fields {
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}

		if !IsSupportedFieldType(field.Type) {
			return search_errors.ValidationError("unsupported field type \"" + string(field.Type) + "\" for field \"" + path + "\"")
		}

		if err := validateFields(path, field.Properties); err != nil {
			return err
		}

		if err := validateFields(path, field.Fields); err != nil {
			return err
		}
	}

	return nil
}

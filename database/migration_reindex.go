package database

import (
	"context"
	"time"
)

// CurrentAlias is the logical alias repointed during a zero-downtime cutover.
const CurrentAlias = "current"

// ReindexExecutor performs full schema changes through the
// create-temp-index / copy / atomic-cutover / delete-old sequence, and
// additive changes through an in-place mapping update.
type ReindexExecutor struct {
	cluster ClusterAPI
}

func NewReindexExecutor(cluster ClusterAPI) *ReindexExecutor {
	return &ReindexExecutor{cluster: cluster}
}

// Apply rebuilds the index under a temporary name with the declared schema
// and atomically cuts traffic over to it. Each step blocks on completion
// before the next one starts:
//
//  1. create <index>_new_<migrationId> with the declared mapping
//  2. copy all documents into it
//  3. repoint the "current" alias in a single atomic alias update
//  4. delete the original index
//  5. re-create the original name as an alias of the new index
//
// A failure after step 1 leaves orphaned resources behind; the migrator
// handles that by restoring from backup when one exists.
func (e *ReindexExecutor) Apply(ctx context.Context, indexName string, migrationId string, schema SchemaDescriptor, waitForCompletion bool, timeout time.Duration) error {
	tempIndexName := indexName + "_new_" + migrationId

	if timeout <= 0 {
		timeout = DefaultCopyTimeout
	}

	if err := e.cluster.CreateIndex(ctx, tempIndexName, BuildIndexMapping(schema)); err != nil {
		return err
	}

	if err := e.cluster.Reindex(ctx, indexName, tempIndexName, waitForCompletion, timeout); err != nil {
		return err
	}

	// Both actions in one request so the alias never points nowhere or to
	// both indices at once.
	err := e.cluster.UpdateAliases(ctx, []map[string]any{
		{"remove": map[string]any{"index": indexName, "alias": CurrentAlias}},
		{"add": map[string]any{"index": tempIndexName, "alias": CurrentAlias}},
	})
	if err != nil {
		return err
	}

	if err := e.cluster.DeleteIndex(ctx, indexName); err != nil {
		return err
	}

	// Callers that address the index by its old name keep resolving.
	return e.cluster.PutAlias(ctx, tempIndexName, indexName)
}

// ApplyAdditive adds the planned new fields to the existing mapping in
// place. No reindex, no downtime.
func (e *ReindexExecutor) ApplyAdditive(ctx context.Context, indexName string, plan MigrationPlan, schema SchemaDescriptor) error {
	added := make(SchemaDescriptor, len(plan.AddedFields))
	for _, name := range plan.AddedFields {
		field, ok := schema[name]
		if !ok {
			continue
		}
		added[name] = field
	}

	if len(added) == 0 {
		return nil
	}

	return e.cluster.PutMapping(ctx, indexName, BuildProperties(added))
}

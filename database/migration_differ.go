package database

import "sort"

type FieldChangeKind string

const (
	FieldChangeAdded    FieldChangeKind = "added"
	FieldChangeModified FieldChangeKind = "modified"
	FieldChangeDeleted  FieldChangeKind = "deleted"
)

// FieldChange describes what happens to a single field in a migration plan.
type FieldChange struct {
	Type       FieldChangeKind `json:"type"`
	OldType    FieldType       `json:"oldType,omitempty"`
	NewType    FieldType       `json:"newType,omitempty"`
	OldOptions map[string]any  `json:"oldOptions,omitempty"`
	NewOptions map[string]any  `json:"newOptions,omitempty"`
}

// MigrationPlan is the computed difference between the live mapping of an
// index and its declared schema.
type MigrationPlan struct {
	IndexName         string                 `json:"indexName"`
	AddedFields       []string               `json:"addedFields"`
	ModifiedFields    []string               `json:"modifiedFields"`
	DeletedFields     []string               `json:"deletedFields"`
	RequiresReindex   bool                   `json:"requiresReindex"`
	EstimatedDuration string                 `json:"estimatedDuration"`
	Details           map[string]FieldChange `json:"details"`
}

// HasChanges reports whether the plan contains any difference at all.
func (p *MigrationPlan) HasChanges() bool {
	return len(p.AddedFields) > 0 || len(p.ModifiedFields) > 0 || len(p.DeletedFields) > 0
}

// DiffSchemas compares the live mapping of an index against the declared
// schema and returns a migration plan. It is pure and performs no I/O:
// unsupported declared types are not rejected here, that is the migrator's
// job at execution time.
//
// Only modified and deleted fields force a full reindex. Added fields can be
// applied in place with a mapping update, so an additive-only plan never
// requires one.
func DiffSchemas(indexName string, live LiveMapping, schema SchemaDescriptor) MigrationPlan {
	plan := MigrationPlan{
		IndexName:      indexName,
		AddedFields:    []string{},
		ModifiedFields: []string{},
		DeletedFields:  []string{},
		Details:        map[string]FieldChange{},
	}

	for name, declared := range schema {
		current, exists := live[name]
		if !exists {
			plan.AddedFields = append(plan.AddedFields, name)
			plan.Details[name] = FieldChange{
				Type:       FieldChangeAdded,
				NewType:    declared.Type,
				NewOptions: declared.Options,
			}
			continue
		}

		if !structuralEqual(current, declared) {
			plan.ModifiedFields = append(plan.ModifiedFields, name)
			plan.Details[name] = FieldChange{
				Type:       FieldChangeModified,
				OldType:    current.Type,
				NewType:    declared.Type,
				OldOptions: current.Options,
				NewOptions: declared.Options,
			}
		}
	}

	for name, current := range live {
		if _, exists := schema[name]; !exists {
			plan.DeletedFields = append(plan.DeletedFields, name)
			plan.Details[name] = FieldChange{
				Type:       FieldChangeDeleted,
				OldType:    current.Type,
				OldOptions: current.Options,
			}
		}
	}

	// Deterministic output for identical inputs
	sort.Strings(plan.AddedFields)
	sort.Strings(plan.ModifiedFields)
	sort.Strings(plan.DeletedFields)

	plan.RequiresReindex = len(plan.ModifiedFields) > 0 || len(plan.DeletedFields) > 0

	if plan.RequiresReindex {
		plan.EstimatedDuration = "5-10 minutes"
	} else {
		plan.EstimatedDuration = "1-2 minutes"
	}

	return plan
}

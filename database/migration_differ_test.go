package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffSchemasAddedFieldOnly(t *testing.T) {
	live := LiveMapping{
		"name": {Type: FieldTypeKeyword},
		"age":  {Type: FieldTypeInteger},
	}
	schema := SchemaDescriptor{
		"name":        {Type: FieldTypeKeyword},
		"age":         {Type: FieldTypeInteger},
		"description": {Type: FieldTypeText},
	}

	plan := DiffSchemas("products", live, schema)

	assert.Equal(t, "products", plan.IndexName)
	assert.Equal(t, []string{"description"}, plan.AddedFields)
	assert.Empty(t, plan.ModifiedFields)
	assert.Empty(t, plan.DeletedFields)
	assert.False(t, plan.RequiresReindex)
	assert.Equal(t, "1-2 minutes", plan.EstimatedDuration)

	detail := plan.Details["description"]
	assert.Equal(t, FieldChangeAdded, detail.Type)
	assert.Equal(t, FieldTypeText, detail.NewType)
}

func TestDiffSchemasModifiedField(t *testing.T) {
	live := LiveMapping{
		"name": {Type: FieldTypeKeyword},
		"age":  {Type: FieldTypeInteger},
	}
	schema := SchemaDescriptor{
		"name": {Type: FieldTypeKeyword},
		"age":  {Type: FieldTypeLong},
	}

	plan := DiffSchemas("products", live, schema)

	assert.Equal(t, []string{"age"}, plan.ModifiedFields)
	assert.True(t, plan.RequiresReindex)
	assert.Equal(t, "5-10 minutes", plan.EstimatedDuration)

	detail := plan.Details["age"]
	assert.Equal(t, FieldChangeModified, detail.Type)
	assert.Equal(t, FieldTypeInteger, detail.OldType)
	assert.Equal(t, FieldTypeLong, detail.NewType)
}

func TestDiffSchemasDeletedField(t *testing.T) {
	live := LiveMapping{
		"name": {Type: FieldTypeKeyword},
		"age":  {Type: FieldTypeInteger},
	}
	schema := SchemaDescriptor{
		"name": {Type: FieldTypeKeyword},
	}

	plan := DiffSchemas("products", live, schema)

	assert.Equal(t, []string{"age"}, plan.DeletedFields)
	assert.True(t, plan.RequiresReindex)

	detail := plan.Details["age"]
	assert.Equal(t, FieldChangeDeleted, detail.Type)
	assert.Equal(t, FieldTypeInteger, detail.OldType)
}

func TestDiffSchemasReindexInvariant(t *testing.T) {
	cases := []struct {
		name   string
		live   LiveMapping
		schema SchemaDescriptor
	}{
		{
			name:   "no changes",
			live:   LiveMapping{"a": {Type: FieldTypeText}},
			schema: SchemaDescriptor{"a": {Type: FieldTypeText}},
		},
		{
			name:   "added only",
			live:   LiveMapping{"a": {Type: FieldTypeText}},
			schema: SchemaDescriptor{"a": {Type: FieldTypeText}, "b": {Type: FieldTypeKeyword}},
		},
		{
			name:   "modified",
			live:   LiveMapping{"a": {Type: FieldTypeText}},
			schema: SchemaDescriptor{"a": {Type: FieldTypeKeyword}},
		},
		{
			name:   "deleted",
			live:   LiveMapping{"a": {Type: FieldTypeText}, "b": {Type: FieldTypeKeyword}},
			schema: SchemaDescriptor{"a": {Type: FieldTypeText}},
		},
		{
			name:   "added and deleted",
			live:   LiveMapping{"a": {Type: FieldTypeText}},
			schema: SchemaDescriptor{"b": {Type: FieldTypeKeyword}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan := DiffSchemas("products", tc.live, tc.schema)
			expected := len(plan.ModifiedFields) > 0 || len(plan.DeletedFields) > 0
			assert.Equal(t, expected, plan.RequiresReindex)
		})
	}
}

func TestDiffSchemasIsDeterministic(t *testing.T) {
	live := LiveMapping{
		"c": {Type: FieldTypeKeyword},
		"a": {Type: FieldTypeInteger},
		"b": {Type: FieldTypeText},
	}
	schema := SchemaDescriptor{
		"a": {Type: FieldTypeLong},
		"d": {Type: FieldTypeBoolean},
		"e": {Type: FieldTypeDate},
	}

	first := DiffSchemas("products", live, schema)
	second := DiffSchemas("products", live, schema)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"d", "e"}, first.AddedFields)
	assert.Equal(t, []string{"b", "c"}, first.DeletedFields)
}

func TestDiffSchemasComparesNestedProperties(t *testing.T) {
	live := LiveMapping{
		"address": {
			Type: FieldTypeObject,
			Properties: SchemaDescriptor{
				"city": {Type: FieldTypeKeyword},
			},
		},
	}
	schema := SchemaDescriptor{
		"address": {
			Type: FieldTypeObject,
			Properties: SchemaDescriptor{
				"city":    {Type: FieldTypeKeyword},
				"country": {Type: FieldTypeKeyword},
			},
		},
	}

	plan := DiffSchemas("customers", live, schema)

	require.Equal(t, []string{"address"}, plan.ModifiedFields)
	assert.True(t, plan.RequiresReindex)
}

func TestDiffSchemasIgnoresRequiredFlag(t *testing.T) {
	// Required is enforced by the caller at write time; the cluster never
	// persists it, so it must not produce a modification.
	live := LiveMapping{
		"name": {Type: FieldTypeKeyword},
	}
	schema := SchemaDescriptor{
		"name": {Type: FieldTypeKeyword, Required: true},
	}

	plan := DiffSchemas("products", live, schema)

	assert.False(t, plan.HasChanges())
	assert.False(t, plan.RequiresReindex)
}

func TestDiffSchemasUnsupportedTypeIsNotRejected(t *testing.T) {
	// Planning stays side-effect-free; type validation happens at execution.
	live := LiveMapping{}
	schema := SchemaDescriptor{
		"weird": {Type: FieldType("hyperloglog")},
	}

	plan := DiffSchemas("products", live, schema)

	assert.Equal(t, []string{"weird"}, plan.AddedFields)
}

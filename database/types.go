package database

type IModel interface {
	GetIndexName() string
	GetModelName() string
	GetConnectorName() string
	GetId() any
}

// SearchableModel is implemented by models that declare a field schema for
// their search index. Models without a declared schema are skipped by the
// migration layer.
type SearchableModel interface {
	DefineSearchSchema() SchemaDescriptor
}

// FieldType is the set of field kinds the migration layer knows how to apply.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeKeyword  FieldType = "keyword"
	FieldTypeInteger  FieldType = "integer"
	FieldTypeLong     FieldType = "long"
	FieldTypeFloat    FieldType = "float"
	FieldTypeDouble   FieldType = "double"
	FieldTypeBoolean  FieldType = "boolean"
	FieldTypeDate     FieldType = "date"
	FieldTypeObject   FieldType = "object"
	FieldTypeNested   FieldType = "nested"
	FieldTypeGeoPoint FieldType = "geo_point"
	FieldTypeIP       FieldType = "ip"
)

var supportedFieldTypes = map[FieldType]bool{
	FieldTypeText:     true,
	FieldTypeKeyword:  true,
	FieldTypeInteger:  true,
	FieldTypeLong:     true,
	FieldTypeFloat:    true,
	FieldTypeDouble:   true,
	FieldTypeBoolean:  true,
	FieldTypeDate:     true,
	FieldTypeObject:   true,
	FieldTypeNested:   true,
	FieldTypeGeoPoint: true,
	FieldTypeIP:       true,
}

// IsSupportedFieldType reports whether the migration layer can apply the type.
func IsSupportedFieldType(t FieldType) bool {
	return supportedFieldTypes[t]
}

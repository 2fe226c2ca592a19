package database

import (
	"reflect"

	"github.com/go-errors/errors"
	"github.com/valyala/fastjson"
)

// FieldDescriptor describes one declared field of a search index.
type FieldDescriptor struct {
	Type FieldType

	// Required is enforced at write time by the caller. The engine does not
	// persist it in the index mapping, so it is excluded from diffing.
	Required bool

	// Properties holds the sub-fields of object and nested types.
	Properties SchemaDescriptor

	// Fields holds multi-field definitions (e.g. a keyword sub-field of a
	// text field).
	Fields map[string]FieldDescriptor

	// Options holds additional mapping options the engine persists, such as
	// analyzer or date format.
	Options map[string]any
}

// SchemaDescriptor maps field names to their declared descriptors. It is
// owned by the caller and never mutated by the migration layer.
type SchemaDescriptor map[string]FieldDescriptor

// LiveMapping is the field schema currently stored on the cluster for one
// index. It is fetched fresh on every planning call and never cached.
type LiveMapping = SchemaDescriptor

// BuildProperties converts a schema descriptor into the "properties" object
// of an index mapping, recursing into object and nested sub-properties.
func BuildProperties(schema SchemaDescriptor) map[string]any {
	properties := make(map[string]any, len(schema))
	for name, field := range schema {
		properties[name] = buildFieldMapping(field)
	}
	return properties
}

// BuildIndexMapping builds a full create-index body for the schema.
func BuildIndexMapping(schema SchemaDescriptor) map[string]any {
	return map[string]any{
		"mappings": map[string]any{
			"properties": BuildProperties(schema),
		},
	}
}

func buildFieldMapping(field FieldDescriptor) map[string]any {
	mapping := map[string]any{
		"type": string(field.Type),
	}

	for key, value := range field.Options {
		mapping[key] = value
	}

	if len(field.Properties) > 0 {
		mapping["properties"] = BuildProperties(field.Properties)
	}

	if len(field.Fields) > 0 {
		subFields := make(map[string]any, len(field.Fields))
		for name, sub := range field.Fields {
			subFields[name] = buildFieldMapping(sub)
		}
		mapping["fields"] = subFields
	}

	return mapping
}

var mappingPool fastjson.ParserPool

// ParseLiveMapping parses a get-mapping response into a LiveMapping. The
// response is keyed by the concrete index name, which may differ from the
// requested one when the request went through an alias, so the first (and
// only) entry is taken regardless of its key.
func ParseLiveMapping(data []byte) (LiveMapping, error) {
	parser := mappingPool.Get()
	defer mappingPool.Put(parser)

	v, err := parser.ParseBytes(data)
	if err != nil {
		return nil, errors.Errorf("failed to parse mapping response: %v", err)
	}

	root := v.GetObject()
	if root == nil {
		return nil, errors.New("mapping response is not an object")
	}

	mapping := LiveMapping{}
	var visitErr error
	root.Visit(func(key []byte, index *fastjson.Value) {
		properties := index.Get("mappings", "properties")
		if properties == nil {
			return
		}
		parsed, err := parseProperties(properties)
		if err != nil {
			visitErr = err
			return
		}
		mapping = parsed
	})

	if visitErr != nil {
		return nil, visitErr
	}

	return mapping, nil
}

func parseProperties(v *fastjson.Value) (SchemaDescriptor, error) {
	obj := v.GetObject()
	if obj == nil {
		return nil, errors.New("mapping properties is not an object")
	}

	schema := SchemaDescriptor{}
	var visitErr error
	obj.Visit(func(key []byte, fieldValue *fastjson.Value) {
		if visitErr != nil {
			return
		}

		field, err := parseFieldMapping(fieldValue)
		if err != nil {
			visitErr = err
			return
		}
		schema[string(key)] = field
	})

	if visitErr != nil {
		return nil, visitErr
	}

	return schema, nil
}

func parseFieldMapping(v *fastjson.Value) (FieldDescriptor, error) {
	field := FieldDescriptor{}

	obj := v.GetObject()
	if obj == nil {
		return field, errors.New("field mapping is not an object")
	}

	var visitErr error
	obj.Visit(func(key []byte, value *fastjson.Value) {
		if visitErr != nil {
			return
		}

		switch string(key) {
		case "type":
			field.Type = FieldType(value.GetStringBytes())
		case "properties":
			properties, err := parseProperties(value)
			if err != nil {
				visitErr = err
				return
			}
			field.Properties = properties
		case "fields":
			subSchema, err := parseProperties(value)
			if err != nil {
				visitErr = err
				return
			}
			field.Fields = subSchema
		default:
			if field.Options == nil {
				field.Options = map[string]any{}
			}
			field.Options[string(key)] = jsonValueToAny(value)
		}
	})

	if visitErr != nil {
		return field, visitErr
	}

	// The engine omits the type of plain object fields that only carry
	// sub-properties.
	if field.Type == "" && len(field.Properties) > 0 {
		field.Type = FieldTypeObject
	}

	return field, nil
}

func jsonValueToAny(v *fastjson.Value) any {
	switch v.Type() {
	case fastjson.TypeObject:
		result := map[string]any{}
		v.GetObject().Visit(func(key []byte, value *fastjson.Value) {
			result[string(key)] = jsonValueToAny(value)
		})
		return result
	case fastjson.TypeArray:
		values := v.GetArray()
		result := make([]any, 0, len(values))
		for _, item := range values {
			result = append(result, jsonValueToAny(item))
		}
		return result
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNumber:
		return v.GetFloat64()
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	default:
		return nil
	}
}

// structuralEqual compares two field descriptors ignoring options the engine
// does not persist (such as Required).
func structuralEqual(a FieldDescriptor, b FieldDescriptor) bool {
	if a.Type != b.Type {
		return false
	}

	if !schemasEqual(a.Properties, b.Properties) {
		return false
	}

	if !fieldMapsEqual(a.Fields, b.Fields) {
		return false
	}

	return optionsEqual(a.Options, b.Options)
}

// optionsEqual compares option maps tolerating the numeric type mismatch
// between declared values (Go ints) and values parsed back from the cluster
// (always float64).
func optionsEqual(a map[string]any, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}

	for key, valueA := range a {
		valueB, ok := b[key]
		if !ok || !optionValueEqual(valueA, valueB) {
			return false
		}
	}

	return true
}

func optionValueEqual(a any, b any) bool {
	if numA, ok := toFloat(a); ok {
		numB, okB := toFloat(b)
		return okB && numA == numB
	}

	switch valueA := a.(type) {
	case map[string]any:
		valueB, ok := b.(map[string]any)
		return ok && optionsEqual(valueA, valueB)
	case []any:
		valueB, ok := b.([]any)
		if !ok || len(valueA) != len(valueB) {
			return false
		}
		for i := range valueA {
			if !optionValueEqual(valueA[i], valueB[i]) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func schemasEqual(a SchemaDescriptor, b SchemaDescriptor) bool {
	return fieldMapsEqual(a, b)
}

func fieldMapsEqual(a map[string]FieldDescriptor, b map[string]FieldDescriptor) bool {
	if len(a) != len(b) {
		return false
	}

	for name, fieldA := range a {
		fieldB, ok := b[name]
		if !ok || !structuralEqual(fieldA, fieldB) {
			return false
		}
	}

	return true
}

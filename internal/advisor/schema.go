package advisor

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"agrohub/internal/core"
)

var errInvalidResponse = errors.New("invalid model response")

var (
	locationSchema = &core.Schema{
		Fields: []core.SchemaField{
			{Name: "country", Type: core.FieldString},
			{Name: "currencyCode", Type: core.FieldString},
			{Name: "currencySymbol", Type: core.FieldString},
			{Name: "regionName", Type: core.FieldString},
		},
		Required: []string{"country", "currencyCode", "currencySymbol", "regionName"},
	}

	priceSchema = &core.Schema{
		Fields: []core.SchemaField{
			{Name: "suggestedPrice", Type: core.FieldString},
			{Name: "reasoning", Type: core.FieldString},
			{Name: "trends", Type: core.FieldString},
		},
		Required: []string{"suggestedPrice", "reasoning", "trends"},
	}

	weatherSchema = &core.Schema{
		Fields: []core.SchemaField{
			{Name: "outlook", Type: core.FieldString},
			{Name: "advice", Type: core.FieldStringArray},
			{Name: "riskLevel", Type: core.FieldString},
		},
		Required: []string{"outlook", "advice", "riskLevel"},
	}
)

// validate checks that raw is a JSON object whose required fields are present
// with the declared types. Failures wrap errInvalidResponse.
func validate(raw []byte, schema *core.Schema) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty text", errInvalidResponse)
	}
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("%w: not valid JSON", errInvalidResponse)
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return fmt.Errorf("%w: not a JSON object", errInvalidResponse)
	}
	if schema == nil {
		return nil
	}

	types := make(map[string]core.FieldType, len(schema.Fields))
	for _, f := range schema.Fields {
		types[f.Name] = f.Type
	}
	for _, name := range schema.Required {
		v := doc.Get(gjson.Escape(name))
		if !v.Exists() {
			return fmt.Errorf("%w: missing field %q", errInvalidResponse, name)
		}
		if !hasType(v, types[name]) {
			return fmt.Errorf("%w: field %q is not %s", errInvalidResponse, name, types[name])
		}
	}
	return nil
}

func hasType(v gjson.Result, t core.FieldType) bool {
	switch t {
	case core.FieldString:
		return v.Type == gjson.String
	case core.FieldNumber:
		return v.Type == gjson.Number
	case core.FieldBoolean:
		return v.Type == gjson.True || v.Type == gjson.False
	case core.FieldStringArray:
		if !v.IsArray() {
			return false
		}
		for _, item := range v.Array() {
			if item.Type != gjson.String {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Package schema implements schema validation and the default/preview merge
// engine. Merge output is what the editor and the preview surface consume: a
// content object where every declared field has a value and no persisted key
// is ever dropped.
package schema

import "github.com/blocksmith-dev/blocksmith/internal/models"

// Merge combines a resource's field schema with its persisted preview content.
//
// Rules:
//   - keys in preview but not in the schema are preserved verbatim
//   - a declared key that is absent or nil gets the field's default; a
//     repeater without a default gets an empty list
//   - inside repeater items only absent keys are defaulted; an explicit null
//     is preserved as-is (asymmetric with the top level, see the item rule)
//
// The result is always a fresh map; preview is never mutated.
func Merge(fields models.FieldSchema, preview map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(preview)+len(fields))
	for k, v := range preview {
		merged[k] = v
	}

	for key, def := range fields {
		value, present := merged[key]
		if !present || value == nil {
			if def.DefaultValue != nil {
				merged[key] = cloneValue(def.DefaultValue)
			} else if def.Type == models.FieldTypeRepeater {
				merged[key] = []interface{}{}
			}
			continue
		}

		if def.Type == models.FieldTypeRepeater && len(def.ItemSchema) > 0 {
			if items, ok := value.([]interface{}); ok {
				merged[key] = mergeItems(def.ItemSchema, items)
			}
		}
	}

	return merged
}

// mergeItems fills missing item fields from the nested schema's defaults.
// Only truly absent keys are filled; a key present with a null value stays
// null. This preserves the observed behavior of the save pipeline, where
// clearing a repeater field writes an explicit null that must not resurrect
// the default on the next read.
func mergeItems(fields models.FieldSchema, items []interface{}) []interface{} {
	out := make([]interface{}, len(items))
	for i, raw := range items {
		item, ok := raw.(map[string]interface{})
		if !ok {
			out[i] = raw
			continue
		}

		filled := make(map[string]interface{}, len(item))
		for k, v := range item {
			filled[k] = v
		}
		for key, def := range fields {
			value, present := filled[key]
			if !present {
				if def.DefaultValue != nil {
					filled[key] = cloneValue(def.DefaultValue)
				}
				continue
			}
			// Same rule reapplied per nesting level.
			if def.Type == models.FieldTypeRepeater && len(def.ItemSchema) > 0 {
				if nested, ok := value.([]interface{}); ok {
					filled[key] = mergeItems(def.ItemSchema, nested)
				}
			}
		}
		out[i] = filled
	}
	return out
}

// cloneValue deep-copies JSON-shaped values so shared schema defaults are
// never aliased into editable content.
func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[k] = cloneValue(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return v
	}
}

// Package transform holds the relational reshaping steps between pipeline
// layers. The only one so far is Flatten, a one-to-many unnesting operator.
package transform

import (
	"fmt"
	"strings"

	"mallard/pkg/errors"
	"mallard/pkg/models"
)

// Flatten explodes a repeating field into one output row per element. Each
// output row copies the passthrough fields verbatim and promotes the
// element's inner fields to top-level columns; an element that is not a
// record lands under the repeating field's leaf name instead.
//
// A row whose repeating field is empty or null contributes no output rows.
// Every element of every row appears in exactly one output row.
//
// fieldPath addresses the repeating field, dotted for nested records
// ("grades", "address.coord"). Passthrough paths may be dotted too; the
// output column takes the leaf name.
func Flatten(rows []models.Record, fieldPath string, passthrough []string) ([]models.Record, error) {
	out := make([]models.Record, 0, len(rows))

	for i, row := range rows {
		v, found := resolve(row, fieldPath)
		if !found || v == nil {
			continue
		}

		elems, ok := v.([]interface{})
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidInput,
				fmt.Sprintf("field %s of row %d is %T, not a sequence", fieldPath, i, v))
		}

		for _, elem := range elems {
			flat := make(models.Record, len(passthrough)+3)
			for _, p := range passthrough {
				pv, _ := resolve(row, p)
				flat[leaf(p)] = pv
			}

			switch e := elem.(type) {
			case models.Record:
				for k, ev := range e {
					flat[k] = ev
				}
			case map[string]interface{}:
				for k, ev := range e {
					flat[k] = ev
				}
			default:
				flat[leaf(fieldPath)] = elem
			}

			out = append(out, flat)
		}
	}

	return out, nil
}

// resolve walks a dotted path through nested records.
func resolve(row models.Record, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = row
	for _, part := range parts {
		switch m := current.(type) {
		case models.Record:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			current = v
		case map[string]interface{}:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			current = v
		default:
			return nil, false
		}
	}
	return current, true
}

func leaf(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i+1:]
	}
	return path
}

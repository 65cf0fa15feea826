// Package normalize converts loosely-typed source documents into records
// that conform exactly to a declared table schema.
//
// This is the only place that knows about source-native types: ObjectIDs are
// canonicalized to their hex string form and BSON datetimes to calendar
// dates, so nothing downstream ever sees a driver type.
package normalize

import (
	"fmt"
	"math"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"go.mongodb.org/mongo-driver/v2/bson"

	"mallard/pkg/errors"
	"mallard/pkg/models"
)

// Normalizer shapes documents against a fixed schema. It is a pure
// transform: the same document always yields the same record.
type Normalizer struct {
	schema  *arrow.Schema
	sources map[string]string // schema field -> source field, when they differ
}

// New creates a Normalizer for the given schema.
func New(s *arrow.Schema) *Normalizer {
	return &Normalizer{schema: s, sources: map[string]string{}}
}

// WithSourceField maps a schema field to a differently-named source field,
// e.g. the canonical "id" column sourced from the native "_id".
func (n *Normalizer) WithSourceField(field, source string) *Normalizer {
	n.sources[field] = source
	return n
}

// Normalize converts one document into a record matching the schema. Every
// declared field is present in the result; nullable fields absent from the
// document come out nil. A document that cannot be shaped returns a
// SchemaMismatch error naming the offending field path.
func (n *Normalizer) Normalize(doc bson.D) (models.Record, error) {
	values := make(map[string]interface{}, len(doc))
	for _, elem := range doc {
		values[elem.Key] = elem.Value
	}

	rec := make(models.Record, n.schema.NumFields())
	for i := 0; i < n.schema.NumFields(); i++ {
		field := n.schema.Field(i)

		source := field.Name
		if s, ok := n.sources[field.Name]; ok {
			source = s
		}

		v, ok := values[source]
		if !ok || v == nil {
			if !field.Nullable {
				return nil, errors.SchemaMismatchError(field.Name, "required field absent")
			}
			rec[field.Name] = nil
			continue
		}

		coerced, err := coerce(v, field.Type, field.Name)
		if err != nil {
			return nil, err
		}
		rec[field.Name] = coerced
	}

	return rec, nil
}

func coerce(v interface{}, dt arrow.DataType, path string) (interface{}, error) {
	switch dt.ID() {
	case arrow.STRING:
		return coerceString(v, path)
	case arrow.INT32:
		return coerceInt32(v, path)
	case arrow.FLOAT32:
		return coerceFloat32(v, path)
	case arrow.DATE32:
		return coerceDate(v, path)
	case arrow.STRUCT:
		return coerceStruct(v, dt.(*arrow.StructType), path)
	case arrow.LIST:
		return coerceList(v, dt.(*arrow.ListType), path)
	default:
		return nil, errors.New(errors.ErrCodeUnsupportedType,
			fmt.Sprintf("no normalization rule for %s at %s", dt, path))
	}
}

func coerceString(v interface{}, path string) (interface{}, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case bson.ObjectID:
		// Same textual form the source system prints for the identifier.
		return t.Hex(), nil
	default:
		return nil, errors.SchemaMismatchError(path, fmt.Sprintf("expected string, got %T", v))
	}
}

func coerceInt32(v interface{}, path string) (interface{}, error) {
	switch t := v.(type) {
	case int32:
		return t, nil
	case int:
		return int32(t), nil
	case int64:
		if t > math.MaxInt32 || t < math.MinInt32 {
			return nil, errors.SchemaMismatchError(path, fmt.Sprintf("value %d overflows int32", t))
		}
		return int32(t), nil
	case float64:
		if t != math.Trunc(t) {
			return nil, errors.SchemaMismatchError(path, fmt.Sprintf("expected integer, got %v", t))
		}
		return int32(t), nil
	default:
		return nil, errors.SchemaMismatchError(path, fmt.Sprintf("expected integer, got %T", v))
	}
}

func coerceFloat32(v interface{}, path string) (interface{}, error) {
	switch t := v.(type) {
	case float32:
		return t, nil
	case float64:
		return float32(t), nil
	case int:
		return float32(t), nil
	case int32:
		return float32(t), nil
	case int64:
		return float32(t), nil
	default:
		return nil, errors.SchemaMismatchError(path, fmt.Sprintf("expected float, got %T", v))
	}
}

func coerceDate(v interface{}, path string) (interface{}, error) {
	switch t := v.(type) {
	case bson.DateTime:
		return dateOnly(t.Time()), nil
	case time.Time:
		return dateOnly(t), nil
	case string:
		parsed, err := time.Parse("2006-01-02", t)
		if err != nil {
			return nil, errors.SchemaMismatchError(path, fmt.Sprintf("unparseable date %q", t))
		}
		return parsed, nil
	default:
		return nil, errors.SchemaMismatchError(path, fmt.Sprintf("expected date, got %T", v))
	}
}

func coerceStruct(v interface{}, st *arrow.StructType, path string) (interface{}, error) {
	var values map[string]interface{}
	switch t := v.(type) {
	case bson.D:
		values = make(map[string]interface{}, len(t))
		for _, elem := range t {
			values[elem.Key] = elem.Value
		}
	case bson.M:
		values = t
	case map[string]interface{}:
		values = t
	case models.Record:
		values = t
	default:
		return nil, errors.SchemaMismatchError(path, fmt.Sprintf("expected record, got %T", v))
	}

	out := make(models.Record, st.NumFields())
	for i := 0; i < st.NumFields(); i++ {
		field := st.Field(i)
		fieldPath := path + "." + field.Name

		fv, ok := values[field.Name]
		if !ok || fv == nil {
			if !field.Nullable {
				return nil, errors.SchemaMismatchError(fieldPath, "required field absent")
			}
			out[field.Name] = nil
			continue
		}

		coerced, err := coerce(fv, field.Type, fieldPath)
		if err != nil {
			return nil, err
		}
		out[field.Name] = coerced
	}
	return out, nil
}

func coerceList(v interface{}, lt *arrow.ListType, path string) (interface{}, error) {
	var elems []interface{}
	switch t := v.(type) {
	case bson.A:
		elems = t
	case []interface{}:
		elems = t
	default:
		return nil, errors.SchemaMismatchError(path, fmt.Sprintf("expected sequence, got %T", v))
	}

	out := make([]interface{}, len(elems))
	for i, elem := range elems {
		if elem == nil {
			out[i] = nil
			continue
		}
		coerced, err := coerce(elem, lt.Elem(), fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out[i] = coerced
	}
	return out, nil
}

// dateOnly drops the time-of-day component, keeping the UTC calendar date.
func dateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

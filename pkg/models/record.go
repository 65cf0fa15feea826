package models

// Record is a single row of data flowing through the pipeline: field name to
// value, with nested record fields held as Record and repeating fields as
// []interface{}. Column order comes from the schema, never from the map.
type Record map[string]interface{}

// Clone returns a deep copy of the record. Nested records and slices are
// copied; scalar values are shared.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case Record:
		return t.Clone()
	case map[string]interface{}:
		return Record(t).Clone()
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

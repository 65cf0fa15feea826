// Package schema declares the tabular shapes of each pipeline layer.
//
// A table shape is an *arrow.Schema: an ordered list of (name, type,
// nullable) fields with nested struct and list types, which covers the
// primitive | array<T> | record<fields> type tree the normalizer and the
// loader both validate against.
package schema

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// Restaurants is the RAW-layer row shape, one row per source document. The
// id column is the canonical string form of the source object identifier;
// restaurant_id is the business identifier carried by the document itself.
func Restaurants() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.BinaryTypes.String},
		{Name: "address", Type: arrow.StructOf(
			arrow.Field{Name: "building", Type: arrow.BinaryTypes.String, Nullable: true},
			arrow.Field{Name: "coord", Type: arrow.ListOf(arrow.PrimitiveTypes.Float32), Nullable: true},
			arrow.Field{Name: "street", Type: arrow.BinaryTypes.String, Nullable: true},
			arrow.Field{Name: "zipcode", Type: arrow.BinaryTypes.String, Nullable: true},
		), Nullable: true},
		{Name: "borough", Type: arrow.BinaryTypes.String},
		{Name: "cuisine", Type: arrow.BinaryTypes.String},
		{Name: "grades", Type: arrow.ListOf(Grade()), Nullable: true},
		{Name: "name", Type: arrow.BinaryTypes.String},
		{Name: "restaurant_id", Type: arrow.BinaryTypes.String},
	}, nil)
}

// Grade is the element type of the grades sequence.
func Grade() *arrow.StructType {
	return arrow.StructOf(
		arrow.Field{Name: "date", Type: arrow.FixedWidthTypes.Date32, Nullable: true},
		arrow.Field{Name: "grade", Type: arrow.BinaryTypes.String, Nullable: true},
		arrow.Field{Name: "score", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
	)
}

// Notas is the INT-layer row shape: the scalar restaurant fields carried
// through the explode, plus one grade's fields promoted to columns.
func Notas() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "borough", Type: arrow.BinaryTypes.String},
		{Name: "cuisine", Type: arrow.BinaryTypes.String},
		{Name: "name", Type: arrow.BinaryTypes.String},
		{Name: "date", Type: arrow.FixedWidthTypes.Date32, Nullable: true},
		{Name: "grade", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "score", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
	}, nil)
}

// FieldNames returns the ordered column names of a schema.
func FieldNames(s *arrow.Schema) []string {
	names := make([]string, s.NumFields())
	for i := 0; i < s.NumFields(); i++ {
		names[i] = s.Field(i).Name
	}
	return names
}

// PassthroughFields lists the scalar RAW columns the flatten step carries
// into the INT layer unchanged.
func PassthroughFields() []string {
	return []string{"borough", "cuisine", "name"}
}

package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mallard/internal/schema"
	"mallard/internal/testutil"
	"mallard/pkg/errors"
	"mallard/pkg/models"
)

func TestFlattenCompleteness(t *testing.T) {
	rows := testutil.SampleRawRecords()

	flat, err := Flatten(rows, "grades", schema.PassthroughFields())
	require.NoError(t, err)

	// One output row per grade element; empty and null sequences drop out.
	want := 0
	for _, row := range rows {
		if g, ok := row["grades"].([]interface{}); ok {
			want += len(g)
		}
	}
	assert.Len(t, flat, want)
	assert.Equal(t, 3, len(flat))
}

func TestFlattenFieldPreservation(t *testing.T) {
	rows := testutil.SampleRawRecords()

	flat, err := Flatten(rows, "grades", schema.PassthroughFields())
	require.NoError(t, err)

	// Each output row's passthrough fields match the parent row that owned
	// the grade element, keyed here by the unique restaurant name.
	parents := map[string]models.Record{}
	for _, row := range rows {
		parents[row["name"].(string)] = row
	}

	for _, f := range flat {
		parent, ok := parents[f["name"].(string)]
		require.True(t, ok)
		assert.Equal(t, parent["borough"], f["borough"])
		assert.Equal(t, parent["cuisine"], f["cuisine"])
	}
}

func TestFlattenPromotesElementFields(t *testing.T) {
	flat, err := Flatten(testutil.SampleRawRecords(), "grades", schema.PassthroughFields())
	require.NoError(t, err)
	require.NotEmpty(t, flat)

	for _, f := range flat {
		assert.Contains(t, f, "date")
		assert.Contains(t, f, "grade")
		assert.Contains(t, f, "score")
		assert.NotContains(t, f, "grades")
	}
}

func TestFlattenScalarElements(t *testing.T) {
	rows := []models.Record{
		{"name": "X", "tags": []interface{}{"a", "b"}},
	}

	flat, err := Flatten(rows, "tags", []string{"name"})
	require.NoError(t, err)
	require.Len(t, flat, 2)
	assert.Equal(t, "a", flat[0]["tags"])
	assert.Equal(t, "X", flat[0]["name"])
}

func TestFlattenNestedPath(t *testing.T) {
	rows := []models.Record{
		{
			"name": "X",
			"address": models.Record{
				"coord": []interface{}{float32(-73.9), float32(40.6)},
			},
		},
	}

	flat, err := Flatten(rows, "address.coord", []string{"name"})
	require.NoError(t, err)
	require.Len(t, flat, 2)
	assert.Equal(t, float32(-73.9), flat[0]["coord"])
}

func TestFlattenRejectsNonSequence(t *testing.T) {
	rows := []models.Record{{"name": "X", "grades": "oops"}}

	_, err := Flatten(rows, "grades", []string{"name"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetErrorCode(err))
}

func TestFlattenEmptyInput(t *testing.T) {
	flat, err := Flatten(nil, "grades", schema.PassthroughFields())
	require.NoError(t, err)
	assert.Empty(t, flat)
}

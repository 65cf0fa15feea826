package sink

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"

	"mallard/pkg/errors"
	"mallard/pkg/models"
)

// Dialect renders identifiers, column types, and value literals for one SQL
// engine. The loader builds plain SQL text and never binds parameters, so
// nested struct and list values need engine-specific literal syntax.
type Dialect interface {
	Name() string
	QuoteIdent(name string) string
	TypeName(dt arrow.DataType) (string, error)
	Literal(v interface{}, dt arrow.DataType) (string, error)
	// InsertSQL assembles one multi-row insert from already-rendered
	// literals, one inner slice per row in column order.
	InsertSQL(table string, columns []string, rows [][]string) string
}

// DialectFor returns the dialect for a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "", "duckdb":
		return duckdbDialect{}, nil
	case "snowflake":
		return snowflakeDialect{}, nil
	default:
		return nil, errors.ConfigError(fmt.Sprintf("unknown sink driver: %s", driver), "sink.driver").
			WithSuggestions("Supported drivers are duckdb and snowflake")
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func scalarLiteral(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return quoteString(t), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int:
		return strconv.Itoa(t), true
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32), true
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

func asRecord(v interface{}) (models.Record, bool) {
	switch t := v.(type) {
	case models.Record:
		return t, true
	case map[string]interface{}:
		return models.Record(t), true
	default:
		return nil, false
	}
}

// duckdbDialect renders DuckDB syntax: STRUCT(...) column types with
// {'k': v} literals, T[] list types with [...] literals.
type duckdbDialect struct{}

func (duckdbDialect) Name() string { return "duckdb" }

func (duckdbDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d duckdbDialect) TypeName(dt arrow.DataType) (string, error) {
	switch t := dt.(type) {
	case *arrow.StringType:
		return "VARCHAR", nil
	case *arrow.Int32Type:
		return "INTEGER", nil
	case *arrow.Int64Type:
		return "BIGINT", nil
	case *arrow.Float32Type:
		return "FLOAT", nil
	case *arrow.Float64Type:
		return "DOUBLE", nil
	case *arrow.Date32Type:
		return "DATE", nil
	case *arrow.BooleanType:
		return "BOOLEAN", nil
	case *arrow.StructType:
		parts := make([]string, t.NumFields())
		for i, f := range t.Fields() {
			inner, err := d.TypeName(f.Type)
			if err != nil {
				return "", err
			}
			parts[i] = fmt.Sprintf("%s %s", d.QuoteIdent(f.Name), inner)
		}
		return fmt.Sprintf("STRUCT(%s)", strings.Join(parts, ", ")), nil
	case *arrow.ListType:
		inner, err := d.TypeName(t.Elem())
		if err != nil {
			return "", err
		}
		return inner + "[]", nil
	default:
		return "", errors.New(errors.ErrCodeUnsupportedType,
			fmt.Sprintf("no duckdb column type for %s", dt))
	}
}

func (d duckdbDialect) Literal(v interface{}, dt arrow.DataType) (string, error) {
	if v == nil {
		return "NULL", nil
	}

	switch t := dt.(type) {
	case *arrow.Date32Type:
		day, ok := v.(time.Time)
		if !ok {
			return "", errors.New(errors.ErrCodeUnsupportedType,
				fmt.Sprintf("date column got %T", v))
		}
		return fmt.Sprintf("DATE '%s'", day.Format("2006-01-02")), nil
	case *arrow.StructType:
		rec, ok := asRecord(v)
		if !ok {
			return "", errors.New(errors.ErrCodeUnsupportedType,
				fmt.Sprintf("struct column got %T", v))
		}
		parts := make([]string, t.NumFields())
		for i, f := range t.Fields() {
			lit, err := d.Literal(rec[f.Name], f.Type)
			if err != nil {
				return "", err
			}
			parts[i] = fmt.Sprintf("'%s': %s", f.Name, lit)
		}
		return "{" + strings.Join(parts, ", ") + "}", nil
	case *arrow.ListType:
		elems, ok := v.([]interface{})
		if !ok {
			return "", errors.New(errors.ErrCodeUnsupportedType,
				fmt.Sprintf("list column got %T", v))
		}
		parts := make([]string, len(elems))
		for i, e := range elems {
			lit, err := d.Literal(e, t.Elem())
			if err != nil {
				return "", err
			}
			parts[i] = lit
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	}

	if lit, ok := scalarLiteral(v); ok {
		return lit, nil
	}
	return "", errors.New(errors.ErrCodeUnsupportedType,
		fmt.Sprintf("no duckdb literal for %T", v))
}

func (duckdbDialect) InsertSQL(table string, columns []string, rows [][]string) string {
	values := make([]string, len(rows))
	for i, row := range rows {
		values[i] = "(" + strings.Join(row, ", ") + ")"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		table, strings.Join(columns, ", "), strings.Join(values, ", "))
}

// snowflakeDialect renders Snowflake syntax. Nested values become VARIANT
// and ARRAY columns built with OBJECT_CONSTRUCT and ARRAY_CONSTRUCT; those
// functions are not allowed in a VALUES clause, so inserts are emitted as
// INSERT ... SELECT with UNION ALL between rows.
type snowflakeDialect struct{}

func (snowflakeDialect) Name() string { return "snowflake" }

func (snowflakeDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d snowflakeDialect) TypeName(dt arrow.DataType) (string, error) {
	switch dt.(type) {
	case *arrow.StringType:
		return "VARCHAR", nil
	case *arrow.Int32Type, *arrow.Int64Type:
		return "INTEGER", nil
	case *arrow.Float32Type, *arrow.Float64Type:
		return "FLOAT", nil
	case *arrow.Date32Type:
		return "DATE", nil
	case *arrow.BooleanType:
		return "BOOLEAN", nil
	case *arrow.StructType:
		return "VARIANT", nil
	case *arrow.ListType:
		return "ARRAY", nil
	default:
		return "", errors.New(errors.ErrCodeUnsupportedType,
			fmt.Sprintf("no snowflake column type for %s", dt))
	}
}

func (d snowflakeDialect) Literal(v interface{}, dt arrow.DataType) (string, error) {
	if v == nil {
		return "NULL", nil
	}

	switch t := dt.(type) {
	case *arrow.Date32Type:
		day, ok := v.(time.Time)
		if !ok {
			return "", errors.New(errors.ErrCodeUnsupportedType,
				fmt.Sprintf("date column got %T", v))
		}
		return fmt.Sprintf("TO_DATE('%s')", day.Format("2006-01-02")), nil
	case *arrow.StructType:
		rec, ok := asRecord(v)
		if !ok {
			return "", errors.New(errors.ErrCodeUnsupportedType,
				fmt.Sprintf("struct column got %T", v))
		}
		parts := make([]string, 0, t.NumFields()*2)
		for _, f := range t.Fields() {
			lit, err := d.Literal(rec[f.Name], f.Type)
			if err != nil {
				return "", err
			}
			parts = append(parts, quoteString(f.Name), lit)
		}
		return "OBJECT_CONSTRUCT(" + strings.Join(parts, ", ") + ")", nil
	case *arrow.ListType:
		elems, ok := v.([]interface{})
		if !ok {
			return "", errors.New(errors.ErrCodeUnsupportedType,
				fmt.Sprintf("list column got %T", v))
		}
		parts := make([]string, len(elems))
		for i, e := range elems {
			lit, err := d.Literal(e, t.Elem())
			if err != nil {
				return "", err
			}
			parts[i] = lit
		}
		return "ARRAY_CONSTRUCT(" + strings.Join(parts, ", ") + ")", nil
	}

	if lit, ok := scalarLiteral(v); ok {
		return lit, nil
	}
	return "", errors.New(errors.ErrCodeUnsupportedType,
		fmt.Sprintf("no snowflake literal for %T", v))
}

func (snowflakeDialect) InsertSQL(table string, columns []string, rows [][]string) string {
	selects := make([]string, len(rows))
	for i, row := range rows {
		selects[i] = "SELECT " + strings.Join(row, ", ")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) %s",
		table, strings.Join(columns, ", "), strings.Join(selects, " UNION ALL "))
}

package sink

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mallard/internal/schema"
	"mallard/internal/testutil"
	"mallard/pkg/errors"
	"mallard/pkg/models"
)

func newMockService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc, err := NewService(Config{Driver: "duckdb"})
	require.NoError(t, err)
	svc.db = db
	svc.connected = true
	return svc, mock
}

func notasRows() []models.Record {
	return []models.Record{
		{"borough": "Bronx", "cuisine": "Italian", "name": "A", "date": testutil.Day(2014, time.June, 10), "grade": "A", "score": int32(5)},
		{"borough": "Bronx", "cuisine": "Chinese", "name": "B", "date": testutil.Day(2014, time.May, 29), "grade": "A", "score": int32(10)},
	}
}

func TestDialectFor(t *testing.T) {
	tests := []struct {
		driver  string
		want    string
		wantErr bool
	}{
		{driver: "", want: "duckdb"},
		{driver: "duckdb", want: "duckdb"},
		{driver: "snowflake", want: "snowflake"},
		{driver: "sqlite", wantErr: true},
	}

	for _, tt := range tests {
		t.Run("driver "+tt.driver, func(t *testing.T) {
			d, err := DialectFor(tt.driver)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name())
		})
	}
}

func TestDuckDBTypeName(t *testing.T) {
	d := duckdbDialect{}

	tests := []struct {
		name string
		dt   arrow.DataType
		want string
	}{
		{"string", arrow.BinaryTypes.String, "VARCHAR"},
		{"int32", arrow.PrimitiveTypes.Int32, "INTEGER"},
		{"float32", arrow.PrimitiveTypes.Float32, "FLOAT"},
		{"date", arrow.FixedWidthTypes.Date32, "DATE"},
		{"float list", arrow.ListOf(arrow.PrimitiveTypes.Float32), "FLOAT[]"},
		{"grade struct", schema.Grade(), `STRUCT("date" DATE, "grade" VARCHAR, "score" INTEGER)`},
		{"grade list", arrow.ListOf(schema.Grade()), `STRUCT("date" DATE, "grade" VARCHAR, "score" INTEGER)[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.TypeName(tt.dt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDuckDBLiteral(t *testing.T) {
	d := duckdbDialect{}

	tests := []struct {
		name string
		v    interface{}
		dt   arrow.DataType
		want string
	}{
		{"null", nil, arrow.BinaryTypes.String, "NULL"},
		{"string", "Wilken'S Fine Food", arrow.BinaryTypes.String, "'Wilken''S Fine Food'"},
		{"int32", int32(7), arrow.PrimitiveTypes.Int32, "7"},
		{"date", testutil.Day(2014, time.June, 10), arrow.FixedWidthTypes.Date32, "DATE '2014-06-10'"},
		{
			"struct",
			models.Record{"date": testutil.Day(2014, time.June, 10), "grade": "A", "score": int32(5)},
			schema.Grade(),
			"{'date': DATE '2014-06-10', 'grade': 'A', 'score': 5}",
		},
		{
			"list",
			[]interface{}{float32(-73.9), float32(40.6)},
			arrow.ListOf(arrow.PrimitiveTypes.Float32),
			"[-73.9, 40.6]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Literal(tt.v, tt.dt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSnowflakeLiteral(t *testing.T) {
	d := snowflakeDialect{}

	got, err := d.Literal(models.Record{
		"date":  testutil.Day(2014, time.June, 10),
		"grade": "A",
		"score": int32(5),
	}, schema.Grade())
	require.NoError(t, err)
	assert.Equal(t, "OBJECT_CONSTRUCT('date', TO_DATE('2014-06-10'), 'grade', 'A', 'score', 5)", got)

	got, err = d.Literal([]interface{}{int32(1), int32(2)}, arrow.ListOf(arrow.PrimitiveTypes.Int32))
	require.NoError(t, err)
	assert.Equal(t, "ARRAY_CONSTRUCT(1, 2)", got)
}

func TestInsertSQL(t *testing.T) {
	rows := [][]string{{"1", "'a'"}, {"2", "'b'"}}

	assert.Equal(t,
		"INSERT INTO t (x, y) VALUES (1, 'a'), (2, 'b')",
		duckdbDialect{}.InsertSQL("t", []string{"x", "y"}, rows))
	assert.Equal(t,
		"INSERT INTO t (x, y) SELECT 1, 'a' UNION ALL SELECT 2, 'b'",
		snowflakeDialect{}.InsertSQL("t", []string{"x", "y"}, rows))
}

func TestCreateOrReplaceTable(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectExec(`CREATE TABLE int_restaurantes_notas__stage_\S+ \(`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO int_restaurantes_notas__stage_\S+ .+ VALUES`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectBegin()
	mock.ExpectExec(`DROP TABLE IF EXISTS int_restaurantes_notas`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`ALTER TABLE int_restaurantes_notas__stage_\S+ RENAME TO int_restaurantes_notas`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := svc.CreateOrReplaceTable("int_restaurantes_notas", schema.Notas(), notasRows())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrReplaceTableEmpty(t *testing.T) {
	// Zero rows still replaces the table with an empty one.
	svc, mock := newMockService(t)

	mock.ExpectExec(`CREATE TABLE raw_restaurantes__stage_\S+ \(`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectExec(`DROP TABLE IF EXISTS raw_restaurantes`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`ALTER TABLE raw_restaurantes__stage_\S+ RENAME TO raw_restaurantes`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := svc.CreateOrReplaceTable("raw_restaurantes", schema.Restaurants(), nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrReplaceTableInsertFailure(t *testing.T) {
	// A failed load never touches the previous table: the staging table is
	// dropped and the drop-and-rename swap never runs.
	svc, mock := newMockService(t)

	mock.ExpectExec(`CREATE TABLE int_restaurantes_notas__stage_\S+ \(`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO int_restaurantes_notas__stage_\S+`).
		WillReturnError(assert.AnError)
	mock.ExpectExec(`DROP TABLE IF EXISTS int_restaurantes_notas__stage_\S+`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.CreateOrReplaceTable("int_restaurantes_notas", schema.Notas(), notasRows())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeLoadFailure, errors.GetErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrReplaceTableSwapFailure(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectExec(`CREATE TABLE int_restaurantes_notas__stage_\S+ \(`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO int_restaurantes_notas__stage_\S+`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectBegin()
	mock.ExpectExec(`DROP TABLE IF EXISTS int_restaurantes_notas`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()
	mock.ExpectExec(`DROP TABLE IF EXISTS int_restaurantes_notas__stage_\S+`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.CreateOrReplaceTable("int_restaurantes_notas", schema.Notas(), notasRows())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeLoadFailure, errors.GetErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrReplaceTableAs(t *testing.T) {
	svc, mock := newMockService(t)

	selectSQL := "select cuisine as tipo_cozinha, borough as bairro, count(cuisine) as total from raw_restaurantes group by cuisine, borough"
	mock.ExpectExec(regexp.QuoteMeta("CREATE OR REPLACE TABLE exp_restaurantes_tipos_e_bairros AS " + selectSQL)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.CreateOrReplaceTableAs("exp_restaurantes_tipos_e_bairros", selectSQL)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrReplaceView(t *testing.T) {
	svc, mock := newMockService(t)

	selectSQL := "select name as restaurante, round(avg(score), 2) as total from int_restaurantes_notas group by name order by total desc, restaurante asc"
	mock.ExpectExec(regexp.QuoteMeta("CREATE OR REPLACE VIEW exp_restaurantes_media_notas AS " + selectSQL)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.CreateOrReplaceView("exp_restaurantes_media_notas", selectSQL)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM exp_restaurantes_media_notas")).
		WillReturnRows(sqlmock.NewRows([]string{"restaurante", "total"}).
			AddRow([]byte("B"), 10.00).
			AddRow([]byte("A"), 6.00))

	rows, err := svc.Query("SELECT * FROM exp_restaurantes_media_notas")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "B", rows[0]["restaurante"])
	assert.Equal(t, 10.00, rows[0]["total"])
}

func TestTableCount(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM raw_restaurantes")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := svc.TableCount("raw_restaurantes")
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestNotConnected(t *testing.T) {
	svc, err := NewService(Config{Driver: "duckdb"})
	require.NoError(t, err)

	err = svc.CreateOrReplaceTable("raw_restaurantes", schema.Restaurants(), nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConnectionFailed, errors.GetErrorCode(err))
}

func TestSnowflakeDSN(t *testing.T) {
	svc, err := NewService(Config{
		Driver:    "snowflake",
		Account:   "xy12345",
		Username:  "etl",
		Password:  "secret",
		Database:  "ANALYTICS",
		Schema:    "PUBLIC",
		Warehouse: "COMPUTE_WH",
		Role:      "LOADER",
	})
	require.NoError(t, err)
	assert.Equal(t, "etl:secret@xy12345/ANALYTICS/PUBLIC?warehouse=COMPUTE_WH&role=LOADER", svc.dsn())
}

// Package sink writes pipeline tables to an analytical SQL engine over
// database/sql. DuckDB is the default engine; Snowflake is available behind
// the same service through the dialect layer.
package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/google/uuid"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/snowflakedb/gosnowflake"

	"mallard/pkg/errors"
	"mallard/pkg/models"
)

const defaultBatchSize = 500

// Service provides table operations against the configured sink engine.
type Service struct {
	db        *sql.DB
	config    Config
	dialect   Dialect
	connected bool
}

// Config holds sink connection configuration. Path applies to duckdb
// (empty means in-memory); the remaining fields apply to snowflake.
type Config struct {
	Driver    string
	Path      string
	Account   string
	Username  string
	Password  string
	Database  string
	Schema    string
	Warehouse string
	Role      string
	Timeout   time.Duration
	BatchSize int
}

// NewService creates a sink service for the configured driver.
func NewService(config Config) (*Service, error) {
	dialect, err := DialectFor(config.Driver)
	if err != nil {
		return nil, err
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaultBatchSize
	}
	return &Service{config: config, dialect: dialect}, nil
}

// Dialect returns the active SQL dialect.
func (s *Service) Dialect() Dialect {
	return s.dialect
}

// Connect opens the database handle and verifies it with a ping.
func (s *Service) Connect() error {
	if s.connected {
		return nil
	}

	return errors.RetryWithBackoff(context.Background(), func(ctx context.Context) error {
		db, err := sql.Open(s.dialect.Name(), s.dsn())
		if err != nil {
			return errors.ConnectionError("Failed to open sink connection", err).
				WithContext("driver", s.dialect.Name())
		}

		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(10 * time.Minute)

		pingCtx, cancel := s.getContext()
		defer cancel()

		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return errors.ConnectionError("Failed to connect to sink", err).
				WithContext("driver", s.dialect.Name()).
				AsRecoverable()
		}

		s.db = db
		s.connected = true
		return nil
	})
}

// Close closes the database connection.
func (s *Service) Close() error {
	if !s.connected {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	s.connected = false
	return nil
}

func (s *Service) dsn() string {
	if s.dialect.Name() == "snowflake" {
		return fmt.Sprintf("%s:%s@%s/%s/%s?warehouse=%s&role=%s",
			s.config.Username,
			s.config.Password,
			s.config.Account,
			s.config.Database,
			s.config.Schema,
			s.config.Warehouse,
			s.config.Role,
		)
	}
	return s.config.Path
}

func (s *Service) getContext() (context.Context, context.CancelFunc) {
	timeout := s.config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

// CreateOrReplaceTable loads rows into a table of the given shape,
// replacing any previous contents. Rows are written into a staging table
// first and swapped in with a transactional drop-and-rename, so a failure
// at any point leaves the previous table untouched.
func (s *Service) CreateOrReplaceTable(name string, shape *arrow.Schema, rows []models.Record) error {
	if !s.connected {
		return errors.New(errors.ErrCodeConnectionFailed, "Not connected to sink").
			WithSuggestions("Call Connect() before loading tables")
	}

	ctx, cancel := s.getContext()
	defer cancel()

	stage := fmt.Sprintf("%s__stage_%s", name, uuid.NewString()[:8])

	ddl, err := s.createTableSQL(stage, shape)
	if err != nil {
		return errors.LoadFailureError(name, err)
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return errors.LoadFailureError(name, errors.SQLError("Failed to create staging table", ddl, err))
	}

	if err := s.insertRows(ctx, stage, shape, rows); err != nil {
		s.dropTable(ctx, stage)
		return errors.LoadFailureError(name, err)
	}

	if err := s.swapTable(ctx, stage, name); err != nil {
		s.dropTable(ctx, stage)
		return errors.LoadFailureError(name, err)
	}

	return nil
}

// CreateOrReplaceTableAs materializes the result of a select statement.
func (s *Service) CreateOrReplaceTableAs(name, selectSQL string) error {
	if !s.connected {
		return errors.New(errors.ErrCodeConnectionFailed, "Not connected to sink")
	}

	ctx, cancel := s.getContext()
	defer cancel()

	stmt := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS %s", name, selectSQL)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return errors.LoadFailureError(name, errors.SQLError("Failed to create table from query", stmt, err))
	}
	return nil
}

// CreateOrReplaceView defines a view over a select statement.
func (s *Service) CreateOrReplaceView(name, selectSQL string) error {
	if !s.connected {
		return errors.New(errors.ErrCodeConnectionFailed, "Not connected to sink")
	}

	ctx, cancel := s.getContext()
	defer cancel()

	stmt := fmt.Sprintf("CREATE OR REPLACE VIEW %s AS %s", name, selectSQL)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return errors.LoadFailureError(name, errors.SQLError("Failed to create view", stmt, err))
	}
	return nil
}

// Query runs a select statement and returns generic records, one per row.
func (s *Service) Query(query string) ([]models.Record, error) {
	if !s.connected {
		return nil, errors.New(errors.ErrCodeConnectionFailed, "Not connected to sink")
	}

	ctx, cancel := s.getContext()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.SQLError("Query failed", query, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []models.Record
	for rows.Next() {
		values := make([]interface{}, len(cols))
		valuePtrs := make([]interface{}, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		rec := make(models.Record, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				rec[col] = string(b)
			} else {
				rec[col] = values[i]
			}
		}
		out = append(out, rec)
	}

	return out, rows.Err()
}

// TableCount returns the row count of a table or view.
func (s *Service) TableCount(name string) (int64, error) {
	if !s.connected {
		return 0, errors.New(errors.ErrCodeConnectionFailed, "Not connected to sink")
	}

	ctx, cancel := s.getContext()
	defer cancel()

	var count int64
	query := fmt.Sprintf("SELECT count(*) FROM %s", name)
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, errors.SQLError("Failed to count table rows", query, err)
	}
	return count, nil
}

func (s *Service) createTableSQL(name string, shape *arrow.Schema) (string, error) {
	cols := make([]string, shape.NumFields())
	for i := 0; i < shape.NumFields(); i++ {
		f := shape.Field(i)
		typ, err := s.dialect.TypeName(f.Type)
		if err != nil {
			return "", err
		}
		col := fmt.Sprintf("%s %s", s.dialect.QuoteIdent(f.Name), typ)
		if !f.Nullable {
			col += " NOT NULL"
		}
		cols[i] = col
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(cols, ", ")), nil
}

func (s *Service) insertRows(ctx context.Context, table string, shape *arrow.Schema, rows []models.Record) error {
	if len(rows) == 0 {
		return nil
	}

	columns := make([]string, shape.NumFields())
	for i := 0; i < shape.NumFields(); i++ {
		columns[i] = s.dialect.QuoteIdent(shape.Field(i).Name)
	}

	for start := 0; start < len(rows); start += s.config.BatchSize {
		end := start + s.config.BatchSize
		if end > len(rows) {
			end = len(rows)
		}

		batch := make([][]string, 0, end-start)
		for ri, row := range rows[start:end] {
			literals := make([]string, shape.NumFields())
			for i := 0; i < shape.NumFields(); i++ {
				f := shape.Field(i)
				lit, err := s.dialect.Literal(row[f.Name], f.Type)
				if err != nil {
					return errors.Wrap(err, errors.ErrCodeUnsupportedType,
						fmt.Sprintf("row %d column %s", start+ri, f.Name))
				}
				literals[i] = lit
			}
			batch = append(batch, literals)
		}

		stmt := s.dialect.InsertSQL(table, columns, batch)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.SQLError("Failed to insert batch", stmt, err).
				WithContext("table", table).
				WithContext("batch_start", start)
		}
	}

	return nil
}

// swapTable replaces the target with the staging table in one transaction.
func (s *Service) swapTable(ctx context.Context, stage, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to begin swap transaction")
	}

	drop := fmt.Sprintf("DROP TABLE IF EXISTS %s", name)
	if _, err := tx.ExecContext(ctx, drop); err != nil {
		tx.Rollback()
		return errors.SQLError("Failed to drop previous table", drop, err)
	}

	rename := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", stage, name)
	if _, err := tx.ExecContext(ctx, rename); err != nil {
		tx.Rollback()
		return errors.SQLError("Failed to rename staging table", rename, err)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to commit swap transaction")
	}
	return nil
}

func (s *Service) dropTable(ctx context.Context, name string) {
	// Best-effort cleanup; the previous table is already safe.
	_, _ = s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", name))
}

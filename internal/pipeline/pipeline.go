// Package pipeline orchestrates the full extraction run: fetch documents,
// normalize them against the declared schema, load the RAW table, explode
// grades into the INT table, and materialize the EXP aggregations.
package pipeline

import (
	"context"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"go.mongodb.org/mongo-driver/v2/bson"

	"mallard/internal/aggregate"
	"mallard/internal/normalize"
	"mallard/internal/schema"
	"mallard/internal/transform"
	"mallard/pkg/errors"
	"mallard/pkg/models"
)

// DocumentSource is the read surface the pipeline needs from the document
// store.
type DocumentSource interface {
	HasDatabase(ctx context.Context, database string) (bool, error)
	HasCollection(ctx context.Context, database, collection string) (bool, error)
	Find(ctx context.Context, database, collection string, filter interface{}) ([]bson.D, error)
}

// TableSink is the write surface the pipeline needs from the sink engine.
type TableSink interface {
	CreateOrReplaceTable(name string, shape *arrow.Schema, rows []models.Record) error
	CreateOrReplaceTableAs(name, selectSQL string) error
	CreateOrReplaceView(name, selectSQL string) error
	TableCount(name string) (int64, error)
}

// Report summarizes a completed run.
type Report struct {
	Database   string
	Collection string
	Fetched    int
	Skipped    int
	RawRows    int64
	IntRows    int64
	ExpGroups  int64
	Duration   time.Duration
}

// Service runs the pipeline against a source and a sink.
type Service struct {
	source DocumentSource
	sink   TableSink
	config models.Pipeline
}

// NewService creates a pipeline service. Unset config fields fall back to
// the default table names.
func NewService(source DocumentSource, sink TableSink, config models.Pipeline) *Service {
	config.ApplyDefaults()
	return &Service{source: source, sink: sink, config: config}
}

// Run executes the full pipeline. Documents that do not match the schema
// are skipped and counted unless strict mode is on, in which case the
// first mismatch aborts the run before anything is written.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{Database: s.config.Database, Collection: s.config.Collection}

	if ok, err := s.source.HasDatabase(ctx, s.config.Database); err != nil {
		return nil, err
	} else if !ok {
		return nil, errors.EmptyResultError("database", s.config.Database)
	}
	if ok, err := s.source.HasCollection(ctx, s.config.Database, s.config.Collection); err != nil {
		return nil, err
	} else if !ok {
		return nil, errors.EmptyResultError("collection", s.config.Collection)
	}

	docs, err := s.source.Find(ctx, s.config.Database, s.config.Collection, nil)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, errors.EmptyResultError("collection", s.config.Collection)
	}
	report.Fetched = len(docs)

	normalizer := normalize.New(schema.Restaurants()).WithSourceField("id", "_id")
	raw := make([]models.Record, 0, len(docs))
	for _, doc := range docs {
		rec, err := normalizer.Normalize(doc)
		if err != nil {
			if s.config.Strict {
				return nil, err
			}
			report.Skipped++
			continue
		}
		raw = append(raw, rec)
	}

	if err := s.sink.CreateOrReplaceTable(s.config.RawTable, schema.Restaurants(), raw); err != nil {
		return nil, err
	}

	flat, err := transform.Flatten(raw, "grades", schema.PassthroughFields())
	if err != nil {
		return nil, err
	}
	if err := s.sink.CreateOrReplaceTable(s.config.IntTable, schema.Notas(), flat); err != nil {
		return nil, err
	}

	if err := s.sink.CreateOrReplaceTableAs(s.config.ExpCountsTable, aggregate.GroupCountSQL(s.config.RawTable)); err != nil {
		return nil, err
	}
	if err := s.sink.CreateOrReplaceView(s.config.ExpScoresView, aggregate.MeanScoreSQL(s.config.IntTable)); err != nil {
		return nil, err
	}

	if report.RawRows, err = s.sink.TableCount(s.config.RawTable); err != nil {
		return nil, err
	}
	if report.IntRows, err = s.sink.TableCount(s.config.IntTable); err != nil {
		return nil, err
	}
	if report.ExpGroups, err = s.sink.TableCount(s.config.ExpCountsTable); err != nil {
		return nil, err
	}

	report.Duration = time.Since(start)
	return report, nil
}

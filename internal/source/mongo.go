// Package source extracts documents from MongoDB. It is the only package
// that talks to the document store; everything downstream works on the
// normalized records the pipeline derives from what it returns.
package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"mallard/pkg/errors"
)

// Config holds document source connection configuration. URI, when set,
// wins over the Host/Username/Password parts.
type Config struct {
	URI      string
	Host     string
	Username string
	Password string
	Timeout  time.Duration
}

// Service provides read operations against a MongoDB deployment.
type Service struct {
	client    *mongo.Client
	config    Config
	connected bool
}

// NewService creates a document source service.
func NewService(config Config) *Service {
	return &Service{config: config}
}

// BuildURI assembles the connection string. A full mongodb:// or
// mongodb+srv:// URI is used as-is, with <password> placeholders replaced;
// otherwise an Atlas-style SRV URI is built from the host and credentials.
func BuildURI(config Config) string {
	if strings.HasPrefix(config.URI, "mongodb://") || strings.HasPrefix(config.URI, "mongodb+srv://") {
		uri := config.URI
		if config.Password != "" {
			uri = strings.ReplaceAll(uri, "<password>", config.Password)
			uri = strings.ReplaceAll(uri, "<db_password>", config.Password)
		}
		return uri
	}
	return fmt.Sprintf("mongodb+srv://%s:%s@%s/?retryWrites=true&w=majority",
		config.Username, config.Password, config.Host)
}

// Connect establishes and verifies the client connection.
func (s *Service) Connect() error {
	if s.connected {
		return nil
	}

	return errors.RetryWithBackoff(context.Background(), func(ctx context.Context) error {
		client, err := mongo.Connect(options.Client().ApplyURI(BuildURI(s.config)))
		if err != nil {
			return errors.ConnectionError("Failed to create document source client", err).
				WithContext("host", s.config.Host)
		}

		pingCtx, cancel := s.getContext()
		defer cancel()

		if err := client.Ping(pingCtx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return errors.ConnectionError("Failed to reach document source", err).
				WithContext("host", s.config.Host).
				AsRecoverable()
		}

		s.client = client
		s.connected = true
		return nil
	})
}

// Close disconnects the client.
func (s *Service) Close() error {
	if !s.connected {
		return nil
	}

	ctx, cancel := s.getContext()
	defer cancel()

	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	s.connected = false
	return nil
}

func (s *Service) getContext() (context.Context, context.CancelFunc) {
	timeout := s.config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

// ListDatabases returns the database names visible to the client.
func (s *Service) ListDatabases(ctx context.Context) ([]string, error) {
	if !s.connected {
		return nil, errors.New(errors.ErrCodeConnectionFailed, "Not connected to document source")
	}

	names, err := s.client.ListDatabaseNames(ctx, bson.M{})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCursorFailed, "Failed to list databases")
	}
	return names, nil
}

// ListCollections returns the collection names of a database.
func (s *Service) ListCollections(ctx context.Context, database string) ([]string, error) {
	if !s.connected {
		return nil, errors.New(errors.ErrCodeConnectionFailed, "Not connected to document source")
	}

	names, err := s.client.Database(database).ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCursorFailed, "Failed to list collections").
			WithContext("database", database)
	}
	return names, nil
}

// HasDatabase reports whether the named database exists.
func (s *Service) HasDatabase(ctx context.Context, database string) (bool, error) {
	names, err := s.ListDatabases(ctx)
	if err != nil {
		return false, err
	}
	return contains(names, database), nil
}

// HasCollection reports whether the named collection exists in a database.
func (s *Service) HasCollection(ctx context.Context, database, collection string) (bool, error) {
	names, err := s.ListCollections(ctx, database)
	if err != nil {
		return false, err
	}
	return contains(names, collection), nil
}

// Find returns all documents of a collection matching the filter, in
// driver order. A nil filter matches everything.
func (s *Service) Find(ctx context.Context, database, collection string, filter interface{}) ([]bson.D, error) {
	if !s.connected {
		return nil, errors.New(errors.ErrCodeConnectionFailed, "Not connected to document source")
	}
	if filter == nil {
		filter = bson.M{}
	}

	coll := s.client.Database(database).Collection(collection)
	cursor, err := coll.Find(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCursorFailed, "Find failed").
			WithContext("database", database).
			WithContext("collection", collection)
	}
	defer cursor.Close(ctx)

	var docs []bson.D
	for cursor.Next(ctx) {
		var doc bson.D
		if err := cursor.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeCursorFailed, "Failed to decode document")
		}
		docs = append(docs, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCursorFailed, "Cursor iteration failed")
	}
	return docs, nil
}

// SampleOne returns the first document of a collection, for inspection.
func (s *Service) SampleOne(ctx context.Context, database, collection string) (bson.D, error) {
	if !s.connected {
		return nil, errors.New(errors.ErrCodeConnectionFailed, "Not connected to document source")
	}

	coll := s.client.Database(database).Collection(collection)
	var doc bson.D
	if err := coll.FindOne(ctx, bson.M{}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.EmptyResultError("collection", collection)
		}
		return nil, errors.Wrap(err, errors.ErrCodeCursorFailed, "Failed to fetch sample document")
	}
	return doc, nil
}

func contains(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

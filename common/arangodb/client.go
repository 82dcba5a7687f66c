package arangodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/connection"
)

var ErrNotFound = errors.New("document not found")

// Client is a small document API over one ArangoDB database.
type Client interface {
	// Setup operations
	EnsureDatabase(ctx context.Context) error
	EnsureCollections(ctx context.Context, names ...string) error

	// Document operations
	UpsertDocument(ctx context.Context, collection, key string, doc any) error
	GetDocument(ctx context.Context, collection, key string, out any) error
	ListDocuments(ctx context.Context, collection string, opts ListOptions) ([]json.RawMessage, error)

	Close() error
}

type Config struct {
	URL      string
	Username string
	Password string
	Database string
}

func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("arangodb URL is required")
	}
	if c.Username == "" {
		return fmt.Errorf("arangodb username is required")
	}
	if c.Database == "" {
		return fmt.Errorf("arangodb database name is required")
	}
	return nil
}

type client struct {
	conn         connection.Connection
	arangoClient arangodb.Client
	db           arangodb.Database
	cfg          Config
}

func New(ctx context.Context, cfg Config) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("arangodb config: %w", err)
	}

	endpoint := connection.NewRoundRobinEndpoints([]string{cfg.URL})
	conn := connection.NewHttp2Connection(connection.DefaultHTTP2ConfigurationWrapper(endpoint, true))

	auth := connection.NewBasicAuth(cfg.Username, cfg.Password)
	if err := conn.SetAuthentication(auth); err != nil {
		return nil, fmt.Errorf("arangodb auth: %w", err)
	}

	return &client{
		conn:         conn,
		arangoClient: arangodb.NewClient(conn),
		cfg:          cfg,
	}, nil
}

func (c *client) Close() error {
	return nil
}

func (c *client) EnsureDatabase(ctx context.Context) error {
	start := time.Now()

	exists, err := c.arangoClient.DatabaseExists(ctx, c.cfg.Database)
	if err != nil {
		return fmt.Errorf("check database exists: %w", err)
	}

	if !exists {
		_, err = c.arangoClient.CreateDatabase(ctx, c.cfg.Database, nil)
		if err != nil {
			return fmt.Errorf("create database: %w", err)
		}
		slog.InfoContext(ctx, "arangodb database created",
			"database", c.cfg.Database,
			"duration_ms", time.Since(start).Milliseconds())
	}

	db, err := c.arangoClient.GetDatabase(ctx, c.cfg.Database, nil)
	if err != nil {
		return fmt.Errorf("get database: %w", err)
	}
	c.db = db

	return nil
}

func (c *client) EnsureCollections(ctx context.Context, names ...string) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized, call EnsureDatabase first")
	}

	for _, name := range names {
		exists, err := c.db.CollectionExists(ctx, name)
		if err != nil {
			return fmt.Errorf("check collection %s exists: %w", name, err)
		}
		if exists {
			continue
		}

		colType := arangodb.CollectionTypeDocument
		if _, err := c.db.CreateCollectionV2(ctx, name, &arangodb.CreateCollectionPropertiesV2{Type: &colType}); err != nil {
			return fmt.Errorf("create collection %s: %w", name, err)
		}
		slog.InfoContext(ctx, "arangodb collection created", "collection", name)
	}

	return nil
}

// UpsertDocument stores doc under key, replacing any existing document.
func (c *client) UpsertDocument(ctx context.Context, collection, key string, doc any) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized")
	}

	query := `
		UPSERT { _key: @key }
			INSERT MERGE(@doc, { _key: @key })
			REPLACE MERGE(@doc, { _key: @key })
			IN @@collection
	`
	cursor, err := c.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]any{
			"@collection": collection,
			"key":         key,
			"doc":         doc,
		},
	})
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, key, err)
	}
	return cursor.Close()
}

func (c *client) GetDocument(ctx context.Context, collection, key string, out any) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized")
	}

	query := `
		FOR d IN @@collection
			FILTER d._key == @key
			LIMIT 1
			RETURN UNSET(d, "_id", "_key", "_rev")
	`
	cursor, err := c.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]any{
			"@collection": collection,
			"key":         key,
		},
	})
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", collection, key, err)
	}
	defer cursor.Close()

	if !cursor.HasMore() {
		return ErrNotFound
	}
	if _, err := cursor.ReadDocument(ctx, out); err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	return nil
}

// ListOptions orders and bounds ListDocuments.
type ListOptions struct {
	SortField  string
	Descending bool
	Limit      int
}

func (c *client) ListDocuments(ctx context.Context, collection string, opts ListOptions) ([]json.RawMessage, error) {
	if c.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	start := time.Now()

	direction := "ASC"
	if opts.Descending {
		direction = "DESC"
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	bindVars := map[string]any{
		"@collection": collection,
		"limit":       limit,
	}
	sortClause := ""
	if opts.SortField != "" {
		sortClause = "SORT d[@field] " + direction
		bindVars["field"] = opts.SortField
	}

	query := fmt.Sprintf(`
		FOR d IN @@collection
			%s
			LIMIT @limit
			RETURN UNSET(d, "_id", "_key", "_rev")
	`, sortClause)

	cursor, err := c.db.Query(ctx, query, &arangodb.QueryOptions{BindVars: bindVars})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer cursor.Close()

	var docs []json.RawMessage
	for cursor.HasMore() {
		var doc json.RawMessage
		if _, err := cursor.ReadDocument(ctx, &doc); err != nil {
			return nil, fmt.Errorf("read document: %w", err)
		}
		docs = append(docs, doc)
	}

	slog.DebugContext(ctx, "arangodb list completed",
		"collection", collection,
		"results", len(docs),
		"duration_ms", time.Since(start).Milliseconds())

	return docs, nil
}

// Package pgstore is a domain.DocumentStore backed by PostgreSQL. All
// collections share one table keyed by (collection, id) with the document
// body held as JSONB.
package pgstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adfharrison1/go-securedocs/pkg/domain"
)

var _ domain.DocumentStore = (*Store)(nil)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT  NOT NULL,
	id         TEXT  NOT NULL,
	body       JSONB NOT NULL,
	PRIMARY KEY (collection, id)
)`

type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pool for dsn, pings it and creates the documents table if
// it does not exist.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	s := New(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool. Close closes it.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the documents table.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) FindByID(ctx context.Context, collName, docID string) (domain.Document, error) {
	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM documents WHERE collection = $1 AND id = $2`,
		collName, docID,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrNotFound, collName, docID)
	}
	if err != nil {
		return nil, domain.StorageFault("find", err)
	}

	var doc domain.Document
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, domain.StorageFault("find", fmt.Errorf("decode %s/%s: %w", collName, docID, err))
	}
	return doc, nil
}

func (s *Store) Insert(ctx context.Context, collName string, doc domain.Document) error {
	docID, ok := doc.ID()
	if !ok || docID == "" {
		return fmt.Errorf("insert into %s: document has no string %s", collName, domain.IDField)
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return domain.StorageFault("insert", err)
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3)
		 ON CONFLICT (collection, id) DO NOTHING`,
		collName, docID, body,
	)
	if err != nil {
		return domain.StorageFault("insert", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s/%s", domain.ErrDuplicateID, collName, docID)
	}
	return nil
}

func (s *Store) UpdateFields(ctx context.Context, collName, docID string, fields domain.Document) error {
	body, err := json.Marshal(fields.Without(domain.IDField))
	if err != nil {
		return domain.StorageFault("update", err)
	}

	// || replaces top-level keys only, which is exactly a partial update
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET body = body || $3::jsonb WHERE collection = $1 AND id = $2`,
		collName, docID, body,
	)
	if err != nil {
		return domain.StorageFault("update", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s/%s", domain.ErrNotFound, collName, docID)
	}
	return nil
}

func (s *Store) DeleteByID(ctx context.Context, collName, docID string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collName, docID,
	)
	if err != nil {
		return 0, domain.StorageFault("delete", err)
	}
	return tag.RowsAffected(), nil
}

// Truncate removes every document from every collection.
func (s *Store) Truncate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE documents`)
	return err
}

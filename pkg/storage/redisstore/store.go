// Package redisstore is a domain.DocumentStore backed by Redis. Each document
// is a hash at <prefix><collection>:<id> whose fields hold JSON-encoded values.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/adfharrison1/go-securedocs/pkg/domain"
)

var _ domain.DocumentStore = (*Store)(nil)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "securedocs:"

// HSET only if the key does not exist yet. Returns 1 on write, 0 otherwise.
var insertScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

// HSET only if the key already exists. Returns 1 on write, 0 otherwise.
var updateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
if #ARGV > 0 then
	redis.call('HSET', KEYS[1], unpack(ARGV))
end
return 1
`)

type Store struct {
	client *redis.Client
	prefix string
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix replaces DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// Connect parses a redis:// URL and pings the server before returning.
func Connect(ctx context.Context, url string, opts ...Option) (*Store, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return New(client, opts...), nil
}

// New wraps an existing client. Close closes it.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(collName, docID string) string {
	return s.prefix + collName + ":" + docID
}

func (s *Store) FindByID(ctx context.Context, collName, docID string) (domain.Document, error) {
	fields, err := s.client.HGetAll(ctx, s.key(collName, docID)).Result()
	if err != nil {
		return nil, domain.StorageFault("find", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrNotFound, collName, docID)
	}

	doc := make(domain.Document, len(fields))
	for field, encoded := range fields {
		value, err := decodeField(encoded)
		if err != nil {
			return nil, domain.StorageFault("find", fmt.Errorf("decode %s/%s field %s: %w", collName, docID, field, err))
		}
		doc[field] = value
	}
	return doc, nil
}

// decodeField reverses encodeFields for one value, keeping numbers exact.
func decodeField(encoded string) (interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(encoded))
	dec.UseNumber()
	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	return value, nil
}

func (s *Store) Insert(ctx context.Context, collName string, doc domain.Document) error {
	docID, ok := doc.ID()
	if !ok || docID == "" {
		return fmt.Errorf("insert into %s: document has no string %s", collName, domain.IDField)
	}
	args, err := encodeFields(doc)
	if err != nil {
		return domain.StorageFault("insert", err)
	}

	written, err := insertScript.Run(ctx, s.client, []string{s.key(collName, docID)}, args...).Int()
	if err != nil {
		return domain.StorageFault("insert", err)
	}
	if written == 0 {
		return fmt.Errorf("%w: %s/%s", domain.ErrDuplicateID, collName, docID)
	}
	return nil
}

func (s *Store) UpdateFields(ctx context.Context, collName, docID string, fields domain.Document) error {
	args, err := encodeFields(fields.Without(domain.IDField))
	if err != nil {
		return domain.StorageFault("update", err)
	}

	written, err := updateScript.Run(ctx, s.client, []string{s.key(collName, docID)}, args...).Int()
	if err != nil {
		return domain.StorageFault("update", err)
	}
	if written == 0 {
		return fmt.Errorf("%w: %s/%s", domain.ErrNotFound, collName, docID)
	}
	return nil
}

func (s *Store) DeleteByID(ctx context.Context, collName, docID string) (int64, error) {
	n, err := s.client.Del(ctx, s.key(collName, docID)).Result()
	if err != nil {
		return 0, domain.StorageFault("delete", err)
	}
	return n, nil
}

// encodeFields flattens doc into HSET arguments: field, json(value), ...
func encodeFields(doc domain.Document) ([]interface{}, error) {
	args := make([]interface{}, 0, len(doc)*2)
	for field, value := range doc {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode field %s: %w", field, err)
		}
		args = append(args, field, string(encoded))
	}
	return args, nil
}

package domain

//go:generate mockgen -source=storage.go -destination=mocks/mock_storage.go -package=mocks DocumentStore

import "context"

// DocumentStore is the persistence contract the collection handlers depend on.
// Records are addressed by collection name and identifier only. Every single
// call must be atomic at the storage layer.
type DocumentStore interface {
	// FindByID returns the stored document or an error wrapping ErrNotFound.
	FindByID(ctx context.Context, collName, docID string) (Document, error)
	// Insert stores doc, which must carry its _id. Returns ErrDuplicateID if
	// the identifier is already taken.
	Insert(ctx context.Context, collName string, doc Document) error
	// UpdateFields replaces only the supplied fields. The _id field is never
	// overwritten. Returns ErrNotFound if the document does not exist.
	UpdateFields(ctx context.Context, collName, docID string, fields Document) error
	// DeleteByID removes the document and reports how many were removed (0 or 1).
	DeleteByID(ctx context.Context, collName, docID string) (int64, error)
}

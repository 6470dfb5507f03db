package storage

import (
	"context"
	"fmt"
	"log"

	"github.com/adfharrison1/go-securedocs/pkg/domain"
)

// FindByID retrieves a specific document by its ID
func (se *StorageEngine) FindByID(_ context.Context, collName, docID string) (domain.Document, error) {
	coll := se.getCollection(collName)
	if coll == nil {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrNotFound, collName, docID)
	}

	coll.mu.RLock()
	defer coll.mu.RUnlock()

	doc, exists := coll.docs[docID]
	if !exists {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrNotFound, collName, docID)
	}
	return doc.Clone(), nil
}

// Insert stores a document under the _id it carries
func (se *StorageEngine) Insert(_ context.Context, collName string, doc domain.Document) error {
	docID, ok := doc.ID()
	if !ok || docID == "" {
		return fmt.Errorf("insert into %s: document has no string %s", collName, domain.IDField)
	}

	coll := se.getOrCreateCollection(collName)
	coll.mu.Lock()
	if _, exists := coll.docs[docID]; exists {
		coll.mu.Unlock()
		return fmt.Errorf("%w: %s/%s", domain.ErrDuplicateID, collName, docID)
	}
	coll.docs[docID] = doc.Clone()
	coll.markDirty()
	coll.mu.Unlock()

	se.saveAfterTransaction(collName, coll)
	return nil
}

// UpdateFields replaces the supplied fields of a specific document
func (se *StorageEngine) UpdateFields(_ context.Context, collName, docID string, fields domain.Document) error {
	coll := se.getCollection(collName)
	if coll == nil {
		return fmt.Errorf("%w: %s/%s", domain.ErrNotFound, collName, docID)
	}

	coll.mu.Lock()
	doc, exists := coll.docs[docID]
	if !exists {
		coll.mu.Unlock()
		return fmt.Errorf("%w: %s/%s", domain.ErrNotFound, collName, docID)
	}

	// Build the new version aside so readers holding a clone never observe a half-applied update
	updated := doc.Clone()
	for key, value := range fields.Clone() {
		if key != domain.IDField { // Prevent updating the document ID
			updated[key] = value
		}
	}
	coll.docs[docID] = updated
	coll.markDirty()
	coll.mu.Unlock()

	se.saveAfterTransaction(collName, coll)
	return nil
}

// DeleteByID removes a specific document by its ID and reports how many were removed
func (se *StorageEngine) DeleteByID(_ context.Context, collName, docID string) (int64, error) {
	coll := se.getCollection(collName)
	if coll == nil {
		return 0, nil
	}

	coll.mu.Lock()
	if _, exists := coll.docs[docID]; !exists {
		coll.mu.Unlock()
		return 0, nil
	}
	delete(coll.docs, docID)
	coll.markDirty()
	coll.mu.Unlock()

	se.saveAfterTransaction(collName, coll)
	return 1, nil
}

// Count returns the number of documents in a collection
func (se *StorageEngine) Count(collName string) int {
	coll := se.getCollection(collName)
	if coll == nil {
		return 0
	}
	coll.mu.RLock()
	defer coll.mu.RUnlock()
	return len(coll.docs)
}

// saveAfterTransaction saves a collection to disk if transaction saves are enabled.
// A failed save does not fail the write; the collection stays dirty and is retried.
func (se *StorageEngine) saveAfterTransaction(collName string, coll *collection) {
	if !se.IsTransactionSaveEnabled() {
		return
	}
	if err := se.saveCollection(collName, coll); err != nil {
		log.Printf("WARN: Failed to save collection '%s' after write: %v", collName, err)
	}
}

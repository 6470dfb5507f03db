package storage

import (
	"sync"
	"time"

	"github.com/adfharrison1/go-securedocs/pkg/domain"
)

var _ domain.DocumentStore = (*StorageEngine)(nil)

// StorageEngine is an in-memory document store with per-collection locking
// and optional persistence of each collection to its own file.
type StorageEngine struct {
	mu          sync.RWMutex
	collections map[string]*collection

	// Configuration
	dataDir         string
	persist         bool
	backgroundSave  bool
	transactionSave bool
	saveInterval    time.Duration

	// Background workers
	backgroundWg sync.WaitGroup
	stopChan     chan struct{}
	stopOnce     sync.Once
}

// NewStorageEngine creates a new storage engine
func NewStorageEngine(options ...StorageOption) *StorageEngine {
	engine := &StorageEngine{
		collections:     make(map[string]*collection),
		dataDir:         ".",
		persist:         false,
		backgroundSave:  false,
		transactionSave: true, // Default to transaction-based saves
		saveInterval:    5 * time.Minute,
		stopChan:        make(chan struct{}),
	}

	// Apply options
	for _, option := range options {
		option(engine)
	}

	return engine
}

// getCollection returns the collection or nil if it has never been written.
func (se *StorageEngine) getCollection(collName string) *collection {
	se.mu.RLock()
	defer se.mu.RUnlock()
	return se.collections[collName]
}

// getOrCreateCollection gets or creates a collection
func (se *StorageEngine) getOrCreateCollection(collName string) *collection {
	if coll := se.getCollection(collName); coll != nil {
		return coll
	}

	se.mu.Lock()
	defer se.mu.Unlock()

	// Double-check in case another goroutine created it
	if coll, exists := se.collections[collName]; exists {
		return coll
	}

	coll := newCollection(collName)
	se.collections[collName] = coll
	return coll
}

// collectionNames returns a snapshot of the known collection names.
func (se *StorageEngine) collectionNames() []string {
	se.mu.RLock()
	defer se.mu.RUnlock()
	names := make([]string, 0, len(se.collections))
	for name := range se.collections {
		names = append(names, name)
	}
	return names
}

// IsTransactionSaveEnabled returns whether transaction-based saves are enabled
func (se *StorageEngine) IsTransactionSaveEnabled() bool {
	return se.persist && se.transactionSave
}

package storage

import (
	"sync"
	"time"

	"github.com/adfharrison1/go-securedocs/pkg/domain"
)

type CollectionState int

const (
	CollectionStateLoaded CollectionState = iota
	CollectionStateDirty
)

func (s CollectionState) String() string {
	if s == CollectionStateDirty {
		return "dirty"
	}
	return "clean"
}

func (s CollectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type CollectionInfo struct {
	Name          string          `json:"name"`
	DocumentCount int64           `json:"document_count"`
	SizeOnDisk    int64           `json:"size_on_disk"`
	LastModified  time.Time       `json:"last_modified"`
	LastSaved     time.Time       `json:"last_saved"`
	State         CollectionState `json:"state"`
}

// collection holds the documents of one collection. mu guards docs, info and
// version; saveMu serializes writers of the collection file.
type collection struct {
	mu      sync.RWMutex
	saveMu  sync.Mutex
	docs    map[string]domain.Document
	info    CollectionInfo
	version uint64 // bumped by every write
}

func newCollection(name string) *collection {
	return &collection{
		docs: make(map[string]domain.Document),
		info: CollectionInfo{Name: name, LastModified: time.Now()},
	}
}

// markDirty must be called with mu held for writing.
func (c *collection) markDirty() {
	c.version++
	c.info.State = CollectionStateDirty
	c.info.DocumentCount = int64(len(c.docs))
	c.info.LastModified = time.Now()
}

// snapshot returns a deep copy of the documents and the version they were taken at.
func (c *collection) snapshot() (map[string]domain.Document, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	docs := make(map[string]domain.Document, len(c.docs))
	for id, doc := range c.docs {
		docs[id] = doc.Clone()
	}
	return docs, c.version
}

// markSaved records a completed save of the snapshot taken at version. The
// collection stays dirty if it was written since.
func (c *collection) markSaved(version uint64, savedAt time.Time, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.version == version {
		c.info.State = CollectionStateLoaded
	}
	c.info.LastSaved = savedAt
	c.info.SizeOnDisk = size
}

package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/adfharrison1/go-securedocs/pkg/domain"
	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// json.Number values arrive from the HTTP layer when encryption is off; they
// are written as msgpack numbers so they load back as numbers.
func init() {
	msgpack.Register(json.Number(""), encodeJSONNumber, nil)
}

func encodeJSONNumber(e *msgpack.Encoder, v reflect.Value) error {
	n := json.Number(v.String())
	if i, err := n.Int64(); err == nil {
		return e.EncodeInt(i)
	}
	if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
		return e.EncodeUint(u)
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", n, err)
	}
	return e.EncodeFloat64(f)
}

func (se *StorageEngine) collectionsDir() string {
	return filepath.Join(se.dataDir, "collections")
}

func (se *StorageEngine) collectionPath(collName string) string {
	return filepath.Join(se.collectionsDir(), collName+FileExtension)
}

// EncodeCollection writes the header followed by the compressed body
func EncodeCollection(w io.Writer, data *CollectionData) error {
	if err := WriteHeader(w); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	zw := lz4.NewWriter(w)
	if err := msgpack.NewEncoder(zw).Encode(data); err != nil {
		return fmt.Errorf("failed to encode MessagePack: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to compress data: %w", err)
	}
	return nil
}

// DecodeCollection reads a collection file written by EncodeCollection
func DecodeCollection(r io.Reader) (*CollectionData, error) {
	if _, err := ReadHeader(r); err != nil {
		return nil, err
	}

	dec := msgpack.NewDecoder(lz4.NewReader(r))
	dec.UseLooseInterfaceDecoding(true) // numbers decode as int64, uint64 or float64
	var data CollectionData
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode collection data: %w", err)
	}
	if data.Documents == nil {
		data.Documents = make(map[string]map[string]interface{})
	}
	return &data, nil
}

// Load reads every collection file under the data directory into memory.
// A missing directory is not an error.
func (se *StorageEngine) Load() error {
	if !se.persist {
		return nil
	}

	entries, err := os.ReadDir(se.collectionsDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read collections directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), FileExtension) {
			continue
		}
		collName := strings.TrimSuffix(entry.Name(), FileExtension)
		if err := se.loadCollectionFromDisk(collName); err != nil {
			return fmt.Errorf("failed to load collection %s: %w", collName, err)
		}
	}
	return nil
}

// loadCollectionFromDisk loads a single collection from disk
func (se *StorageEngine) loadCollectionFromDisk(collName string) error {
	path := se.collectionPath(collName)
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := DecodeCollection(bufio.NewReader(file))
	if err != nil {
		return err
	}

	coll := newCollection(collName)
	for docID, doc := range data.Documents {
		coll.docs[docID] = domain.Document(doc)
	}
	coll.info.DocumentCount = int64(len(coll.docs))
	coll.info.LastSaved = data.SavedAt
	if stat, err := file.Stat(); err == nil {
		coll.info.SizeOnDisk = stat.Size()
	}

	se.mu.Lock()
	se.collections[collName] = coll
	se.mu.Unlock()

	log.Printf("INFO: Loaded collection '%s' with %d documents", collName, len(coll.docs))
	return nil
}

// saveDirtyCollections saves all dirty collections to individual files
func (se *StorageEngine) saveDirtyCollections() {
	start := time.Now()
	savedCount := 0
	errorCount := 0

	var dirty []string
	for _, collName := range se.collectionNames() {
		coll := se.getCollection(collName)
		coll.mu.RLock()
		if coll.info.State == CollectionStateDirty {
			dirty = append(dirty, collName)
		}
		coll.mu.RUnlock()
	}

	if len(dirty) == 0 {
		log.Printf("DEBUG: No dirty collections to save")
		return
	}

	log.Printf("INFO: Background save starting - %d dirty collections to save", len(dirty))

	for _, collName := range dirty {
		if err := se.saveCollection(collName, se.getCollection(collName)); err != nil {
			log.Printf("ERROR: Failed to save collection %s: %v", collName, err)
			errorCount++
		} else {
			savedCount++
		}
	}

	elapsed := time.Since(start)
	if errorCount > 0 {
		log.Printf("WARN: Background save completed with errors - saved: %d, errors: %d, time: %v",
			savedCount, errorCount, elapsed)
	} else {
		log.Printf("INFO: Background save completed successfully - saved: %d collections in %v",
			savedCount, elapsed)
	}
}

// saveCollection writes a snapshot of the collection to a temporary file and
// renames it over the collection file.
func (se *StorageEngine) saveCollection(collName string, coll *collection) error {
	coll.saveMu.Lock()
	defer coll.saveMu.Unlock()

	docs, version := coll.snapshot()
	data := NewCollectionData(collName)
	data.SavedAt = time.Now()
	for docID, doc := range docs {
		data.Documents[docID] = map[string]interface{}(doc)
	}

	if err := os.MkdirAll(se.collectionsDir(), 0755); err != nil {
		return fmt.Errorf("failed to create collections directory: %w", err)
	}

	path := se.collectionPath(collName)
	tmp, err := os.CreateTemp(se.collectionsDir(), collName+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	bw := bufio.NewWriter(tmp)
	if err := EncodeCollection(bw, data); err != nil {
		tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write collection file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync collection file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close collection file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to rename collection file: %w", err)
	}

	var size int64
	if stat, err := os.Stat(path); err == nil {
		size = stat.Size()
	}

	coll.markSaved(version, data.SavedAt, size)

	log.Printf("DEBUG: Saved collection %s (%d bytes)", collName, size)
	return nil
}

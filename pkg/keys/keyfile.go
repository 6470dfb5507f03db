package keys

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/adfharrison1/go-securedocs/pkg/domain"
)

// Initialize loads the master key at path, or generates and persists one if
// the file does not exist yet. It must run once at startup before any
// encrypted collection is served.
func Initialize(path string) (*Manager, error) {
	key, err := LoadKey(path)
	if errors.Is(err, fs.ErrNotExist) {
		key, err = createKey(path)
	}
	if err != nil {
		return nil, err
	}
	return NewManager(key)
}

// LoadKey reads and decodes a key file. A missing file is reported as an
// error matching fs.ErrNotExist.
func LoadKey(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrKeyIO, path, err)
	}

	key, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrKeyIO, path, err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: %s holds %d bytes, want %d", domain.ErrKeyIO, path, len(key), KeySize)
	}
	return key, nil
}

// createKey generates a key and publishes it at path without clobbering a key
// written concurrently by another process; the loser adopts the winner's key.
func createKey(path string) ([]byte, error) {
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create key directory: %v", domain.ErrKeyIO, err)
	}

	tmp, err := os.CreateTemp(dir, ".securedocs-key-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp key file: %v", domain.ErrKeyIO, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	encoded := base64.StdEncoding.EncodeToString(key) + "\n"
	if _, err := tmp.WriteString(encoded); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("%w: write key: %v", domain.ErrKeyIO, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("%w: chmod key: %v", domain.ErrKeyIO, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("%w: sync key: %v", domain.ErrKeyIO, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("%w: close key: %v", domain.ErrKeyIO, err)
	}

	if err := os.Link(tmpPath, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			log.Printf("INFO: Key file %s appeared concurrently, loading it", path)
			return LoadKey(path)
		}
		return nil, fmt.Errorf("%w: publish key: %v", domain.ErrKeyIO, err)
	}

	log.Printf("INFO: Generated new encryption key at %s", path)
	return key, nil
}

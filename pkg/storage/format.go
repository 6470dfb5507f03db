package storage

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

const (
	// Magic bytes to identify our file format
	MagicBytes = "GODB"
	// Current version
	FormatVersion = 2
	// File extension for collection files
	FileExtension = ".godb"
)

// FileHeader represents the header of a collection file
type FileHeader struct {
	Magic    [4]byte // "GODB"
	Version  uint8   // Format version
	Flags    uint8   // Reserved for future use
	Reserved [2]byte // Reserved for future use
}

// WriteHeader writes the file header to the given writer
func WriteHeader(w io.Writer) error {
	header := FileHeader{
		Magic:   [4]byte{'G', 'O', 'D', 'B'},
		Version: FormatVersion,
	}

	return binary.Write(w, binary.LittleEndian, header)
}

// ReadHeader reads and validates the file header
func ReadHeader(r io.Reader) (*FileHeader, error) {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Validate magic bytes
	if string(header.Magic[:]) != MagicBytes {
		return nil, fmt.Errorf("invalid file format: expected %s, got %s", MagicBytes, string(header.Magic[:]))
	}

	// Validate version
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported file version: %d", header.Version)
	}

	return &header, nil
}

// CollectionData is the body of a collection file, msgpack-encoded and
// lz4-compressed after the header.
type CollectionData struct {
	Name      string                            `msgpack:"name"`
	Documents map[string]map[string]interface{} `msgpack:"documents"`
	SavedAt   time.Time                         `msgpack:"saved_at"`
}

// NewCollectionData creates an empty body for the named collection
func NewCollectionData(name string) *CollectionData {
	return &CollectionData{
		Name:      name,
		Documents: make(map[string]map[string]interface{}),
	}
}

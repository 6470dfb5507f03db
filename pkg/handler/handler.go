// Package handler implements the collection handlers: the single chokepoint
// through which every read and write of a collection passes. Writes are
// validated before they are encrypted, and encrypted before they are
// persisted; reads are decrypted before they are returned.
//
// Expected outcomes (not found, validation failure) are reported in Result.
// Faults (crypto, storage) are returned as errors and never produce a
// partial Result.
package handler

import (
	"context"
	"fmt"

	"github.com/adfharrison1/go-securedocs/pkg/domain"
	"github.com/adfharrison1/go-securedocs/pkg/schema"
)

// Kind identifies an operation variant.
type Kind int

const (
	KindGet Kind = iota
	KindCreate
	KindUpdate
	KindDelete
)

// Kinds lists every operation variant.
var Kinds = []Kind{KindGet, KindCreate, KindUpdate, KindDelete}

func (k Kind) String() string {
	switch k {
	case KindGet:
		return "get"
	case KindCreate:
		return "create"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Status is the expected outcome of an operation.
type Status int

const (
	StatusOK Status = iota
	StatusCreated
	StatusDeleted
	StatusNotFound
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusCreated:
		return "created"
	case StatusDeleted:
		return "deleted"
	case StatusNotFound:
		return "not_found"
	case StatusInvalid:
		return "invalid"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Request carries the inputs of one operation. ID is ignored by Create and
// Payload by Get and Delete.
type Request struct {
	ID      string
	Payload domain.Document
}

// Result is the typed outcome of a successful call to Execute.
type Result struct {
	Status Status
	// Item is the decrypted document for OK and Created.
	Item domain.Document
	// Errors lists schema violations for Invalid.
	Errors []domain.FieldError
	// Removed is the number of documents a Delete removed (0 or 1).
	Removed int64
}

// Success reports whether the operation did what was asked.
func (r Result) Success() bool {
	switch r.Status {
	case StatusOK, StatusCreated, StatusDeleted:
		return true
	}
	return false
}

// Operation is the capability shared by every handler variant.
type Operation interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// Validator checks a candidate document for a collection. schema.Validator
// satisfies it.
type Validator interface {
	Validate(collection string, doc domain.Document, mode schema.Mode) error
}

// Cipher encrypts and decrypts single field values. keys.Manager satisfies it.
type Cipher interface {
	Encrypt(value interface{}) (string, error)
	Decrypt(token string) (interface{}, error)
}

// Binding is the configuration a handler is constructed with. Validator and
// Cipher are optional and independent: a nil Validator skips validation and a
// nil Cipher stores values as given.
type Binding struct {
	Store      domain.DocumentStore
	Collection string
	Validator  Validator
	Cipher     Cipher
}

func (b Binding) check() error {
	if b.Store == nil {
		return fmt.Errorf("handler for %q: store is required", b.Collection)
	}
	if b.Collection == "" {
		return fmt.Errorf("handler: collection name is required")
	}
	return nil
}

// New constructs the handler variant for kind.
func New(kind Kind, b Binding) (Operation, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	switch kind {
	case KindGet:
		return &Getter{binding: b}, nil
	case KindCreate:
		return &Creator{binding: b}, nil
	case KindUpdate:
		return &Updater{binding: b}, nil
	case KindDelete:
		return &Deleter{binding: b}, nil
	}
	return nil, fmt.Errorf("handler: unsupported operation %s", kind)
}

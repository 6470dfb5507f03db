package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Lookup errors are expected outcomes that callers branch on.
var (
	// ErrNotFound indicates no document exists for the identifier.
	ErrNotFound = errors.New("document not found")

	// ErrDuplicateID indicates an insert collided with an existing identifier.
	ErrDuplicateID = errors.New("document identifier already exists")

	// ErrUnknownCollection indicates the collection has no registered schema or handler.
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
)

// Fault errors are unexpected. They fail the single operation and surface to
// the caller as internal errors.
var (
	// ErrKeyIO indicates the key file could not be read, written or parsed.
	ErrKeyIO = errors.New("encryption key unavailable")

	// ErrEncryption indicates a field value could not be encrypted.
	ErrEncryption = errors.New("encryption failed")

	// ErrDecryption indicates a stored token is malformed, was produced under
	// a different key, or failed integrity verification.
	ErrDecryption = errors.New("decryption failed")

	// ErrStorage indicates the backing store was unreachable or rejected the operation.
	ErrStorage = errors.New("storage fault")
)

// FieldError describes one schema violation.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e FieldError) String() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// ValidationError lists every field that failed schema validation for a
// collection. It never wraps a fault.
type ValidationError struct {
	Collection string
	Fields     []FieldError
}

// NewValidationError builds a ValidationError with fields sorted by name so
// that reports are stable.
func NewValidationError(collection string, fields []FieldError) *ValidationError {
	sorted := make([]FieldError, len(fields))
	copy(sorted, fields)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Field < sorted[j].Field })
	return &ValidationError{Collection: collection, Fields: sorted}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.String())
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Collection, strings.Join(parts, "; "))
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// HasField reports whether the named field is among the violations.
func (e *ValidationError) HasField(name string) bool {
	for _, f := range e.Fields {
		if f.Field == name {
			return true
		}
	}
	return false
}

// StorageFault wraps a backend error so it matches ErrStorage while keeping
// the original error reachable through errors.Unwrap.
func StorageFault(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

package handler

import (
	"fmt"
	"sort"

	"github.com/adfharrison1/go-securedocs/pkg/domain"
)

// Decorator wraps an operation, e.g. to record metrics.
type Decorator func(collection string, kind Kind, op Operation) Operation

type setConfig struct {
	validator  Validator
	cipher     Cipher
	decorators []Decorator
}

// SetOption configures NewSet.
type SetOption func(*setConfig)

// WithValidator validates writes for every collection in the set.
func WithValidator(v Validator) SetOption {
	return func(c *setConfig) {
		c.validator = v
	}
}

// WithCipher encrypts every collection in the set.
func WithCipher(cipher Cipher) SetOption {
	return func(c *setConfig) {
		c.cipher = cipher
	}
}

// WithDecorator wraps every operation in the set. Decorators apply in order,
// the last one outermost.
func WithDecorator(d Decorator) SetOption {
	return func(c *setConfig) {
		c.decorators = append(c.decorators, d)
	}
}

// Set holds the four operations for each served collection. It is built once
// and only read afterwards.
type Set struct {
	ops map[string]map[Kind]Operation
}

// NewSet binds one handler of every kind to each collection.
func NewSet(store domain.DocumentStore, collections []string, opts ...SetOption) (*Set, error) {
	cfg := &setConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &Set{ops: make(map[string]map[Kind]Operation, len(collections))}
	for _, coll := range collections {
		if _, dup := s.ops[coll]; dup {
			return nil, fmt.Errorf("collection %s listed twice", coll)
		}
		b := Binding{Store: store, Collection: coll, Validator: cfg.validator, Cipher: cfg.cipher}

		byKind := make(map[Kind]Operation, len(Kinds))
		for _, kind := range Kinds {
			op, err := New(kind, b)
			if err != nil {
				return nil, err
			}
			for _, d := range cfg.decorators {
				op = d(coll, kind, op)
			}
			byKind[kind] = op
		}
		s.ops[coll] = byKind
	}
	return s, nil
}

// Operation returns the handler for a collection and kind.
func (s *Set) Operation(collection string, kind Kind) (Operation, error) {
	byKind, ok := s.ops[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownCollection, collection)
	}
	op, ok := byKind[kind]
	if !ok {
		return nil, fmt.Errorf("handler: unsupported operation %s", kind)
	}
	return op, nil
}

// Has reports whether the collection is served.
func (s *Set) Has(collection string) bool {
	_, ok := s.ops[collection]
	return ok
}

// Collections returns the served collection names in sorted order.
func (s *Set) Collections() []string {
	names := make([]string, 0, len(s.ops))
	for name := range s.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

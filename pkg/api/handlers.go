package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/adfharrison1/go-securedocs/pkg/domain"
	"github.com/adfharrison1/go-securedocs/pkg/handler"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 10 << 20

// Pinger is implemented by stores that can report their connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatsReporter is implemented by stores that can describe their own footprint
type StatsReporter interface {
	GetMemoryStats() map[string]interface{}
}

// Handler provides HTTP handlers for the collection API
type Handler struct {
	ops     *handler.Set
	backend string
	pinger  Pinger
	stats   StatsReporter
}

// Option configures a Handler
type Option func(*Handler)

// WithBackend names the storage backend in health responses
func WithBackend(name string) Option {
	return func(h *Handler) {
		h.backend = name
	}
}

// WithPinger makes the health check ping the store
func WithPinger(p Pinger) Option {
	return func(h *Handler) {
		h.pinger = p
	}
}

// WithStats adds the store's statistics to health responses
func WithStats(r StatsReporter) Option {
	return func(h *Handler) {
		h.stats = r
	}
}

// NewHandler creates a new API handler with dependency injection
func NewHandler(ops *handler.Set, opts ...Option) *Handler {
	h := &Handler{ops: ops, backend: "memory"}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// DocumentResponse is the body of a successful single-document response
type DocumentResponse struct {
	Success bool            `json:"success"`
	Item    domain.Document `json:"item"`
}

// operation resolves the handler for a collection, writing a 404 when the
// collection is not served.
func (h *Handler) operation(w http.ResponseWriter, collName string, kind handler.Kind) (handler.Operation, bool) {
	op, err := h.ops.Operation(collName, kind)
	if err != nil {
		log.Printf("WARN: %s requested on unknown collection '%s'", kind, collName)
		WriteJSONError(w, http.StatusNotFound, fmt.Sprintf("collection %q does not exist", collName))
		return nil, false
	}
	return op, true
}

// decodeDocument reads a JSON object from the request body. Numbers are kept
// as json.Number so large integers survive unchanged.
func decodeDocument(w http.ResponseWriter, r *http.Request) (domain.Document, error) {
	var doc domain.Document
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON object")
	}
	if doc == nil {
		doc = domain.Document{}
	}
	return doc, nil
}

// writeFault logs the error and answers 500 without leaking details
func writeFault(w http.ResponseWriter, kind handler.Kind, collName string, err error) {
	log.Printf("ERROR: %s failed for collection '%s': %v", kind, collName, err)
	WriteJSONError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("WARN: Failed to encode response: %v", err)
	}
}

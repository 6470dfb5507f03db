package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/adfharrison1/go-securedocs/pkg/domain"
	"github.com/adfharrison1/go-securedocs/pkg/handler"
)

// maxBatchSize caps the documents accepted by one batch request
const maxBatchSize = 1000

// BatchCreateRequest represents the request body for batch create operations
type BatchCreateRequest struct {
	Documents []domain.Document `json:"documents"`
}

// BatchItemResult is the outcome of one document in a batch
type BatchItemResult struct {
	Index   int                 `json:"index"`
	Success bool                `json:"success"`
	Item    domain.Document     `json:"item,omitempty"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
}

// BatchCreateResponse represents the response for batch create operations
type BatchCreateResponse struct {
	Success      bool              `json:"success"`
	Message      string            `json:"message"`
	CreatedCount int               `json:"created_count"`
	FailedCount  int               `json:"failed_count"`
	Collection   string            `json:"collection"`
	Results      []BatchItemResult `json:"results"`
}

// HandleBatchCreate handles POST requests that create several documents. Each
// document is created independently; invalid ones are reported and skipped
// while the rest are still written. A fault stops the batch.
func (h *Handler) HandleBatchCreate(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	log.Printf("INFO: handleBatchCreate called for collection '%s'", collName)

	op, ok := h.operation(w, collName, handler.KindCreate)
	if !ok {
		return
	}

	var req BatchCreateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		log.Printf("ERROR: Decoding body failed: %v", err)
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Validate request
	if len(req.Documents) == 0 {
		log.Printf("ERROR: No documents provided for batch create")
		WriteJSONError(w, http.StatusBadRequest, "No documents provided")
		return
	}
	if len(req.Documents) > maxBatchSize {
		log.Printf("ERROR: Too many documents for batch create: %d", len(req.Documents))
		WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("Maximum %d documents allowed per batch", maxBatchSize))
		return
	}

	response := BatchCreateResponse{
		Collection: collName,
		Results:    make([]BatchItemResult, 0, len(req.Documents)),
	}
	for i, doc := range req.Documents {
		if doc == nil {
			doc = domain.Document{}
		}
		res, err := op.Execute(r.Context(), handler.Request{Payload: doc})
		if err != nil {
			log.Printf("ERROR: Batch create stopped at document %d after %d created", i, response.CreatedCount)
			writeFault(w, handler.KindCreate, collName, err)
			return
		}
		item := BatchItemResult{Index: i, Success: res.Success(), Item: res.Item, Fields: res.Errors}
		if item.Success {
			response.CreatedCount++
		} else {
			response.FailedCount++
		}
		response.Results = append(response.Results, item)
	}

	status := http.StatusCreated
	response.Success = response.FailedCount == 0
	response.Message = "Batch create completed successfully"
	if !response.Success {
		status = http.StatusBadRequest
		response.Message = fmt.Sprintf("%d of %d documents failed validation", response.FailedCount, len(req.Documents))
	}

	log.Printf("INFO: Batch create for collection '%s': created %d, failed %d", collName, response.CreatedCount, response.FailedCount)
	writeJSON(w, status, response)
}

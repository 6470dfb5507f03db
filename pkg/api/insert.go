package api

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/adfharrison1/go-securedocs/pkg/handler"
)

// HandleCreate handles POST requests to create a document in a collection
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	log.Printf("INFO: handleCreate called for collection '%s'", collName)

	op, ok := h.operation(w, collName, handler.KindCreate)
	if !ok {
		return
	}

	doc, err := decodeDocument(w, r)
	if err != nil {
		log.Printf("ERROR: Decoding body failed: %v", err)
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := op.Execute(r.Context(), handler.Request{Payload: doc})
	if err != nil {
		writeFault(w, handler.KindCreate, collName, err)
		return
	}
	if res.Status == handler.StatusInvalid {
		log.Printf("WARN: Create rejected for collection '%s': %d invalid fields", collName, len(res.Errors))
		WriteValidationError(w, res.Errors)
		return
	}

	id, _ := res.Item.ID()
	log.Printf("INFO: Created document '%s' in collection '%s'", id, collName)
	writeJSON(w, http.StatusCreated, DocumentResponse{Success: true, Item: res.Item})
}

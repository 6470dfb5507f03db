package api

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/adfharrison1/go-securedocs/pkg/handler"
)

// HandleUpdateById handles PATCH requests to update fields of a specific document by ID
func (h *Handler) HandleUpdateById(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collName := vars["coll"]
	docId := vars["id"]

	log.Printf("INFO: handleUpdateById called for collection '%s', document '%s'", collName, docId)

	op, ok := h.operation(w, collName, handler.KindUpdate)
	if !ok {
		return
	}

	updates, err := decodeDocument(w, r)
	if err != nil {
		log.Printf("ERROR: Decoding body failed: %v", err)
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := op.Execute(r.Context(), handler.Request{ID: docId, Payload: updates})
	if err != nil {
		writeFault(w, handler.KindUpdate, collName, err)
		return
	}

	switch res.Status {
	case handler.StatusInvalid:
		log.Printf("WARN: Update rejected for document '%s' in collection '%s'", docId, collName)
		WriteValidationError(w, res.Errors)
	case handler.StatusNotFound:
		log.Printf("WARN: Document '%s' not found in collection '%s'", docId, collName)
		WriteJSONError(w, http.StatusNotFound, "document not found")
	default:
		log.Printf("INFO: Updated document '%s' in collection '%s'", docId, collName)
		writeJSON(w, http.StatusOK, DocumentResponse{Success: true, Item: res.Item})
	}
}

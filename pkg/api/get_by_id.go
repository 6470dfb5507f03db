package api

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/adfharrison1/go-securedocs/pkg/handler"
)

// HandleGetById handles GET requests to retrieve a specific document by ID
func (h *Handler) HandleGetById(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collName := vars["coll"]
	docId := vars["id"]

	log.Printf("INFO: handleGetById called for collection '%s', document '%s'", collName, docId)

	op, ok := h.operation(w, collName, handler.KindGet)
	if !ok {
		return
	}

	res, err := op.Execute(r.Context(), handler.Request{ID: docId})
	if err != nil {
		writeFault(w, handler.KindGet, collName, err)
		return
	}
	if res.Status == handler.StatusNotFound {
		log.Printf("WARN: Document '%s' not found in collection '%s'", docId, collName)
		WriteJSONError(w, http.StatusNotFound, "document not found")
		return
	}

	log.Printf("INFO: Retrieved document '%s' from collection '%s'", docId, collName)
	writeJSON(w, http.StatusOK, DocumentResponse{Success: true, Item: res.Item})
}

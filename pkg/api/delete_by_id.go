package api

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/adfharrison1/go-securedocs/pkg/handler"
)

// DeletedCountHeader reports how many documents a DELETE removed
const DeletedCountHeader = "X-Deleted-Count"

// HandleDeleteById handles DELETE requests to remove a specific document by ID.
// Deleting a missing document still answers 204, with a count of 0.
func (h *Handler) HandleDeleteById(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collName := vars["coll"]
	docId := vars["id"]

	log.Printf("INFO: handleDeleteById called for collection '%s', document '%s'", collName, docId)

	op, ok := h.operation(w, collName, handler.KindDelete)
	if !ok {
		return
	}

	res, err := op.Execute(r.Context(), handler.Request{ID: docId})
	if err != nil {
		writeFault(w, handler.KindDelete, collName, err)
		return
	}

	log.Printf("INFO: Deleted %d document(s) '%s' from collection '%s'", res.Removed, docId, collName)
	w.Header().Set(DeletedCountHeader, strconv.FormatInt(res.Removed, 10))
	w.WriteHeader(http.StatusNoContent)
}

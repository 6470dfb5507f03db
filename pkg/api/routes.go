package api

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API routes with the given router
func (h *Handler) RegisterRoutes(router *mux.Router) {
	// Collection operations
	router.HandleFunc("/collections/{coll}/documents", h.HandleCreate).Methods("POST")
	router.HandleFunc("/collections/{coll}/batch", h.HandleBatchCreate).Methods("POST")

	// Document operations (by ID)
	router.HandleFunc("/collections/{coll}/documents/{id}", h.HandleGetById).Methods("GET")
	router.HandleFunc("/collections/{coll}/documents/{id}", h.HandleUpdateById).Methods("PATCH") // Partial update
	router.HandleFunc("/collections/{coll}/documents/{id}", h.HandleDeleteById).Methods("DELETE")

	router.HandleFunc("/collections", h.HandleListCollections).Methods("GET")
	router.HandleFunc("/health", h.HandleHealth).Methods("GET")
}

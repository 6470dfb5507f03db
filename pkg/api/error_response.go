package api

import (
	"encoding/json"
	"net/http"

	"github.com/adfharrison1/go-securedocs/pkg/domain"
)

// ErrorResponse represents a standard JSON error response
type ErrorResponse struct {
	Error   string              `json:"error"`
	Message string              `json:"message"`
	Code    int                 `json:"code"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
}

// WriteJSONError writes a JSON error response with the given status code and message
func WriteJSONError(w http.ResponseWriter, statusCode int, message string) {
	writeError(w, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// WriteValidationError writes a 400 listing every invalid field
func WriteValidationError(w http.ResponseWriter, fields []domain.FieldError) {
	writeError(w, ErrorResponse{
		Error:   http.StatusText(http.StatusBadRequest),
		Message: "validation failed",
		Code:    http.StatusBadRequest,
		Fields:  fields,
	})
}

func writeError(w http.ResponseWriter, response ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(response.Code)
	json.NewEncoder(w).Encode(response)
}

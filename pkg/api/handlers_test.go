package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/adfharrison1/go-securedocs/pkg/domain"
	"github.com/adfharrison1/go-securedocs/pkg/domain/mocks"
	"github.com/adfharrison1/go-securedocs/pkg/handler"
	"github.com/adfharrison1/go-securedocs/pkg/keys"
	"github.com/adfharrison1/go-securedocs/pkg/schema"
	"github.com/adfharrison1/go-securedocs/pkg/storage"
)

func newTestRouter(t *testing.T, store domain.DocumentStore, opts ...Option) *mux.Router {
	t.Helper()

	master, err := keys.GenerateKey()
	require.NoError(t, err)
	manager, err := keys.NewManager(master)
	require.NoError(t, err)
	registry, err := schema.LoadDefault()
	require.NoError(t, err)

	set, err := handler.NewSet(store, registry.Names(),
		handler.WithValidator(schema.NewValidator(registry)),
		handler.WithCipher(manager),
	)
	require.NoError(t, err)

	router := mux.NewRouter()
	NewHandler(set, opts...).RegisterRoutes(router)
	return router
}

func newMemoryRouter(t *testing.T) *mux.Router {
	engine := storage.NewStorageEngine()
	t.Cleanup(engine.StopBackgroundWorkers)
	return newTestRouter(t, engine)
}

func do(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func janeDoe() map[string]interface{} {
	return map[string]interface{}{
		"full_name":         "Jane Doe",
		"birth_date":        "1990-01-01",
		"valid_id_type":     "Passport",
		"valid_id_number":   "X123",
		"current_add":       "1 Main St",
		"employment_status": "Employed",
		"updated":           "2024-01-01T00:00:00Z",
	}
}

func createProfile(t *testing.T, router http.Handler) string {
	t.Helper()
	w := do(t, router, "POST", "/collections/profiles/documents", janeDoe())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp DocumentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	id, ok := resp.Item.ID()
	require.True(t, ok)
	return id
}

func TestHandler_HandleCreate(t *testing.T) {
	router := newMemoryRouter(t)

	w := do(t, router, "POST", "/collections/profiles/documents", janeDoe())
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp DocumentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Item["_id"])
	for field, want := range janeDoe() {
		assert.Equal(t, want, resp.Item[field], field)
	}
}

func TestHandler_HandleCreate_Errors(t *testing.T) {
	router := newMemoryRouter(t)

	missingID := janeDoe()
	delete(missingID, "valid_id_number")

	tests := []struct {
		name           string
		path           string
		body           interface{}
		expectedStatus int
		expectedField  string
	}{
		{name: "missing required field", path: "/collections/profiles/documents", body: missingID, expectedStatus: http.StatusBadRequest, expectedField: "valid_id_number"},
		{name: "malformed json", path: "/collections/profiles/documents", body: "{not json", expectedStatus: http.StatusBadRequest},
		{name: "json array", path: "/collections/profiles/documents", body: "[1,2]", expectedStatus: http.StatusBadRequest},
		{name: "trailing data", path: "/collections/profiles/documents", body: `{"a":1} {"b":2}`, expectedStatus: http.StatusBadRequest},
		{name: "unknown collection", path: "/collections/users/documents", body: janeDoe(), expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, "POST", tt.path, tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectedStatus, resp.Code)
			if tt.expectedField != "" {
				require.Len(t, resp.Fields, 1)
				assert.Equal(t, tt.expectedField, resp.Fields[0].Field)
				assert.Equal(t, "is required", resp.Fields[0].Reason)
			}
		})
	}
}

func TestHandler_HandleGetById(t *testing.T) {
	router := newMemoryRouter(t)
	id := createProfile(t, router)

	w := do(t, router, "GET", "/collections/profiles/documents/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp DocumentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.Item["_id"])
	assert.Equal(t, "Jane Doe", resp.Item["full_name"])

	w = do(t, router, "GET", "/collections/profiles/documents/never-created", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, "GET", "/collections/users/documents/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_LargeNumbersSurviveExactly(t *testing.T) {
	router := newMemoryRouter(t)

	body := `{"application_id": "a-1", "bank_name": "First Bank", "account_type": "Savings",
		"account_number": 9007199254740993, "bank_status": "Active", "balance": 1234.5600}`
	w := do(t, router, "POST", "/collections/banking/documents", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"account_number":9007199254740993`)

	var resp DocumentResponse
	dec := json.NewDecoder(bytes.NewReader(w.Body.Bytes()))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&resp))
	id, ok := resp.Item.ID()
	require.True(t, ok)

	w = do(t, router, "GET", "/collections/banking/documents/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"account_number":9007199254740993`)
	assert.Contains(t, w.Body.String(), `"balance":1234.5600`)
}

func TestHandler_HandleUpdateById(t *testing.T) {
	router := newMemoryRouter(t)
	id := createProfile(t, router)

	w := do(t, router, "PATCH", "/collections/profiles/documents/"+id, map[string]interface{}{"job_title": "Engineer"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp DocumentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Engineer", resp.Item["job_title"])
	assert.Equal(t, "Jane Doe", resp.Item["full_name"])

	w = do(t, router, "PATCH", "/collections/profiles/documents/"+id, map[string]interface{}{"employment_status": "Retired"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "employment_status")

	w = do(t, router, "PATCH", "/collections/profiles/documents/"+id, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, "PATCH", "/collections/profiles/documents/missing", map[string]interface{}{"job_title": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, "PATCH", "/collections/profiles/documents/"+id, "{")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_HandleDeleteById(t *testing.T) {
	router := newMemoryRouter(t)
	id := createProfile(t, router)

	w := do(t, router, "DELETE", "/collections/profiles/documents/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "1", w.Header().Get(DeletedCountHeader))

	w = do(t, router, "DELETE", "/collections/profiles/documents/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "0", w.Header().Get(DeletedCountHeader))

	w = do(t, router, "GET", "/collections/profiles/documents/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_HandleBatchCreate(t *testing.T) {
	router := newMemoryRouter(t)

	invalid := janeDoe()
	delete(invalid, "full_name")

	w := do(t, router, "POST", "/collections/profiles/batch", map[string]interface{}{
		"documents": []interface{}{janeDoe(), invalid, janeDoe()},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp BatchCreateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, 2, resp.CreatedCount)
	assert.Equal(t, 1, resp.FailedCount)
	require.Len(t, resp.Results, 3)
	assert.True(t, resp.Results[0].Success)
	assert.False(t, resp.Results[1].Success)
	assert.Equal(t, "full_name", resp.Results[1].Fields[0].Field)

	id, ok := resp.Results[2].Item.ID()
	require.True(t, ok)
	w = do(t, router, "GET", "/collections/profiles/documents/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, "POST", "/collections/profiles/batch", map[string]interface{}{
		"documents": []interface{}{janeDoe()},
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = do(t, router, "POST", "/collections/profiles/batch", map[string]interface{}{"documents": []interface{}{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	tooMany := make([]interface{}, maxBatchSize+1)
	for i := range tooMany {
		tooMany[i] = map[string]interface{}{}
	}
	w = do(t, router, "POST", "/collections/profiles/batch", map[string]interface{}{"documents": tooMany})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_StorageFaultIsOpaque(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockDocumentStore(ctrl)
	store.EXPECT().FindByID(gomock.Any(), "contact", "c1").
		Return(nil, domain.StorageFault("find", errors.New("dial tcp 10.0.0.7:27017: connection refused")))

	router := newTestRouter(t, store)
	w := do(t, router, "GET", "/collections/contact/documents/c1", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.7")
	assert.Contains(t, w.Body.String(), "internal error")
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHandler_HandleHealth(t *testing.T) {
	engine := storage.NewStorageEngine()

	tests := []struct {
		name           string
		opts           []Option
		expectedStatus int
		expectedBody   string
	}{
		{name: "no pinger", expectedStatus: http.StatusOK, expectedBody: `"backend":"memory"`},
		{name: "healthy", opts: []Option{WithBackend("redis"), WithPinger(stubPinger{})}, expectedStatus: http.StatusOK, expectedBody: `"backend":"redis"`},
		{name: "unreachable", opts: []Option{WithBackend("mongo"), WithPinger(stubPinger{err: errors.New("timeout")})}, expectedStatus: http.StatusServiceUnavailable, expectedBody: `"unhealthy"`},
		{name: "memory stats", opts: []Option{WithStats(engine)}, expectedStatus: http.StatusOK, expectedBody: `"num_goroutines"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, engine, tt.opts...)
			w := do(t, router, "GET", "/health", nil)
			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody), w.Body.String())
		})
	}
}

func TestHandler_HandleListCollections(t *testing.T) {
	router := newMemoryRouter(t)

	w := do(t, router, "GET", "/collections", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp CollectionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{
		"applications", "banking", "contact", "credit-accounts",
		"credit-transactions", "financial", "profiles",
	}, resp.Collections)
}

func TestWriteJSONError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSONError(w, http.StatusNotFound, "document not found")

	assert.Equal(t, http.StatusNotFound, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ErrorResponse{Error: "Not Found", Message: "document not found", Code: 404}, resp)
}

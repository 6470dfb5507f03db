package handler_test

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adfharrison1/go-securedocs/pkg/domain"
	"github.com/adfharrison1/go-securedocs/pkg/handler"
	"github.com/adfharrison1/go-securedocs/pkg/keys"
	"github.com/adfharrison1/go-securedocs/pkg/schema"
	"github.com/adfharrison1/go-securedocs/pkg/storage"
)

type fixture struct {
	store *storage.StorageEngine
	set   *handler.Set
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	master, err := keys.GenerateKey()
	require.NoError(t, err)
	manager, err := keys.NewManager(master)
	require.NoError(t, err)

	registry, err := schema.LoadDefault()
	require.NoError(t, err)

	store := storage.NewStorageEngine()
	t.Cleanup(store.StopBackgroundWorkers)

	set, err := handler.NewSet(store, registry.Names(),
		handler.WithValidator(schema.NewValidator(registry)),
		handler.WithCipher(manager),
	)
	require.NoError(t, err)
	return &fixture{store: store, set: set}
}

func (f *fixture) exec(t *testing.T, coll string, kind handler.Kind, req handler.Request) handler.Result {
	t.Helper()
	op, err := f.set.Operation(coll, kind)
	require.NoError(t, err)
	res, err := op.Execute(context.Background(), req)
	require.NoError(t, err)
	return res
}

func janeDoe() domain.Document {
	return domain.Document{
		"full_name":         "Jane Doe",
		"birth_date":        "1990-01-01",
		"valid_id_type":     "Passport",
		"valid_id_number":   "X123",
		"current_add":       "1 Main St",
		"employment_status": "Employed",
		"updated":           "2024-01-01T00:00:00Z",
	}
}

func TestCreate_JaneDoe(t *testing.T) {
	f := newFixture(t)

	res := f.exec(t, "profiles", handler.KindCreate, handler.Request{Payload: janeDoe()})
	require.Equal(t, handler.StatusCreated, res.Status)
	assert.True(t, res.Success())

	id, ok := res.Item.ID()
	require.True(t, ok)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)

	for field, want := range janeDoe() {
		assert.Equal(t, want, res.Item[field], field)
	}
	assert.Len(t, res.Item, len(janeDoe())+1)
}

func TestCreate_EncryptsAtRest(t *testing.T) {
	f := newFixture(t)

	res := f.exec(t, "profiles", handler.KindCreate, handler.Request{Payload: janeDoe()})
	require.Equal(t, handler.StatusCreated, res.Status)
	id, _ := res.Item.ID()

	stored, err := f.store.FindByID(context.Background(), "profiles", id)
	require.NoError(t, err)
	assert.Equal(t, id, stored[domain.IDField])
	for field := range janeDoe() {
		token, ok := stored[field].(string)
		require.True(t, ok, field)
		assert.True(t, keys.IsToken(token), field)
		assert.NotContains(t, token, "Jane")
	}
}

func TestCreate_ThenGetRoundTrip(t *testing.T) {
	f := newFixture(t)

	ref := uuid.NewString()
	payloads := map[string]domain.Document{
		"profiles": janeDoe(),
		"applications": {
			"user_profile":   ref,
			"date_submitted": "2024-02-01T09:30:00Z",
			"app_status":     "Pending",
			"mode":           "Online",
			"apply_attempt":  json.Number("2"),
			"updated":        "2024-02-01T09:30:00Z",
		},
		"contact": {
			"user_profile": ref,
			"email":        "jane@example.com",
			"phone_number": "+1-555-0100",
			"updated":      "2024-02-01T09:30:00",
		},
		"banking": {
			"application_id": ref,
			"bank_name":      "First Bank",
			"account_type":   "Savings",
			"account_number": json.Number("9007199254740993"),
			"bank_status":    "Active",
		},
		"financial": {
			"application_id": ref,
			"income":         json.Number("5200.5"),
			"net_assets":     json.Number("12000"),
			"net_debt":       json.Number("-300.25"),
			"updated":        "2024-02-01T09:30:00Z",
			"existing_loans": []interface{}{"car", map[string]interface{}{"kind": "student", "open": true}},
		},
		"credit-accounts": {
			"user_id":      ref,
			"credit_score": json.Number("720"),
			"updated":      "2024-02-01T09:30:00Z",
		},
		"credit-transactions": {
			"account_id": ref,
			"amount":     json.Number("-49.99"),
			"created":    "2024-02-01T09:30:00.123Z",
			"updated":    "2024-02-01T09:30:00.123Z",
			"memo":       nil,
		},
	}

	for coll, payload := range payloads {
		t.Run(coll, func(t *testing.T) {
			created := f.exec(t, coll, handler.KindCreate, handler.Request{Payload: payload})
			require.Equal(t, handler.StatusCreated, created.Status)
			id, _ := created.Item.ID()

			got := f.exec(t, coll, handler.KindGet, handler.Request{ID: id})
			require.Equal(t, handler.StatusOK, got.Status)
			assert.Equal(t, payload, got.Item.Without(domain.IDField))
		})
	}
}

func TestCreate_IgnoresCallerID(t *testing.T) {
	f := newFixture(t)

	payload := janeDoe()
	payload[domain.IDField] = "chosen-by-caller"

	res := f.exec(t, "profiles", handler.KindCreate, handler.Request{Payload: payload})
	require.Equal(t, handler.StatusCreated, res.Status)
	assert.NotEqual(t, "chosen-by-caller", res.Item[domain.IDField])
}

func TestCreate_UniqueIDs(t *testing.T) {
	f := newFixture(t)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		res := f.exec(t, "profiles", handler.KindCreate, handler.Request{Payload: janeDoe()})
		require.Equal(t, handler.StatusCreated, res.Status)
		id, _ := res.Item.ID()
		assert.False(t, seen[id])
		seen[id] = true
	}
	assert.Equal(t, 20, f.store.Count("profiles"))
}

func TestCreate_MissingRequiredField(t *testing.T) {
	f := newFixture(t)

	payload := janeDoe()
	delete(payload, "valid_id_number")

	res := f.exec(t, "profiles", handler.KindCreate, handler.Request{Payload: payload})
	assert.Equal(t, handler.StatusInvalid, res.Status)
	assert.False(t, res.Success())
	assert.Contains(t, res.Errors, domain.FieldError{Field: "valid_id_number", Reason: "is required"})
	assert.Nil(t, res.Item)
	assert.Equal(t, 0, f.store.Count("profiles"))
}

func TestCreate_ReportsEveryViolation(t *testing.T) {
	f := newFixture(t)

	payload := janeDoe()
	payload["valid_id_type"] = "Library Card"
	payload["birth_date"] = "yesterday"
	delete(payload, "current_add")

	res := f.exec(t, "profiles", handler.KindCreate, handler.Request{Payload: payload})
	require.Equal(t, handler.StatusInvalid, res.Status)

	fields := make([]string, 0, len(res.Errors))
	for _, fe := range res.Errors {
		fields = append(fields, fe.Field)
	}
	assert.Equal(t, []string{"birth_date", "current_add", "valid_id_type"}, fields)
}

func TestGet_NeverCreated(t *testing.T) {
	f := newFixture(t)

	res := f.exec(t, "applications", handler.KindGet, handler.Request{ID: uuid.NewString()})
	assert.Equal(t, handler.StatusNotFound, res.Status)
	assert.False(t, res.Success())
}

func TestUpdate_Partial(t *testing.T) {
	f := newFixture(t)

	created := f.exec(t, "profiles", handler.KindCreate, handler.Request{Payload: janeDoe()})
	require.Equal(t, handler.StatusCreated, created.Status)
	id, _ := created.Item.ID()

	res := f.exec(t, "profiles", handler.KindUpdate, handler.Request{
		ID:      id,
		Payload: domain.Document{"current_add": "2 Side St"},
	})
	require.Equal(t, handler.StatusOK, res.Status)

	want := created.Item.Clone()
	want["current_add"] = "2 Side St"
	assert.Equal(t, want, res.Item)

	got := f.exec(t, "profiles", handler.KindGet, handler.Request{ID: id})
	assert.Equal(t, want, got.Item)
}

func TestUpdate_CannotChangeID(t *testing.T) {
	f := newFixture(t)

	created := f.exec(t, "profiles", handler.KindCreate, handler.Request{Payload: janeDoe()})
	id, _ := created.Item.ID()

	res := f.exec(t, "profiles", handler.KindUpdate, handler.Request{
		ID:      id,
		Payload: domain.Document{domain.IDField: "other", "job_title": "Engineer"},
	})
	require.Equal(t, handler.StatusOK, res.Status)
	assert.Equal(t, id, res.Item[domain.IDField])
	assert.Equal(t, "Engineer", res.Item["job_title"])
}

func TestUpdate_Invalid(t *testing.T) {
	f := newFixture(t)

	created := f.exec(t, "profiles", handler.KindCreate, handler.Request{Payload: janeDoe()})
	id, _ := created.Item.ID()

	tests := []struct {
		name    string
		payload domain.Document
		field   string
	}{
		{name: "bad enum", payload: domain.Document{"employment_status": "Retired"}, field: "employment_status"},
		{name: "wrong type", payload: domain.Document{"full_name": 42}, field: "full_name"},
		{name: "empty", payload: domain.Document{}, field: ""},
		{name: "only id", payload: domain.Document{domain.IDField: "x"}, field: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.exec(t, "profiles", handler.KindUpdate, handler.Request{ID: id, Payload: tt.payload})
			require.Equal(t, handler.StatusInvalid, res.Status)
			require.NotEmpty(t, res.Errors)
			assert.Equal(t, tt.field, res.Errors[0].Field)
		})
	}

	got := f.exec(t, "profiles", handler.KindGet, handler.Request{ID: id})
	assert.Equal(t, created.Item, got.Item)
}

func TestUpdate_Missing(t *testing.T) {
	f := newFixture(t)

	res := f.exec(t, "profiles", handler.KindUpdate, handler.Request{
		ID:      uuid.NewString(),
		Payload: domain.Document{"job_title": "Engineer"},
	})
	assert.Equal(t, handler.StatusNotFound, res.Status)
}

func TestConcurrentUpdateAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.exec(t, "profiles", handler.KindCreate, handler.Request{Payload: janeDoe()})
	require.Equal(t, handler.StatusCreated, created.Status)
	id, _ := created.Item.ID()

	update, err := f.set.Operation("profiles", handler.KindUpdate)
	require.NoError(t, err)
	get, err := f.set.Operation("profiles", handler.KindGet)
	require.NoError(t, err)

	type outcome struct {
		res handler.Result
		err error
	}
	const writers = 8
	outcomes := make(chan outcome, writers*2)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			res, err := update.Execute(ctx, handler.Request{
				ID:      id,
				Payload: domain.Document{fmt.Sprintf("note_%d", i): fmt.Sprintf("written by %d", i)},
			})
			outcomes <- outcome{res, err}
		}(i)
		go func() {
			defer wg.Done()
			res, err := get.Execute(ctx, handler.Request{ID: id})
			outcomes <- outcome{res, err}
		}()
	}
	wg.Wait()
	close(outcomes)

	for o := range outcomes {
		require.NoError(t, o.err)
		assert.Equal(t, handler.StatusOK, o.res.Status)
		assert.Equal(t, id, o.res.Item[domain.IDField])
		assert.Equal(t, "Jane Doe", o.res.Item["full_name"])
	}

	final := f.exec(t, "profiles", handler.KindGet, handler.Request{ID: id})
	require.Equal(t, handler.StatusOK, final.Status)
	for i := 0; i < writers; i++ {
		assert.Equal(t, fmt.Sprintf("written by %d", i), final.Item[fmt.Sprintf("note_%d", i)])
	}
	assert.Len(t, final.Item, len(janeDoe())+1+writers)
}

func TestDelete_Idempotent(t *testing.T) {
	f := newFixture(t)

	created := f.exec(t, "profiles", handler.KindCreate, handler.Request{Payload: janeDoe()})
	id, _ := created.Item.ID()

	first := f.exec(t, "profiles", handler.KindDelete, handler.Request{ID: id})
	assert.Equal(t, handler.StatusDeleted, first.Status)
	assert.EqualValues(t, 1, first.Removed)

	second := f.exec(t, "profiles", handler.KindDelete, handler.Request{ID: id})
	assert.Equal(t, handler.StatusDeleted, second.Status)
	assert.True(t, second.Success())
	assert.EqualValues(t, 0, second.Removed)

	got := f.exec(t, "profiles", handler.KindGet, handler.Request{ID: id})
	assert.Equal(t, handler.StatusNotFound, got.Status)
}

func TestGet_UnderDifferentKeyFails(t *testing.T) {
	f := newFixture(t)

	created := f.exec(t, "profiles", handler.KindCreate, handler.Request{Payload: janeDoe()})
	id, _ := created.Item.ID()

	other := make([]byte, keys.KeySize)
	_, err := rand.Read(other)
	require.NoError(t, err)
	otherManager, err := keys.NewManager(other)
	require.NoError(t, err)

	get, err := handler.New(handler.KindGet, handler.Binding{Store: f.store, Collection: "profiles", Cipher: otherManager})
	require.NoError(t, err)

	res, err := get.Execute(context.Background(), handler.Request{ID: id})
	assert.ErrorIs(t, err, domain.ErrDecryption)
	assert.Nil(t, res.Item)
}

func TestWithoutCipherOrValidator(t *testing.T) {
	store := storage.NewStorageEngine()
	defer store.StopBackgroundWorkers()

	set, err := handler.NewSet(store, []string{"notes"})
	require.NoError(t, err)

	op, err := set.Operation("notes", handler.KindCreate)
	require.NoError(t, err)
	res, err := op.Execute(context.Background(), handler.Request{Payload: domain.Document{"anything": "goes"}})
	require.NoError(t, err)
	require.Equal(t, handler.StatusCreated, res.Status)

	id, _ := res.Item.ID()
	stored, err := store.FindByID(context.Background(), "notes", id)
	require.NoError(t, err)
	assert.Equal(t, "goes", stored["anything"])
}

func TestSet(t *testing.T) {
	store := storage.NewStorageEngine()
	defer store.StopBackgroundWorkers()

	_, err := handler.NewSet(store, []string{"contact", "contact"})
	assert.Error(t, err)

	set, err := handler.NewSet(store, []string{"contact", "banking"})
	require.NoError(t, err)
	assert.Equal(t, []string{"banking", "contact"}, set.Collections())
	assert.True(t, set.Has("contact"))
	assert.False(t, set.Has("users"))

	_, err = set.Operation("users", handler.KindGet)
	assert.ErrorIs(t, err, domain.ErrUnknownCollection)

	var order []string
	decorate := func(name string) handler.Decorator {
		return func(coll string, kind handler.Kind, op handler.Operation) handler.Operation {
			order = append(order, name+":"+coll+":"+kind.String())
			return op
		}
	}
	_, err = handler.NewSet(store, []string{"contact"}, handler.WithDecorator(decorate("a")), handler.WithDecorator(decorate("b")))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"a:contact:get", "b:contact:get",
		"a:contact:create", "b:contact:create",
		"a:contact:update", "b:contact:update",
		"a:contact:delete", "b:contact:delete",
	}, order)
}

func TestNew_RequiresStoreAndCollection(t *testing.T) {
	_, err := handler.New(handler.KindGet, handler.Binding{Collection: "contact"})
	assert.Error(t, err)

	_, err = handler.New(handler.KindGet, handler.Binding{Store: storage.NewStorageEngine()})
	assert.Error(t, err)

	_, err = handler.New(handler.Kind(42), handler.Binding{Store: storage.NewStorageEngine(), Collection: "contact"})
	assert.Error(t, err)
}

func TestKindAndStatusStrings(t *testing.T) {
	assert.Equal(t, "update", handler.KindUpdate.String())
	assert.Equal(t, "kind(9)", handler.Kind(9).String())
	assert.Equal(t, "not_found", handler.StatusNotFound.String())
	assert.Equal(t, "invalid", handler.StatusInvalid.String())
}

// Package storetest holds the behaviour every domain.DocumentStore backend
// must share. Backends run it from their own tests:
//
//	suite.Run(t, &storetest.Suite{NewStore: func(t *testing.T) domain.DocumentStore { ... }})
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/adfharrison1/go-securedocs/pkg/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type Suite struct {
	suite.Suite

	// NewStore returns an empty store. Cleanup belongs in t.Cleanup.
	NewStore func(t *testing.T) domain.DocumentStore

	store domain.DocumentStore
	ctx   context.Context
}

func (s *Suite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.NewStore(s.T())
}

func (s *Suite) newDoc(fields domain.Document) domain.Document {
	doc := fields.Clone()
	if doc == nil {
		doc = domain.Document{}
	}
	doc[domain.IDField] = uuid.NewString()
	return doc
}

func (s *Suite) TestInsertAndFind() {
	doc := s.newDoc(domain.Document{"first_name": "enc:v1:Zmlyc3Q=", "nested": map[string]interface{}{"k": "v"}})
	s.Require().NoError(s.store.Insert(s.ctx, "profiles", doc))

	got, err := s.store.FindByID(s.ctx, "profiles", doc[domain.IDField].(string))
	s.Require().NoError(err)
	s.Equal(doc[domain.IDField], got[domain.IDField])
	s.Equal("enc:v1:Zmlyc3Q=", got["first_name"])
	s.Equal(map[string]interface{}{"k": "v"}, toPlain(got["nested"]))
}

func (s *Suite) TestFindMissing() {
	_, err := s.store.FindByID(s.ctx, "profiles", uuid.NewString())
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *Suite) TestCollectionsAreIsolated() {
	doc := s.newDoc(domain.Document{"email": "x"})
	s.Require().NoError(s.store.Insert(s.ctx, "contact", doc))

	_, err := s.store.FindByID(s.ctx, "banking", doc[domain.IDField].(string))
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *Suite) TestInsertDuplicate() {
	doc := s.newDoc(domain.Document{"email": "x"})
	s.Require().NoError(s.store.Insert(s.ctx, "contact", doc))

	err := s.store.Insert(s.ctx, "contact", doc)
	s.ErrorIs(err, domain.ErrDuplicateID)
}

func (s *Suite) TestInsertDoesNotAliasCaller() {
	doc := s.newDoc(domain.Document{"email": "before"})
	s.Require().NoError(s.store.Insert(s.ctx, "contact", doc))
	doc["email"] = "after"

	got, err := s.store.FindByID(s.ctx, "contact", doc[domain.IDField].(string))
	s.Require().NoError(err)
	s.Equal("before", got["email"])
}

func (s *Suite) TestUpdateFields() {
	doc := s.newDoc(domain.Document{"email": "a", "phone": "1"})
	id := doc[domain.IDField].(string)
	s.Require().NoError(s.store.Insert(s.ctx, "contact", doc))

	s.Require().NoError(s.store.UpdateFields(s.ctx, "contact", id, domain.Document{"phone": "2", "extra": "z"}))

	got, err := s.store.FindByID(s.ctx, "contact", id)
	s.Require().NoError(err)
	s.Equal("a", got["email"])
	s.Equal("2", got["phone"])
	s.Equal("z", got["extra"])
	s.Equal(id, got[domain.IDField])
}

func (s *Suite) TestUpdateNeverChangesID() {
	doc := s.newDoc(domain.Document{"email": "a"})
	id := doc[domain.IDField].(string)
	s.Require().NoError(s.store.Insert(s.ctx, "contact", doc))

	s.Require().NoError(s.store.UpdateFields(s.ctx, "contact", id, domain.Document{domain.IDField: "other", "email": "b"}))

	got, err := s.store.FindByID(s.ctx, "contact", id)
	s.Require().NoError(err)
	s.Equal(id, got[domain.IDField])
	s.Equal("b", got["email"])
}

func (s *Suite) TestUpdateMissing() {
	err := s.store.UpdateFields(s.ctx, "contact", uuid.NewString(), domain.Document{"email": "b"})
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *Suite) TestDelete() {
	doc := s.newDoc(domain.Document{"email": "a"})
	id := doc[domain.IDField].(string)
	s.Require().NoError(s.store.Insert(s.ctx, "contact", doc))

	n, err := s.store.DeleteByID(s.ctx, "contact", id)
	s.Require().NoError(err)
	s.EqualValues(1, n)

	_, err = s.store.FindByID(s.ctx, "contact", id)
	s.ErrorIs(err, domain.ErrNotFound)

	n, err = s.store.DeleteByID(s.ctx, "contact", id)
	s.Require().NoError(err)
	s.EqualValues(0, n)
}

func (s *Suite) TestDeleteNeverExisted() {
	n, err := s.store.DeleteByID(s.ctx, "contact", uuid.NewString())
	s.Require().NoError(err)
	s.EqualValues(0, n)
}

func (s *Suite) TestConcurrentInsertSameID() {
	id := uuid.NewString()
	const writers = 8

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.store.Insert(s.ctx, "profiles", domain.Document{domain.IDField: id, "n": fmt.Sprint(i)})
		}(i)
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		s.ErrorIs(err, domain.ErrDuplicateID)
	}
	s.Equal(1, succeeded)
}

func (s *Suite) TestConcurrentUpdatesOfOneDocument() {
	doc := s.newDoc(domain.Document{"full_name": "enc:v1:name"})
	id := doc[domain.IDField].(string)
	s.Require().NoError(s.store.Insert(s.ctx, "profiles", doc))

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers*2)
	torn := make(chan string, writers)
	for i := 0; i < writers; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			field := fmt.Sprintf("note_%d", i)
			errs <- s.store.UpdateFields(s.ctx, "profiles", id, domain.Document{field: fmt.Sprintf("enc:v1:%d", i)})
		}(i)
		go func() {
			defer wg.Done()
			got, err := s.store.FindByID(s.ctx, "profiles", id)
			errs <- err
			if err == nil && (got[domain.IDField] != id || got["full_name"] != "enc:v1:name") {
				torn <- fmt.Sprint(got)
			}
		}()
	}
	wg.Wait()
	close(errs)
	close(torn)

	for err := range errs {
		s.NoError(err)
	}
	for doc := range torn {
		s.Failf("read a partial document", "%s", doc)
	}

	got, err := s.store.FindByID(s.ctx, "profiles", id)
	s.Require().NoError(err)
	for i := 0; i < writers; i++ {
		s.Equal(fmt.Sprintf("enc:v1:%d", i), got[fmt.Sprintf("note_%d", i)], "update %d was lost", i)
	}
	s.Equal("enc:v1:name", got["full_name"])
}

func (s *Suite) TestConcurrentUpdateAndDelete() {
	doc := s.newDoc(domain.Document{"full_name": "enc:v1:name"})
	id := doc[domain.IDField].(string)
	s.Require().NoError(s.store.Insert(s.ctx, "profiles", doc))

	const workers = 8
	var wg sync.WaitGroup
	updateErrs := make(chan error, workers)
	removed := make(chan int64, workers)
	deleteErrs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			updateErrs <- s.store.UpdateFields(s.ctx, "profiles", id, domain.Document{"job_title": fmt.Sprintf("enc:v1:%d", i)})
		}(i)
		go func() {
			defer wg.Done()
			n, err := s.store.DeleteByID(s.ctx, "profiles", id)
			deleteErrs <- err
			removed <- n
		}()
	}
	wg.Wait()
	close(updateErrs)
	close(removed)
	close(deleteErrs)

	for err := range updateErrs {
		if err != nil {
			s.ErrorIs(err, domain.ErrNotFound)
		}
	}
	for err := range deleteErrs {
		s.NoError(err)
	}
	var total int64
	for n := range removed {
		total += n
	}
	s.EqualValues(1, total)

	_, err := s.store.FindByID(s.ctx, "profiles", id)
	s.ErrorIs(err, domain.ErrNotFound)
}

// toPlain converts driver-specific nested values to plain maps for comparison.
func toPlain(v interface{}) interface{} {
	switch val := v.(type) {
	case domain.Document:
		return toPlain(map[string]interface{}(val))
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = toPlain(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = toPlain(item)
		}
		return out
	default:
		return v
	}
}

package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/adfharrison1/go-securedocs/pkg/domain"
	"github.com/adfharrison1/go-securedocs/pkg/schema"
)

// Creator validates, encrypts and inserts a new document under a freshly
// generated identifier.
type Creator struct {
	binding Binding
}

// Execute runs validate, encrypt, insert, fetch back, decrypt. A caller
// supplied _id is discarded.
func (c *Creator) Execute(ctx context.Context, req Request) (Result, error) {
	candidate := req.Payload.Without(domain.IDField)

	if invalid, err := c.binding.validate(candidate, schema.ModeCreate); err != nil || invalid != nil {
		return deref(invalid), err
	}

	sealed, err := c.binding.seal(candidate)
	if err != nil {
		return Result{}, err
	}

	id := uuid.NewString()
	sealed[domain.IDField] = id

	if err := c.binding.Store.Insert(ctx, c.binding.Collection, sealed); err != nil {
		return Result{}, storeFault("insert", err)
	}

	stored, err := c.binding.Store.FindByID(ctx, c.binding.Collection, id)
	if errors.Is(err, domain.ErrNotFound) {
		return Result{}, domain.StorageFault("fetch back", fmt.Errorf("document %s vanished after insert", id))
	}
	if err != nil {
		return Result{}, storeFault("fetch back", err)
	}

	item, err := c.binding.open(stored)
	if err != nil {
		return Result{}, err
	}
	return Result{Status: StatusCreated, Item: item}, nil
}

func deref(r *Result) Result {
	if r == nil {
		return Result{}
	}
	return *r
}

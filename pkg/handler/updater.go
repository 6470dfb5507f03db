package handler

import (
	"context"
	"errors"

	"github.com/adfharrison1/go-securedocs/pkg/domain"
	"github.com/adfharrison1/go-securedocs/pkg/schema"
)

// Updater replaces only the supplied fields of an existing document.
type Updater struct {
	binding Binding
}

// Execute validates and encrypts just the supplied fields, applies them, then
// returns the full decrypted document as it stands after the update. The
// identifier is immutable and silently dropped from the payload.
func (u *Updater) Execute(ctx context.Context, req Request) (Result, error) {
	fields := req.Payload.Without(domain.IDField)
	if len(fields) == 0 {
		return Result{
			Status: StatusInvalid,
			Errors: []domain.FieldError{{Reason: "update contains no fields"}},
		}, nil
	}

	if invalid, err := u.binding.validate(fields, schema.ModeUpdate); err != nil || invalid != nil {
		return deref(invalid), err
	}

	sealed, err := u.binding.seal(fields)
	if err != nil {
		return Result{}, err
	}

	err = u.binding.Store.UpdateFields(ctx, u.binding.Collection, req.ID, sealed)
	if errors.Is(err, domain.ErrNotFound) {
		return Result{Status: StatusNotFound}, nil
	}
	if err != nil {
		return Result{}, storeFault("update", err)
	}

	stored, err := u.binding.Store.FindByID(ctx, u.binding.Collection, req.ID)
	if errors.Is(err, domain.ErrNotFound) {
		// deleted concurrently between update and fetch back
		return Result{Status: StatusNotFound}, nil
	}
	if err != nil {
		return Result{}, storeFault("fetch back", err)
	}

	item, err := u.binding.open(stored)
	if err != nil {
		return Result{}, err
	}
	return Result{Status: StatusOK, Item: item}, nil
}

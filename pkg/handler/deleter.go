package handler

import (
	"context"
	"errors"

	"github.com/adfharrison1/go-securedocs/pkg/domain"
)

// Deleter removes a document by identifier. Deleting an identifier that does
// not exist succeeds with Removed == 0.
type Deleter struct {
	binding Binding
}

// Execute deletes the document. Only a storage fault fails it.
func (d *Deleter) Execute(ctx context.Context, req Request) (Result, error) {
	removed, err := d.binding.Store.DeleteByID(ctx, d.binding.Collection, req.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return Result{Status: StatusDeleted}, nil
	}
	if err != nil {
		return Result{}, storeFault("delete", err)
	}
	return Result{Status: StatusDeleted, Removed: removed}, nil
}

package handler

import (
	"context"
	"errors"

	"github.com/adfharrison1/go-securedocs/pkg/domain"
)

// Getter reads one document by identifier.
type Getter struct {
	binding Binding
}

// Execute looks the document up and decrypts it. A missing identifier is a
// NotFound result, not an error.
func (g *Getter) Execute(ctx context.Context, req Request) (Result, error) {
	stored, err := g.binding.Store.FindByID(ctx, g.binding.Collection, req.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return Result{Status: StatusNotFound}, nil
	}
	if err != nil {
		return Result{}, storeFault("find", err)
	}

	item, err := g.binding.open(stored)
	if err != nil {
		return Result{}, err
	}
	return Result{Status: StatusOK, Item: item}, nil
}

package handler

import (
	"errors"
	"fmt"

	"github.com/adfharrison1/go-securedocs/pkg/domain"
	"github.com/adfharrison1/go-securedocs/pkg/schema"
)

// validate runs the bound validator, if any. A schema violation comes back
// as an Invalid result; anything else is returned as an error.
func (b Binding) validate(doc domain.Document, mode schema.Mode) (*Result, error) {
	if b.Validator == nil {
		return nil, nil
	}
	err := b.Validator.Validate(b.Collection, doc, mode)
	if err == nil {
		return nil, nil
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return &Result{Status: StatusInvalid, Errors: ve.Fields}, nil
	}
	return nil, err
}

// seal encrypts every field except the identifier. The input is not modified.
func (b Binding) seal(doc domain.Document) (domain.Document, error) {
	if b.Cipher == nil {
		return doc.Clone(), nil
	}
	out := make(domain.Document, len(doc))
	for k, v := range doc {
		if k == domain.IDField {
			out[k] = v
			continue
		}
		token, err := b.Cipher.Encrypt(v)
		if err != nil {
			return nil, wrapFault(domain.ErrEncryption, b.Collection+"."+k, err)
		}
		out[k] = token
	}
	return out, nil
}

// open decrypts every field except the identifier. Any failing field fails
// the whole document; no partially decrypted copy is ever returned.
func (b Binding) open(doc domain.Document) (domain.Document, error) {
	if b.Cipher == nil {
		return doc, nil
	}
	if _, ok := doc[domain.IDField]; !ok {
		return nil, fmt.Errorf("%w: %s document has no %s", domain.ErrDecryption, b.Collection, domain.IDField)
	}
	out := make(domain.Document, len(doc))
	for k, v := range doc {
		if k == domain.IDField {
			out[k] = v
			continue
		}
		token, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s is not an encrypted token", domain.ErrDecryption, b.Collection, k)
		}
		plain, err := b.Cipher.Decrypt(token)
		if err != nil {
			return nil, wrapFault(domain.ErrDecryption, b.Collection+"."+k, err)
		}
		out[k] = plain
	}
	return out, nil
}

// storeFault classifies a store error: ErrNotFound passes through for the
// caller to turn into a result, everything else becomes a storage fault.
func storeFault(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrStorage) {
		return err
	}
	return domain.StorageFault(op, err)
}

func wrapFault(sentinel error, where string, err error) error {
	if errors.Is(err, sentinel) {
		return fmt.Errorf("%s: %w", where, err)
	}
	return fmt.Errorf("%w: %s: %w", sentinel, where, err)
}

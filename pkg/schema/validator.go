package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/adfharrison1/go-securedocs/pkg/domain"
)

// Mode selects how strictly a document is checked.
type Mode int

const (
	// ModeCreate requires every required field and checks every declared field present.
	ModeCreate Mode = iota
	// ModeUpdate checks only the fields present; partial documents are legal.
	ModeUpdate
)

func (m Mode) String() string {
	if m == ModeUpdate {
		return "update"
	}
	return "create"
}

var printer = message.NewPrinter(language.English)

// Validator checks documents against the registry's schemas. Fields not
// declared in a schema pass through untouched.
type Validator struct {
	registry *Registry
}

// NewValidator returns a validator backed by registry.
func NewValidator(registry *Registry) *Validator {
	return &Validator{registry: registry}
}

// Validate returns nil when doc satisfies the collection's schema in the
// given mode, a *domain.ValidationError listing every violation otherwise,
// or an error wrapping domain.ErrUnknownCollection.
func (v *Validator) Validate(collection string, doc domain.Document, mode Mode) error {
	s, ok := v.registry.Lookup(collection)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownCollection, collection)
	}

	compiled := s.create
	if mode == ModeUpdate {
		compiled = s.update
	}

	inst, problems := instance(doc.Without(domain.IDField))
	if len(problems) > 0 {
		return domain.NewValidationError(collection, problems)
	}

	err := compiled.Validate(inst)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return fmt.Errorf("validate %s: %w", collection, err)
	}

	c := collector{seen: make(map[string]bool)}
	c.walk(verr)
	return domain.NewValidationError(collection, c.problems)
}

// instance converts doc to the plain JSON value model the compiled schemas
// evaluate. Numbers keep their exact literal.
func instance(doc domain.Document) (interface{}, []domain.FieldError) {
	data, err := json.Marshal(doc)
	if err != nil {
		var problems []domain.FieldError
		for name, value := range doc {
			if _, err := json.Marshal(value); err != nil {
				problems = append(problems, domain.FieldError{Field: name, Reason: "is not a JSON value"})
			}
		}
		return nil, problems
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, []domain.FieldError{{Reason: "is not a JSON document"}}
	}
	return inst, nil
}

// collector flattens a validation error tree into one entry per top-level field.
type collector struct {
	seen     map[string]bool
	problems []domain.FieldError
}

func (c *collector) walk(verr *jsonschema.ValidationError) {
	if len(verr.Causes) > 0 {
		for _, cause := range verr.Causes {
			c.walk(cause)
		}
		return
	}

	if req, ok := verr.ErrorKind.(*kind.Required); ok {
		for _, name := range req.Missing {
			c.add(name, "is required")
		}
		return
	}

	field := ""
	if len(verr.InstanceLocation) > 0 {
		field = verr.InstanceLocation[0]
	}
	c.add(field, reason(verr.ErrorKind))
}

func (c *collector) add(field, reason string) {
	if c.seen[field] {
		return
	}
	c.seen[field] = true
	c.problems = append(c.problems, domain.FieldError{Field: field, Reason: reason})
}

func reason(k jsonschema.ErrorKind) string {
	switch k := k.(type) {
	case *kind.Type:
		return "must be of type " + strings.Join(k.Want, " or ")
	case *kind.Enum:
		parts := make([]string, len(k.Want))
		for i, w := range k.Want {
			parts[i] = fmt.Sprintf("%v", w)
		}
		return "must be one of [" + strings.Join(parts, ", ") + "]"
	case *kind.Format:
		return "must be a valid " + k.Want
	}
	return k.LocalizedString(printer)
}

// Accepted date-time layouts; the zone offset is optional.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

func validateDateTime(v interface{}) error {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	for _, layout := range dateTimeLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%q is not an RFC 3339 timestamp", s)
}

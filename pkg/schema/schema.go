// Package schema holds the per-collection record schemas and validates
// candidate documents against them.
//
// Schemas are data: JSON documents embedded in the binary and parsed once at
// startup into an immutable Registry. No collection has validation logic of
// its own.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/adfharrison1/go-securedocs/pkg/domain"
)

//go:embed schemas/*.json
var embedded embed.FS

// TypeString is the only type formats may be attached to.
const TypeString = "string"

// Field formats asserted by the validator.
const (
	FormatDate     = "date"
	FormatDateTime = "date-time"
	FormatEmail    = "email"
	FormatURI      = "uri"
)

var knownFormats = map[string]bool{
	FormatDate: true, FormatDateTime: true, FormatEmail: true, FormatURI: true,
}

// Field is the declared constraint for one record field.
type Field struct {
	Type   string        `json:"type"`
	Format string        `json:"format,omitempty"`
	Enum   []interface{} `json:"enum,omitempty"`
}

// Schema describes one collection. It carries two compiled forms of the same
// document: the full one for creates and one without "required" for partial
// updates.
type Schema struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Required    []string         `json:"required"`
	Fields      map[string]Field `json:"properties"`

	create *jsonschema.Schema
	update *jsonschema.Schema
}

// Parse decodes, checks and compiles a single schema document.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("schema has no name")
	}
	for name, f := range s.Fields {
		if name == domain.IDField {
			return nil, fmt.Errorf("schema %s: %s is reserved", s.Name, domain.IDField)
		}
		if f.Format != "" && (!knownFormats[f.Format] || f.Type != TypeString) {
			return nil, fmt.Errorf("schema %s: field %s has unsupported format %q", s.Name, name, f.Format)
		}
	}
	for _, name := range s.Required {
		if _, ok := s.Fields[name]; !ok {
			return nil, fmt.Errorf("schema %s: required field %s is not declared", s.Name, name)
		}
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	full, ok := doc.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("schema %s is not an object", s.Name)
	}
	partial := make(map[string]interface{}, len(full))
	for k, v := range full {
		if k != "required" {
			partial[k] = v
		}
	}

	if s.create, err = compile(s.Name+".create.json", full); err != nil {
		return nil, fmt.Errorf("schema %s: %w", s.Name, err)
	}
	if s.update, err = compile(s.Name+".update.json", partial); err != nil {
		return nil, fmt.Errorf("schema %s: %w", s.Name, err)
	}
	return &s, nil
}

func compile(url string, doc map[string]interface{}) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	c.RegisterFormat(&jsonschema.Format{Name: FormatDateTime, Validate: validateDateTime})
	if err := c.AddResource(url, doc); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

// Registry maps collection names to schemas. It is read-only once built.
type Registry struct {
	schemas map[string]*Schema
}

// NewRegistry builds a registry from already parsed schemas.
func NewRegistry(schemas ...*Schema) (*Registry, error) {
	r := &Registry{schemas: make(map[string]*Schema, len(schemas))}
	for _, s := range schemas {
		if _, dup := r.schemas[s.Name]; dup {
			return nil, fmt.Errorf("duplicate schema for collection %s", s.Name)
		}
		r.schemas[s.Name] = s
	}
	return r, nil
}

// LoadDefault parses the embedded schemas for the seven applicant collections.
func LoadDefault() (*Registry, error) {
	entries, err := embedded.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("failed to list embedded schemas: %w", err)
	}

	var parsed []*Schema
	for _, entry := range entries {
		data, err := embedded.ReadFile(path.Join("schemas", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", entry.Name(), err)
		}
		s, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		parsed = append(parsed, s)
	}
	return NewRegistry(parsed...)
}

// Lookup returns the schema for a collection.
func (r *Registry) Lookup(collection string) (*Schema, bool) {
	s, ok := r.schemas[collection]
	return s, ok
}

// Names returns the registered collection names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package domain

// IDField is the identifier key carried by every stored document. It is the
// only field that is never encrypted.
const IDField = "_id"

// Document represents a document in the database
type Document map[string]interface{}

// ID returns the document identifier and whether it is present as a string.
func (d Document) ID() (string, bool) {
	id, ok := d[IDField].(string)
	return id, ok
}

// Clone returns a deep copy of the document. Nested maps and slices are copied
// so that callers never share mutable state with a store.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

// Without returns a shallow copy of the document minus the given keys.
func (d Document) Without(keys ...string) Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return map[string]interface{}(Document(t).Clone())
	case Document:
		return t.Clone()
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

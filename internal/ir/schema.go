package ir

import (
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// SchemaKind is the kind of one entry in a parsing-service schema.
type SchemaKind string

const (
	// KindSet declares a new input pin, prefixed "+".
	KindSet SchemaKind = "set"
	// KindGet declares a new output pin, prefixed "-".
	KindGet SchemaKind = "get"
	// KindEat declares a new output pin, prefixed "!". Same mechanics as get;
	// the output is expected to have no further consumer.
	KindEat SchemaKind = "eat"
)

// Valid reports whether k is one of set, get, eat.
func (k SchemaKind) Valid() bool {
	switch k {
	case KindSet, KindGet, KindEat:
		return true
	}
	return false
}

// Direction returns the pin direction the kind produces.
func (k SchemaKind) Direction() Direction {
	if k == KindSet {
		return DirectionInput
	}
	return DirectionOutput
}

// Prefix returns the naming prefix for pins of this kind.
func (k SchemaKind) Prefix() string {
	switch k {
	case KindSet:
		return "+"
	case KindGet:
		return "-"
	case KindEat:
		return "!"
	}
	return ""
}

// SchemaEntry is one (kind, name) pair. On the wire it is a two element
// array: ["set", "name"].
type SchemaEntry struct {
	Kind SchemaKind
	Name string
}

// PinName returns the prefixed pin name for the entry ("+name", "-name", "!name").
func (e SchemaEntry) PinName() string {
	return e.Kind.Prefix() + e.Name
}

// MarshalJSON encodes the entry as [kind, name].
func (e SchemaEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{string(e.Kind), e.Name})
}

// UnmarshalJSON decodes [kind, name]. The name is NFC normalized.
// Kind is not validated here; unknown kinds are rejected by the
// response contract and by the reconciler.
func (e *SchemaEntry) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("schema entry: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("schema entry: want [kind, name], got %d elements", len(pair))
	}
	e.Kind = SchemaKind(pair[0])
	e.Name = norm.NFC.String(pair[1])
	return nil
}

// Schema is the ordered pin specification returned by the parsing service.
// It is the sole source of truth for a Highway's pins after an update.
type Schema []SchemaEntry

// Validate checks every entry kind. It never mutates anything.
func (s Schema) Validate() error {
	for i, e := range s {
		if !e.Kind.Valid() {
			return fmt.Errorf("schema[%d]: unknown kind %q", i, e.Kind)
		}
	}
	return nil
}

// ParseRequest is the body posted to the parsing service.
type ParseRequest struct {
	Input string `json:"input"`
}

// ParseResponse is the parsing service's reply. A non-empty Error list means
// the query was rejected and Order must not be applied.
type ParseResponse struct {
	Error []string `json:"error"`
	Order Schema   `json:"order"`
}

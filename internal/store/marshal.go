package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/pinsync/internal/graph"
	"github.com/roach88/pinsync/internal/ir"
)

// typeWidget is the name of the read-only descriptor widget.
const typeWidget = "_type"

// marshalDocument converts a graph document to JSON TEXT for storage.
// HTML escaping is disabled so pin names like "<x>" round-trip byte for byte.
func marshalDocument(doc *graph.Document) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalDocument parses stored JSON TEXT back into a document.
func unmarshalDocument(data string) (*graph.Document, error) {
	var doc graph.Document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return &doc, nil
}

// marshalDescriptor returns the node's "_type" widget value as JSON TEXT,
// or a NULL string when the node has none.
func marshalDescriptor(nd graph.NodeData) (*string, error) {
	for _, w := range nd.Widgets {
		if w.Name != typeWidget || w.Value == nil {
			continue
		}
		data, err := json.Marshal(w.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal descriptor of node %d: %w", nd.ID, err)
		}
		s := string(data)
		return &s, nil
	}
	return nil, nil
}

// unmarshalDescriptor parses a stored descriptor. NULL yields nil.
func unmarshalDescriptor(data *string) (*ir.TypeDescriptor, error) {
	if data == nil {
		return nil, nil
	}
	var td ir.TypeDescriptor
	if err := json.Unmarshal([]byte(*data), &td); err != nil {
		return nil, fmt.Errorf("unmarshal descriptor: %w", err)
	}
	return &td, nil
}

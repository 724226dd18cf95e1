package store

import (
	"errors"
	"time"

	"github.com/roach88/pinsync/internal/graph"
	"github.com/roach88/pinsync/internal/ir"
)

// ErrNotFound is returned when no workflow has the requested name.
var ErrNotFound = errors.New("workflow not found")

// Workflow is one saved graph.
type Workflow struct {
	ID            string          `json:"id" yaml:"id"`
	Name          string          `json:"name" yaml:"name"`
	Revision      int64           `json:"revision" yaml:"revision"`
	Digest        string          `json:"digest" yaml:"digest"`
	EngineVersion string          `json:"engine_version" yaml:"engine_version"`
	SavedAt       time.Time       `json:"saved_at" yaml:"saved_at"`
	Document      *graph.Document `json:"document,omitempty" yaml:"document,omitempty"`
}

// Summary is a workflow without its document.
type Summary struct {
	ID       string    `json:"id" yaml:"id"`
	Name     string    `json:"name" yaml:"name"`
	Revision int64     `json:"revision" yaml:"revision"`
	Nodes    int       `json:"nodes" yaml:"nodes"`
	SavedAt  time.Time `json:"saved_at" yaml:"saved_at"`
}

// NodeRecord is one row of the per-node index.
type NodeRecord struct {
	WorkflowID string             `json:"workflow_id" yaml:"workflow_id"`
	NodeID     graph.NodeID       `json:"node_id" yaml:"node_id"`
	Type       string             `json:"type" yaml:"type"`
	Title      string             `json:"title" yaml:"title"`
	Inputs     int                `json:"inputs" yaml:"inputs"`
	Outputs    int                `json:"outputs" yaml:"outputs"`
	Descriptor *ir.TypeDescriptor `json:"descriptor,omitempty" yaml:"descriptor,omitempty"`
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/pinsync/internal/graph"
)

// LoadWorkflow returns the workflow saved under name.
// Returns ErrNotFound if there is none.
func (s *Store) LoadWorkflow(ctx context.Context, name string) (*Workflow, error) {
	var (
		wf      Workflow
		docJSON string
		savedAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, revision, digest, document, engine_version, saved_at
		FROM workflows
		WHERE name = ?
	`, name).Scan(&wf.ID, &wf.Name, &wf.Revision, &wf.Digest, &docJSON, &wf.EngineVersion, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load workflow %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load workflow %q: %w", name, err)
	}
	doc, err := unmarshalDocument(docJSON)
	if err != nil {
		return nil, fmt.Errorf("load workflow %q: %w", name, err)
	}
	wf.Document = doc
	wf.SavedAt = time.UnixMilli(savedAt).UTC()
	return &wf, nil
}

// ListWorkflows returns every saved workflow ordered by name.
// Returns an empty slice (not nil) when the store is empty.
func (s *Store) ListWorkflows(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.id, w.name, w.revision, w.saved_at, COUNT(n.node_id)
		FROM workflows w
		LEFT JOIN nodes n ON n.workflow_id = w.id
		GROUP BY w.id
		ORDER BY w.name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var (
			sm      Summary
			savedAt int64
		)
		if err := rows.Scan(&sm.ID, &sm.Name, &sm.Revision, &savedAt, &sm.Nodes); err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		sm.SavedAt = time.UnixMilli(savedAt).UTC()
		out = append(out, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workflows: %w", err)
	}
	return out, nil
}

// ReadNodes returns the node index of one workflow ordered by node id.
func (s *Store) ReadNodes(ctx context.Context, workflowID string) ([]NodeRecord, error) {
	return s.queryNodes(ctx, `
		SELECT workflow_id, node_id, type, title, inputs, outputs, descriptor
		FROM nodes
		WHERE workflow_id = ?
		ORDER BY node_id ASC
	`, workflowID)
}

// FindNodes returns every indexed node of the given type across all
// workflows, ordered by workflow id then node id.
func (s *Store) FindNodes(ctx context.Context, nodeType string) ([]NodeRecord, error) {
	return s.queryNodes(ctx, `
		SELECT workflow_id, node_id, type, title, inputs, outputs, descriptor
		FROM nodes
		WHERE type = ?
		ORDER BY workflow_id COLLATE BINARY ASC, node_id ASC
	`, nodeType)
}

func (s *Store) queryNodes(ctx context.Context, query string, arg any) ([]NodeRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	out := []NodeRecord{}
	for rows.Next() {
		var (
			rec  NodeRecord
			id   int64
			desc sql.NullString
		)
		if err := rows.Scan(&rec.WorkflowID, &id, &rec.Type, &rec.Title, &rec.Inputs, &rec.Outputs, &desc); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		rec.NodeID = graph.NodeID(id)
		if desc.Valid {
			td, err := unmarshalDescriptor(&desc.String)
			if err != nil {
				return nil, fmt.Errorf("node %d: %w", id, err)
			}
			rec.Descriptor = td
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return out, nil
}

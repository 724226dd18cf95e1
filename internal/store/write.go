package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/pinsync/internal/graph"
	"github.com/roach88/pinsync/internal/ir"
)

// SaveWorkflow stores doc under name and rebuilds its node index.
//
// A new name gets a UUIDv7 id and revision 1. An existing name keeps its
// id; its revision and save time move only when the document digest
// changed. The returned bool reports whether anything was written.
func (s *Store) SaveWorkflow(ctx context.Context, name string, doc *graph.Document) (*Workflow, bool, error) {
	if name == "" {
		return nil, false, fmt.Errorf("save workflow: empty name")
	}
	if doc == nil {
		return nil, false, fmt.Errorf("save workflow %q: nil document", name)
	}
	docJSON, err := marshalDocument(doc)
	if err != nil {
		return nil, false, fmt.Errorf("save workflow %q: %w", name, err)
	}
	digest, err := digestDocument(docJSON)
	if err != nil {
		return nil, false, fmt.Errorf("save workflow %q: %w", name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("save workflow %q: begin tx: %w", name, err)
	}
	defer tx.Rollback() // No-op if committed

	wf := &Workflow{Name: name, Digest: digest, EngineVersion: ir.EngineVersion, Document: doc}
	var (
		prevDigest string
		prevSaved  int64
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id, revision, digest, saved_at FROM workflows WHERE name = ?
	`, name).Scan(&wf.ID, &wf.Revision, &prevDigest, &prevSaved)
	savedAt := s.now().UTC().Truncate(time.Millisecond)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		wf.ID = uuid.Must(uuid.NewV7()).String()
		wf.Revision = 1
		wf.SavedAt = savedAt
		_, err = tx.ExecContext(ctx, `
			INSERT INTO workflows (id, name, revision, digest, document, engine_version, saved_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, wf.ID, name, wf.Revision, digest, docJSON, wf.EngineVersion, savedAt.UnixMilli())
		if err != nil {
			return nil, false, fmt.Errorf("save workflow %q: insert: %w", name, err)
		}
	case err != nil:
		return nil, false, fmt.Errorf("save workflow %q: lookup: %w", name, err)
	case prevDigest == digest:
		wf.SavedAt = time.UnixMilli(prevSaved).UTC()
		slog.Debug("workflow unchanged", "name", name, "revision", wf.Revision)
		return wf, false, nil
	default:
		wf.Revision++
		wf.SavedAt = savedAt
		_, err = tx.ExecContext(ctx, `
			UPDATE workflows
			SET revision = ?, digest = ?, document = ?, engine_version = ?, saved_at = ?
			WHERE id = ?
		`, wf.Revision, digest, docJSON, wf.EngineVersion, savedAt.UnixMilli(), wf.ID)
		if err != nil {
			return nil, false, fmt.Errorf("save workflow %q: update: %w", name, err)
		}
	}

	if err := writeNodes(ctx, tx, wf.ID, doc); err != nil {
		return nil, false, fmt.Errorf("save workflow %q: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("save workflow %q: commit: %w", name, err)
	}
	slog.Info("workflow saved", "name", name, "id", wf.ID, "revision", wf.Revision, "nodes", len(doc.Nodes))
	return wf, true, nil
}

func writeNodes(ctx context.Context, tx *sql.Tx, workflowID string, doc *graph.Document) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE workflow_id = ?`, workflowID); err != nil {
		return fmt.Errorf("clear node index: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (workflow_id, node_id, type, title, inputs, outputs, descriptor)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare node index: %w", err)
	}
	defer stmt.Close()

	for _, nd := range doc.Nodes {
		desc, err := marshalDescriptor(nd)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			workflowID, int64(nd.ID), nd.Type, nd.Title, len(nd.Inputs), len(nd.Outputs), desc,
		); err != nil {
			return fmt.Errorf("index node %d: %w", nd.ID, err)
		}
	}
	return nil
}

// digestDocument hashes the stored JSON. The canonical encoding makes
// map-valued and struct-valued widgets digest alike.
func digestDocument(docJSON string) (string, error) {
	return ir.Digest(ir.DomainDocument, json.RawMessage(docJSON))
}

// DeleteWorkflow removes a workflow and its node index.
// Returns ErrNotFound if no workflow has that name.
func (s *Store) DeleteWorkflow(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workflows WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete workflow %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete workflow %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("delete workflow %q: %w", name, ErrNotFound)
	}
	return nil
}

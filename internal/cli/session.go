package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/pinsync/internal/config"
	"github.com/roach88/pinsync/internal/engine"
	"github.com/roach88/pinsync/internal/graph"
	"github.com/roach88/pinsync/internal/harness"
	"github.com/roach88/pinsync/internal/parse"
	"github.com/roach88/pinsync/internal/store"
)

// session is everything one command needs to edit a saved workflow.
type session struct {
	cfg    *config.Config
	store  *store.Store
	parser *parse.Client
	engine *engine.Engine

	// workflow is the record the graph was loaded from, nil until load.
	workflow *store.Workflow
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.DBPath != "" {
		cfg.Store.Path = opts.DBPath
	}
	if opts.ParserURL != "" {
		cfg.Parser.URL = opts.ParserURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !opts.Verbose && opts.level != nil {
		opts.level.Set(cfg.SlogLevel())
	}
	return cfg, nil
}

// openSession loads the config, opens the store and builds an engine
// backed by the parse client. Errors come back as ExitErrors already
// reported through f.
func openSession(opts *RootOptions, f *OutputFormatter, engineOpts ...engine.Option) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	client, err := parse.New(cfg.Parser.URL,
		parse.WithEndpoint(cfg.Parser.Endpoint),
		parse.WithTimeout(cfg.Parser.Timeout),
	)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "create parse client", err)
	}

	slog.Debug("opening database", "path", cfg.Store.Path)
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeStore, "open store", err)
	}

	return &session{
		cfg:    cfg,
		store:  st,
		parser: client,
		engine: engine.New(client, engineOpts...),
	}, nil
}

// load reads the named workflow into the engine.
func (s *session) load(ctx context.Context, name string, f *OutputFormatter) error {
	wf, err := s.store.LoadWorkflow(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("workflow %q not found", name), nil)
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "load workflow", err)
	}
	if err := s.engine.Load(wf.Document); err != nil {
		return f.Fail(ExitFailure, ErrCodeGraph, fmt.Sprintf("workflow %q", name), err)
	}
	s.workflow = wf
	slog.Debug("workflow loaded", "name", name, "revision", wf.Revision, "nodes", len(wf.Document.Nodes))
	return nil
}

// save serializes the engine's graph back under name.
func (s *session) save(ctx context.Context, name string, f *OutputFormatter) (*store.Workflow, error) {
	doc, err := s.engine.Serialize()
	if err != nil {
		return nil, f.Fail(ExitFailure, ErrCodeGraph, "serialize graph", err)
	}
	wf, changed, err := s.store.SaveWorkflow(ctx, name, doc)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeStore, "save workflow", err)
	}
	slog.Debug("workflow saved", "name", name, "revision", wf.Revision, "changed", changed)
	return wf, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// parseEndpoint turns "id:slot" into a node id and slot index.
func parseEndpoint(s string) (graph.NodeID, int, error) {
	alias, slot, err := harness.ParseEndpoint(s)
	if err != nil {
		return 0, 0, err
	}
	id, err := strconv.Atoi(alias)
	if err != nil || id <= 0 {
		return 0, 0, fmt.Errorf("endpoint %q: bad node id %q", s, alias)
	}
	return graph.NodeID(id), slot, nil
}

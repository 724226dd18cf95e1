package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/pinsync/internal/bridge"
	"github.com/roach88/pinsync/internal/graph"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr       string
	SaveOnExit bool

	// Ready, when set, receives the bound address once the listener is up.
	Ready func(addr string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve <name>",
		Short: "Serve a workflow to an editor over HTTP",
		Long: `Load a saved workflow and start the engine loop with an HTTP bridge.

Every request runs on the engine's single-writer loop, so concurrent edits
are applied one at a time. Highway updates call the parsing service off
the loop; an answer that arrives after a newer update was requested is
discarded.

Example:
  pinsync serve demo
  pinsync serve demo --addr 127.0.0.1:9000 --parser-url http://127.0.0.1:8188`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides serve.addr)")
	cmd.Flags().BoolVar(&opts.SaveOnExit, "save-on-exit", true, "save the workflow when the server stops")

	return cmd
}

func runServe(opts *ServeOptions, name string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	s, err := openSession(opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.load(cmd.Context(), name, f); err != nil {
		return err
	}

	addr := opts.Addr
	if addr == "" {
		addr = s.cfg.Serve.Addr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "listen", err)
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	// The loop outlives ctx so the final save can still be submitted.
	loopErr := make(chan error, 1)
	go func() {
		err := s.engine.Run(context.Background())
		if err != nil {
			cancel()
		}
		loopErr <- err
	}()

	srv := &http.Server{
		Handler:           bridge.New(s.engine, s.store, name).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	slog.Info("bridge listening", "addr", ln.Addr().String(), "workflow", name, "parser", s.parser.URL())
	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on http://%s\n", name, ln.Addr())
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")
	if opts.Ready != nil {
		opts.Ready(ln.Addr().String())
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = WrapExitError(ExitCommandError, "http server", err)
		}
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}

	if opts.SaveOnExit {
		if err := saveFromLoop(shutdownCtx, s, name); err != nil {
			slog.Error("final save failed", "workflow", name, "error", err)
			if runErr == nil {
				runErr = WrapExitError(ExitFailure, "final save", err)
			}
		}
	}

	s.engine.Stop()
	if err := <-loopErr; err != nil && runErr == nil {
		runErr = WrapExitError(ExitFailure, "engine error", err)
	}

	slog.Info("bridge stopped", "workflow", name)
	return runErr
}

// saveFromLoop serializes the graph on the engine loop and saves it.
func saveFromLoop(ctx context.Context, s *session, name string) error {
	var doc *graph.Document
	err := s.engine.Submit(ctx, func(g *graph.Graph) error {
		var err error
		doc, err = g.Serialize()
		return err
	})
	if err != nil {
		return err
	}
	wf, changed, err := s.store.SaveWorkflow(ctx, name, doc)
	if err != nil {
		return err
	}
	slog.Info("workflow saved", "workflow", name, "revision", wf.Revision, "changed", changed)
	return nil
}

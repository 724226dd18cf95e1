package cli

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	DBPath     string
	ParserURL  string

	// level is shared by the default slog handler so the config file can
	// lower or raise it after flags are parsed.
	level *slog.LevelVar
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the pinsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{level: new(slog.LevelVar)}

	cmd := &cobra.Command{
		Use:   "pinsync",
		Short: "pinsync - dynamic pins for node graphs",
		Long: `Manage workflows built from Highway and Junction nodes.

A Highway derives its pins from a query parsed by an external service.
A Junction grows and shrinks its pins as links are attached and removed.
Workflows are kept in a SQLite store and edited through this CLI or the
HTTP bridge started by "pinsync serve".`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			setupLogging(opts)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "pinsync.yaml", "path to the config file")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "workflow database (overrides store.path)")
	cmd.PersistentFlags().StringVar(&opts.ParserURL, "parser-url", "", "parsing service base URL (overrides parser.url)")

	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewConnectCommand(opts))
	cmd.AddCommand(NewDisconnectCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// setupLogging installs the default text handler on stderr. --verbose
// pins the level to debug; otherwise the config file decides.
func setupLogging(opts *RootOptions) {
	if opts.level == nil {
		opts.level = new(slog.LevelVar)
	}
	if opts.Verbose {
		opts.level.Set(slog.LevelDebug)
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: opts.level})
	slog.SetDefault(slog.New(handler))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

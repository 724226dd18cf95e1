package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/pinsync/internal/engine"
	"github.com/roach88/pinsync/internal/graph"
	"github.com/roach88/pinsync/internal/ir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid        bool              `json:"valid"`
	Version      string            `json:"version"`
	Nodes        int               `json:"nodes"`
	Links        int               `json:"links"`
	DroppedLinks int               `json:"dropped_links"`
	Highways     []HighwaySummary  `json:"highways,omitempty"`
	Junctions    []JunctionSummary `json:"junctions,omitempty"`
	Renames      []RenameSummary   `json:"renames,omitempty"`
	Errors       []string          `json:"errors,omitempty"`
}

// HighwaySummary describes one Highway after load.
type HighwaySummary struct {
	ID    graph.NodeID      `json:"id"`
	Query string            `json:"query"`
	Pins  ir.TypeDescriptor `json:"pins"`
}

// JunctionSummary describes one Junction after load.
type JunctionSummary struct {
	ID      graph.NodeID `json:"id"`
	Inputs  int          `json:"inputs"`
	Outputs int          `json:"outputs"`
}

// RenameSummary is one pin renamed while the document was loaded.
type RenameSummary struct {
	Node graph.NodeID `json:"node"`
	Dir  string       `json:"dir"`
	From string       `json:"from"`
	To   string       `json:"to"`
}

func (r ValidationResult) RenderText(w io.Writer) {
	if !r.Valid {
		fmt.Fprintln(w, "✗ Document is invalid")
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		return
	}
	fmt.Fprintf(w, "✓ Document valid (version %s): %d nodes, %d links\n", r.Version, r.Nodes, r.Links)
	if r.DroppedLinks > 0 {
		fmt.Fprintf(w, "  %d dangling link(s) dropped\n", r.DroppedLinks)
	}
	for _, h := range r.Highways {
		fmt.Fprintf(w, "  Highway #%d %q\n", h.ID, h.Query)
		renderDescriptor(w, "    ", h.Pins)
	}
	for _, j := range r.Junctions {
		fmt.Fprintf(w, "  Junction #%d in=%d out=%d\n", j.ID, j.Inputs, j.Outputs)
	}
	for _, rn := range r.Renames {
		fmt.Fprintf(w, "  renamed #%d %s %s -> %s\n", rn.Node, rn.Dir, rn.From, rn.To)
	}
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a workflow document without saving it",
		Long: `Load a YAML or JSON workflow document into a scratch graph and report
what the load did: links dropped for missing endpoints, pins renamed by
legacy migration, and the pins every Highway and Junction ends up with.

No parsing service or store is contacted.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	doc, err := readDocument(path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidFile, path, err)
	}
	f.VerboseLog("Read %d node(s) and %d link(s) from %s", len(doc.Nodes), len(doc.Links), path)

	result := validateDocument(doc)
	if err := f.Success(result); err != nil {
		return err
	}
	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%d validation error(s)", len(result.Errors)))
	}
	return nil
}

// validateDocument loads doc into a scratch engine and summarizes the
// outcome.
func validateDocument(doc *graph.Document) ValidationResult {
	result := ValidationResult{Version: doc.Version, Nodes: len(doc.Nodes)}

	eng := engine.New(nil, engine.WithNotifier(engine.LogNotifier{}))

	if doc.Version != "" && doc.Version != ir.DocumentVersion {
		result.Errors = append(result.Errors, fmt.Sprintf("unsupported document version %q (want %q)", doc.Version, ir.DocumentVersion))
	}
	if err := eng.Load(doc); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
	if len(result.Errors) > 0 {
		return result
	}

	g := eng.Graph()
	result.Valid = true
	result.Links = len(g.Links())
	result.DroppedLinks = len(doc.Links) - result.Links
	result.Renames = loadRenames(doc, g)

	for _, n := range g.Nodes() {
		switch n.Type {
		case engine.TypeHighway:
			_, h, err := eng.Highway(n.ID)
			if err != nil {
				continue
			}
			result.Highways = append(result.Highways, HighwaySummary{ID: n.ID, Query: h.Accepted(), Pins: engine.Describe(n)})
		case engine.TypeJunction:
			_, j, err := eng.Junction(n.ID)
			if err != nil {
				continue
			}
			in, out := j.Counts()
			result.Junctions = append(result.Junctions, JunctionSummary{ID: n.ID, Inputs: in, Outputs: out})
		}
	}
	return result
}

// loadRenames lists the pins whose loaded name differs from the document
// at the same slot.
func loadRenames(doc *graph.Document, g *graph.Graph) []RenameSummary {
	var out []RenameSummary
	for _, nd := range doc.Nodes {
		n, err := g.Node(nd.ID)
		if err != nil {
			continue
		}
		for _, side := range []struct {
			dir  ir.Direction
			data []graph.PinData
		}{{ir.DirectionInput, nd.Inputs}, {ir.DirectionOutput, nd.Outputs}} {
			live := n.Pins(side.dir)
			for i, pd := range side.data {
				if i < len(live) && live[i].Name != pd.Name {
					out = append(out, RenameSummary{Node: n.ID, Dir: side.dir.String(), From: pd.Name, To: live[i].Name})
				}
			}
		}
	}
	return out
}

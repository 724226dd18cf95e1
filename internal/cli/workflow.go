package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/pinsync/internal/bridge"
	"github.com/roach88/pinsync/internal/graph"
	"github.com/roach88/pinsync/internal/ir"
	"github.com/roach88/pinsync/internal/store"
)

// readDocument decodes a workflow document file. JSON is accepted too,
// since every JSON document is valid YAML.
func readDocument(path string) (*graph.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	var doc graph.Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &doc, nil
}

// SavedWorkflow is the payload of import and the editing commands.
type SavedWorkflow struct {
	Name     string `json:"name"`
	ID       string `json:"id"`
	Revision int64  `json:"revision"`
	Nodes    int    `json:"nodes"`
	Links    int    `json:"links"`
}

func savedWorkflow(wf *store.Workflow) SavedWorkflow {
	return SavedWorkflow{
		Name:     wf.Name,
		ID:       wf.ID,
		Revision: wf.Revision,
		Nodes:    len(wf.Document.Nodes),
		Links:    len(wf.Document.Links),
	}
}

func (s SavedWorkflow) RenderText(w io.Writer) {
	fmt.Fprintf(w, "✓ %s saved (revision %d, %d nodes, %d links)\n", s.Name, s.Revision, s.Nodes, s.Links)
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a workflow document into the store",
		Long: `Import a YAML or JSON workflow document.

The document is loaded into a fresh graph before it is saved, so legacy
pin names are migrated and dangling links are dropped on the way in.
Importing over an existing name bumps its revision when the content changed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, cmd, args[0], name)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "workflow name (required)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runImport(opts *RootOptions, cmd *cobra.Command, path, name string) error {
	f := newFormatter(opts, cmd)

	doc, err := readDocument(path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidFile, path, err)
	}

	s, err := openSession(opts, f)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.engine.Load(doc); err != nil {
		return f.Fail(ExitFailure, ErrCodeGraph, path, err)
	}
	wf, err := s.save(cmd.Context(), name, f)
	if err != nil {
		return err
	}
	return f.Success(savedWorkflow(wf))
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:           "export <name>",
		Short:         "Write a saved workflow document as YAML",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(rootOpts, cmd, args[0], output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")

	return cmd
}

func runExport(opts *RootOptions, cmd *cobra.Command, name, output string) error {
	f := newFormatter(opts, cmd)

	s, err := openSession(opts, f)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.load(cmd.Context(), name, f); err != nil {
		return err
	}
	if output == "" && opts.Format == "json" {
		return f.Success(s.workflow)
	}

	data, err := yaml.Marshal(s.workflow.Document)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeGraph, "marshal document", err)
	}
	if output == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "write document", err)
	}
	f.VerboseLog("Wrote %s (revision %d) to %s", name, s.workflow.Revision, output)
	return f.Success(fmt.Sprintf("✓ %s exported to %s", name, output))
}

// WorkflowList is the payload of list without --type.
type WorkflowList struct {
	Workflows []store.Summary `json:"workflows"`
}

func (l WorkflowList) RenderText(w io.Writer) {
	if len(l.Workflows) == 0 {
		fmt.Fprintln(w, "No workflows.")
		return
	}
	for _, s := range l.Workflows {
		fmt.Fprintf(w, "%-24s rev %-4d %3d nodes  %s\n", s.Name, s.Revision, s.Nodes, s.ID)
	}
}

// NodeList is the payload of show and of list --type.
type NodeList struct {
	Nodes []store.NodeRecord `json:"nodes"`
}

func (l NodeList) RenderText(w io.Writer) {
	if len(l.Nodes) == 0 {
		fmt.Fprintln(w, "No nodes.")
		return
	}
	for _, n := range l.Nodes {
		fmt.Fprintf(w, "#%-4d %-10s %-20s in=%d out=%d\n", n.NodeID, n.Type, n.Title, n.Inputs, n.Outputs)
		if n.Descriptor != nil {
			renderDescriptor(w, "      ", *n.Descriptor)
		}
	}
}

func renderDescriptor(w io.Writer, indent string, d ir.TypeDescriptor) {
	for _, p := range d.In {
		fmt.Fprintf(w, "%sin  %-20s %s\n", indent, p.FullName, p.Type)
	}
	for _, p := range d.Out {
		fmt.Fprintf(w, "%sout %-20s %s\n", indent, p.FullName, p.Type)
	}
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var nodeType string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved workflows, or nodes of one type across workflows",
		Example: `  pinsync list
  pinsync list --type Highway --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, cmd, nodeType)
		},
	}

	cmd.Flags().StringVar(&nodeType, "type", "", "list nodes of this type instead of workflows")

	return cmd
}

func runList(opts *RootOptions, cmd *cobra.Command, nodeType string) error {
	f := newFormatter(opts, cmd)

	s, err := openSession(opts, f)
	if err != nil {
		return err
	}
	defer s.Close()

	if nodeType != "" {
		nodes, err := s.store.FindNodes(cmd.Context(), nodeType)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "find nodes", err)
		}
		return f.Success(NodeList{Nodes: nodes})
	}

	summaries, err := s.store.ListWorkflows(cmd.Context())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "list workflows", err)
	}
	return f.Success(WorkflowList{Workflows: summaries})
}

// NodeDetail is the live state of one node, as show --node prints it.
type NodeDetail struct {
	bridge.NodeView
}

func (d NodeDetail) RenderText(w io.Writer) {
	fmt.Fprintf(w, "#%d %s (%s)\n", d.ID, d.Title, d.Type)
	for _, name := range slices.Sorted(maps.Keys(d.Widgets)) {
		fmt.Fprintf(w, "  %s = %q\n", name, d.Widgets[name])
	}
	for _, p := range d.Inputs {
		fmt.Fprintf(w, "  in  [%d] %-20s %-12s %v\n", p.Slot, p.Name, p.Type, p.Links)
	}
	for _, p := range d.Outputs {
		fmt.Fprintf(w, "  out [%d] %-20s %-12s %v\n", p.Slot, p.Name, p.Type, p.Links)
	}
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	var nodeID int

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show the nodes of a saved workflow",
		Long: `Show the nodes of a saved workflow.

Without --node, prints the stored node index with each node's typed pins.
With --node, loads the workflow and prints that node's live pins, links
and widget values.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, cmd, args[0], graph.NodeID(nodeID))
		},
	}

	cmd.Flags().IntVar(&nodeID, "node", 0, "node id to inspect")

	return cmd
}

func runShow(opts *RootOptions, cmd *cobra.Command, name string, nodeID graph.NodeID) error {
	f := newFormatter(opts, cmd)

	s, err := openSession(opts, f)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.load(cmd.Context(), name, f); err != nil {
		return err
	}

	if nodeID == 0 {
		nodes, err := s.store.ReadNodes(cmd.Context(), s.workflow.ID)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "read nodes", err)
		}
		return f.Success(NodeList{Nodes: nodes})
	}

	n, err := s.engine.Graph().Node(nodeID)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("node %d", nodeID), err)
	}
	return f.Success(NodeDetail{bridge.ViewNode(n)})
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <name>",
		Short:         "Delete a saved workflow",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, cmd, args[0])
		},
	}
}

func runDelete(opts *RootOptions, cmd *cobra.Command, name string) error {
	f := newFormatter(opts, cmd)

	s, err := openSession(opts, f)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.store.DeleteWorkflow(cmd.Context(), name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("workflow %q not found", name), nil)
		}
		return f.Fail(ExitCommandError, ErrCodeStore, "delete workflow", err)
	}
	return f.Success(fmt.Sprintf("✓ %s deleted", name))
}

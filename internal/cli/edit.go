package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pinsync/internal/bridge"
	"github.com/roach88/pinsync/internal/engine"
	"github.com/roach88/pinsync/internal/graph"
)

// LinkChange is the payload of connect.
type LinkChange struct {
	Link     bridge.LinkView `json:"link"`
	Workflow SavedWorkflow   `json:"workflow"`
}

func (c LinkChange) RenderText(w io.Writer) {
	l := c.Link
	fmt.Fprintf(w, "✓ link %d: %d:%d -> %d:%d (%s)\n", l.ID, l.OriginID, l.OriginSlot, l.TargetID, l.TargetSlot, l.Type)
	c.Workflow.RenderText(w)
}

// NewConnectCommand creates the connect command.
func NewConnectCommand(rootOpts *RootOptions) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "connect <name>",
		Short: "Wire an output slot to an input slot and save",
		Long: `Wire an output slot to an input slot and save the workflow.

Endpoints are written node-id:slot. Connecting into a Junction placeholder
adds a typed pin and a fresh placeholder; connecting into a Highway pin
types it after the source.`,
		Example:       `  pinsync connect demo --from 1:0 --to 2:1`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnect(rootOpts, cmd, args[0], from, to)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "origin node-id:output-slot (required)")
	cmd.Flags().StringVar(&to, "to", "", "target node-id:input-slot (required)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func runConnect(opts *RootOptions, cmd *cobra.Command, name, from, to string) error {
	f := newFormatter(opts, cmd)

	originID, originSlot, err := parseEndpoint(from)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "invalid --from", err)
	}
	targetID, targetSlot, err := parseEndpoint(to)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "invalid --to", err)
	}

	s, err := openSession(opts, f)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.load(cmd.Context(), name, f); err != nil {
		return err
	}
	l, err := s.engine.Connect(engine.ConnectRequest{
		OriginID: originID, OriginSlot: originSlot,
		TargetID: targetID, TargetSlot: targetSlot,
	})
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeGraph, "connect", err)
	}
	f.VerboseLog("Created link %d", l.ID)

	wf, err := s.save(cmd.Context(), name, f)
	if err != nil {
		return err
	}
	return f.Success(LinkChange{Link: bridge.ViewLink(l), Workflow: savedWorkflow(wf)})
}

// NewDisconnectCommand creates the disconnect command.
func NewDisconnectCommand(rootOpts *RootOptions) *cobra.Command {
	var linkID int

	cmd := &cobra.Command{
		Use:           "disconnect <name>",
		Short:         "Remove a link and save",
		Example:       `  pinsync disconnect demo --link 3`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDisconnect(rootOpts, cmd, args[0], graph.LinkID(linkID))
		},
	}

	cmd.Flags().IntVar(&linkID, "link", 0, "link id (required)")
	_ = cmd.MarkFlagRequired("link")

	return cmd
}

func runDisconnect(opts *RootOptions, cmd *cobra.Command, name string, linkID graph.LinkID) error {
	f := newFormatter(opts, cmd)

	s, err := openSession(opts, f)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.load(cmd.Context(), name, f); err != nil {
		return err
	}
	if err := s.engine.Disconnect(linkID); err != nil {
		return f.Fail(ExitFailure, ErrCodeGraph, "disconnect", err)
	}

	wf, err := s.save(cmd.Context(), name, f)
	if err != nil {
		return err
	}
	return f.Success(savedWorkflow(wf))
}

// UpdateSummary is the payload of a successful update.
type UpdateSummary struct {
	Result   *engine.UpdateResult `json:"result"`
	Workflow SavedWorkflow        `json:"workflow"`
}

func (u UpdateSummary) RenderText(w io.Writer) {
	r := u.Result
	fmt.Fprintf(w, "✓ node %d %s (generation %d)\n", r.NodeID, r.Status, r.Generation)
	if r.Report != nil {
		fmt.Fprintf(w, "  inputs=%d outputs=%d restored=%d dropped=%d\n",
			r.Report.Inputs, r.Report.Outputs, r.Report.Restored, r.Report.Dropped)
	}
	u.Workflow.RenderText(w)
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		nodeID int
		query  string
	)

	cmd := &cobra.Command{
		Use:   "update <name>",
		Short: "Re-parse a Highway query and rebuild its pins",
		Long: `Send a Highway's query to the parsing service and rebuild its pins.

With --query the node's query text is replaced first; without it the
current text is parsed again. Links whose pin name survives the rebuild
are restored. A rejected query leaves the workflow untouched.

Exit codes:
  0 - Pins rebuilt and workflow saved
  1 - The parsing service rejected the query
  2 - Command error, or the parsing service could not be reached`,
		Example:       `  pinsync update demo --node 2 --query "a + b"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var q *string
			if cmd.Flags().Changed("query") {
				q = &query
			}
			return runUpdate(rootOpts, cmd, args[0], graph.NodeID(nodeID), q)
		},
	}

	cmd.Flags().IntVar(&nodeID, "node", 0, "Highway node id (required)")
	cmd.Flags().StringVar(&query, "query", "", "new query text")
	_ = cmd.MarkFlagRequired("node")

	return cmd
}

func runUpdate(opts *RootOptions, cmd *cobra.Command, name string, nodeID graph.NodeID, query *string) error {
	f := newFormatter(opts, cmd)

	s, err := openSession(opts, f)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.load(cmd.Context(), name, f); err != nil {
		return err
	}
	f.VerboseLog("Parsing via %s", s.parser.URL())

	res, err := s.engine.UpdateNow(cmd.Context(), nodeID, query)
	switch {
	case engine.IsUnknownNodeError(err):
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("node %d is not a Highway", nodeID), nil)
	case engine.IsValidationError(err):
		var details []string
		if res != nil {
			details = res.Errors
		}
		msg := "query rejected: " + strings.Join(details, "; ")
		if outErr := f.Error(ErrCodeRejected, msg, details); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, "query rejected", err)
	case engine.IsTransportError(err):
		return f.Fail(ExitCommandError, ErrCodeTransport, "parsing service unavailable", err)
	case err != nil:
		return f.Fail(ExitFailure, ErrCodeGraph, "update", err)
	}

	wf, err := s.save(cmd.Context(), name, f)
	if err != nil {
		return err
	}
	return f.Success(UpdateSummary{Result: res, Workflow: savedWorkflow(wf)})
}

package engine

import (
	"log/slog"
	"strings"

	"github.com/roach88/pinsync/internal/graph"
)

// Notifier is the user-visible dialog surface. Validation failures pass
// every message from the parsing service; transport failures pass one
// generic notice.
type Notifier interface {
	Notify(n *graph.Node, title string, messages []string)
}

// LogNotifier reports through slog. It is the default when no dialog is
// attached (CLI, tests).
type LogNotifier struct{}

// Notify logs one warning with the messages joined by newlines.
func (LogNotifier) Notify(n *graph.Node, title string, messages []string) {
	slog.Warn(title, "node", n.ID, "messages", strings.Join(messages, "\n"))
}

// RecordingNotifier keeps every notice. Safe only on the loop goroutine.
type RecordingNotifier struct {
	Notices []Notice
}

// Notice is one recorded notification.
type Notice struct {
	NodeID   graph.NodeID
	Title    string
	Messages []string
}

// Notify records the notice.
func (r *RecordingNotifier) Notify(n *graph.Node, title string, messages []string) {
	r.Notices = append(r.Notices, Notice{NodeID: n.ID, Title: title, Messages: append([]string(nil), messages...)})
}

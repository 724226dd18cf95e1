package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/pinsync/internal/graph"
	"github.com/roach88/pinsync/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestDocument returns a Source wired into a Highway with one typed
// input, carrying the widgets a serialized Highway has.
func createTestDocument(query string) *graph.Document {
	return &graph.Document{
		Version:    ir.DocumentVersion,
		LastNodeID: 2,
		LastLinkID: 1,
		Nodes: []graph.NodeData{
			{
				ID: 1, Type: "Source", Title: "Source",
				Outputs: []graph.PinData{{Name: "o", OrigName: "o", Type: "INT", Links: []graph.LinkID{1}}},
			},
			{
				ID: 2, Type: "Highway", Title: "Highway",
				Inputs: []graph.PinData{
					{Name: "_way_in", OrigName: "_way_in", Type: "HIGHWAY_PIPE"},
					{Name: "+seed:INT", OrigName: "+seed", Type: "INT", Link: 1},
				},
				Outputs: []graph.PinData{{Name: "_way_out", OrigName: "_way_out", Type: "HIGHWAY_PIPE"}},
				Widgets: []graph.WidgetData{
					{Name: "_query", Value: ir.UpdateValue{Data: query, Update: "abc"}},
					{Name: "_type", Value: ir.TypeDescriptor{
						In:  []ir.PinDescriptor{{Name: "+seed", FullName: "+seed:INT", Type: "INT"}},
						Out: []ir.PinDescriptor{},
					}},
				},
			},
		},
		Links: []graph.LinkData{{ID: 1, OriginID: 1, OriginSlot: 0, TargetID: 2, TargetSlot: 1, Type: "INT"}},
	}
}

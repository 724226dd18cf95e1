package bridge

import (
	"github.com/roach88/pinsync/internal/graph"
)

// NodeView is the live state of one node as the editor sees it.
type NodeView struct {
	ID      graph.NodeID      `json:"id"`
	Type    string            `json:"type"`
	Title   string            `json:"title"`
	Inputs  []PinView         `json:"inputs"`
	Outputs []PinView         `json:"outputs"`
	Widgets map[string]string `json:"widgets,omitempty"`
}

// PinView is one pin of a NodeView.
type PinView struct {
	Slot  int            `json:"slot"`
	Name  string         `json:"name"`
	Type  string         `json:"type"`
	Links []graph.LinkID `json:"links,omitempty"`
}

// LinkView is one link.
type LinkView struct {
	ID         graph.LinkID `json:"id"`
	OriginID   graph.NodeID `json:"origin_id"`
	OriginSlot int          `json:"origin_slot"`
	TargetID   graph.NodeID `json:"target_id"`
	TargetSlot int          `json:"target_slot"`
	Type       string       `json:"type"`
}

// ViewNode snapshots n. Read-only widgets are derived and left out.
// Must run on the engine loop.
func ViewNode(n *graph.Node) NodeView {
	v := NodeView{
		ID:      n.ID,
		Type:    n.Type,
		Title:   n.Title,
		Inputs:  make([]PinView, 0, len(n.Inputs)),
		Outputs: make([]PinView, 0, len(n.Outputs)),
	}
	for i, p := range n.Inputs {
		pv := PinView{Slot: i, Name: p.Name, Type: p.Type}
		if p.Link != 0 {
			pv.Links = []graph.LinkID{p.Link}
		}
		v.Inputs = append(v.Inputs, pv)
	}
	for i, p := range n.Outputs {
		pv := PinView{Slot: i, Name: p.Name, Type: p.Type}
		if len(p.Links) > 0 {
			pv.Links = append([]graph.LinkID(nil), p.Links...)
		}
		v.Outputs = append(v.Outputs, pv)
	}
	for _, w := range n.Widgets {
		if w.ReadOnly {
			continue
		}
		if v.Widgets == nil {
			v.Widgets = make(map[string]string)
		}
		v.Widgets[w.Name] = w.Value
	}
	return v
}

// ViewLink snapshots l.
func ViewLink(l *graph.Link) LinkView {
	return LinkView{
		ID:         l.ID,
		OriginID:   l.OriginID,
		OriginSlot: l.OriginSlot,
		TargetID:   l.TargetID,
		TargetSlot: l.TargetSlot,
		Type:       l.Type,
	}
}

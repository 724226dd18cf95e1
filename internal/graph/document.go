package graph

import (
	"fmt"
	"log/slog"

	"github.com/roach88/pinsync/internal/ir"
)

// Document is the persisted form of a graph. It carries only what is
// needed to rebuild nodes and restore connections.
type Document struct {
	Version    string     `json:"version" yaml:"version"`
	LastNodeID NodeID     `json:"last_node_id" yaml:"last_node_id"`
	LastLinkID LinkID     `json:"last_link_id" yaml:"last_link_id"`
	Nodes      []NodeData `json:"nodes" yaml:"nodes"`
	Links      []LinkData `json:"links" yaml:"links"`
}

// NodeData is one serialized node.
type NodeData struct {
	ID      NodeID       `json:"id" yaml:"id"`
	Type    string       `json:"type" yaml:"type"`
	Title   string       `json:"title,omitempty" yaml:"title,omitempty"`
	Inputs  []PinData    `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs []PinData    `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Widgets []WidgetData `json:"widgets,omitempty" yaml:"widgets,omitempty"`
}

// PinData is one serialized pin. OrigName may be absent in documents
// written by older versions.
type PinData struct {
	Name     string   `json:"name" yaml:"name"`
	OrigName string   `json:"orig_name,omitempty" yaml:"orig_name,omitempty"`
	Type     string   `json:"type" yaml:"type"`
	Link     LinkID   `json:"link,omitempty" yaml:"link,omitempty"`
	Links    []LinkID `json:"links,omitempty" yaml:"links,omitempty"`
}

// WidgetData is one serialized widget value.
type WidgetData struct {
	Name  string `json:"name" yaml:"name"`
	Value any    `json:"value" yaml:"value"`
}

// LinkData is one serialized link.
type LinkData struct {
	ID         LinkID `json:"id" yaml:"id"`
	OriginID   NodeID `json:"origin_id" yaml:"origin_id"`
	OriginSlot int    `json:"origin_slot" yaml:"origin_slot"`
	TargetID   NodeID `json:"target_id" yaml:"target_id"`
	TargetSlot int    `json:"target_slot" yaml:"target_slot"`
	Type       string `json:"type" yaml:"type"`
}

// Serialize captures the graph as a Document. Widget serialize hooks run
// here, so gated widgets compute their content hash at this point.
func (g *Graph) Serialize() (*Document, error) {
	doc := &Document{
		Version:    ir.DocumentVersion,
		LastNodeID: g.lastNodeID,
		LastLinkID: g.lastLinkID,
		Nodes:      make([]NodeData, 0, len(g.order)),
		Links:      make([]LinkData, 0, len(g.links)),
	}
	for _, n := range g.Nodes() {
		nd := NodeData{ID: n.ID, Type: n.Type, Title: n.Title}
		for _, p := range n.Inputs {
			nd.Inputs = append(nd.Inputs, PinData{Name: p.Name, OrigName: p.OrigName, Type: p.Type, Link: p.Link})
		}
		for _, p := range n.Outputs {
			pd := PinData{Name: p.Name, OrigName: p.OrigName, Type: p.Type}
			if len(p.Links) > 0 {
				pd.Links = append([]LinkID(nil), p.Links...)
			}
			nd.Outputs = append(nd.Outputs, pd)
		}
		for _, w := range n.Widgets {
			var v any = w.Value
			if w.Serialize != nil {
				sv, err := w.Serialize(w)
				if err != nil {
					return nil, fmt.Errorf("serialize node %d widget %q: %w", n.ID, w.Name, err)
				}
				v = sv
			}
			nd.Widgets = append(nd.Widgets, WidgetData{Name: w.Name, Value: v})
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	for _, l := range g.Links() {
		doc.Links = append(doc.Links, LinkData{
			ID: l.ID, OriginID: l.OriginID, OriginSlot: l.OriginSlot,
			TargetID: l.TargetID, TargetSlot: l.TargetSlot, Type: l.Type,
		})
	}
	return doc, nil
}

// Load replaces the graph's contents with doc.
//
// Links are registered first. Each node is then created (OnCreated runs),
// its pins and widgets are overwritten from the document, and its
// OnConfigure hook runs. A node whose pins referenced links missing from
// the document has those references cleared and receives one bulk-load
// OnConnectionsChange event.
func (g *Graph) Load(doc *Document) error {
	g.nodes = make(map[NodeID]*Node)
	g.order = nil
	g.links = make(map[LinkID]*Link)
	g.lastNodeID = doc.LastNodeID
	g.lastLinkID = doc.LastLinkID

	byID := make(map[NodeID]*NodeData, len(doc.Nodes))
	for i := range doc.Nodes {
		byID[doc.Nodes[i].ID] = &doc.Nodes[i]
	}
	// An input holds one link. The one its pin references wins, otherwise
	// the first listed.
	holder := make(map[inputKey]LinkID)
	for _, ld := range doc.Links {
		origin, target := byID[ld.OriginID], byID[ld.TargetID]
		if origin == nil || target == nil ||
			ld.OriginSlot < 0 || ld.OriginSlot >= len(origin.Outputs) ||
			ld.TargetSlot < 0 || ld.TargetSlot >= len(target.Inputs) {
			slog.Debug("dropping link with missing endpoint", "link", ld.ID)
			continue
		}
		key := inputKey{ld.TargetID, ld.TargetSlot}
		if prev, ok := holder[key]; ok {
			if target.Inputs[ld.TargetSlot].Link != ld.ID {
				slog.Debug("dropping link into an occupied input", "link", ld.ID, "holder", prev)
				continue
			}
			slog.Debug("dropping link into an occupied input", "link", prev, "holder", ld.ID)
			delete(g.links, prev)
		}
		holder[key] = ld.ID
		g.links[ld.ID] = &Link{
			ID: ld.ID, OriginID: ld.OriginID, OriginSlot: ld.OriginSlot,
			TargetID: ld.TargetID, TargetSlot: ld.TargetSlot, Type: ld.Type,
		}
		if ld.ID > g.lastLinkID {
			g.lastLinkID = ld.ID
		}
	}

	nodes := make([]*Node, 0, len(doc.Nodes))
	for i := range doc.Nodes {
		nd := &doc.Nodes[i]
		n := g.add(nd.ID, g.specFor(nd.Type, nd.Title))
		g.restorePins(n, nd, true)
		nodes = append(nodes, n)
	}
	for i, n := range nodes {
		if err := g.configure(n, &doc.Nodes[i], 0); err != nil {
			return err
		}
	}
	return nil
}

// Paste adds the nodes of doc to the graph under fresh ids. Links between
// pasted nodes are recreated through Connect after every pasted node is
// configured; links to nodes outside doc are dropped.
func (g *Graph) Paste(doc *Document) ([]*Node, error) {
	remap := make(map[NodeID]NodeID, len(doc.Nodes))
	nodes := make([]*Node, 0, len(doc.Nodes))
	dropped := make([]int, 0, len(doc.Nodes))
	for i := range doc.Nodes {
		nd := &doc.Nodes[i]
		g.lastNodeID++
		remap[nd.ID] = g.lastNodeID
		n := g.add(g.lastNodeID, g.specFor(nd.Type, nd.Title))
		dropped = append(dropped, g.restorePins(n, nd, false))
		nodes = append(nodes, n)
	}
	for i, n := range nodes {
		if err := g.configure(n, &doc.Nodes[i], dropped[i]); err != nil {
			return nodes, err
		}
	}
	for _, ld := range doc.Links {
		origin, ok1 := remap[ld.OriginID]
		target, ok2 := remap[ld.TargetID]
		if !ok1 || !ok2 {
			continue
		}
		if _, err := g.Connect(origin, ld.OriginSlot, target, ld.TargetSlot); err != nil {
			if IsSlotError(err) {
				slog.Debug("pasted link no longer fits", "link", ld.ID, "error", err)
				continue
			}
			return nodes, fmt.Errorf("paste link %d: %w", ld.ID, err)
		}
	}
	return nodes, nil
}

// restorePins overwrites a freshly created node's pins and widgets from nd.
// With keepLinks, link references are copied verbatim and configure decides
// which are live. Without it they are dropped and counted.
func (g *Graph) restorePins(n *Node, nd *NodeData, keepLinks bool) int {
	dropped := 0
	n.Inputs = n.Inputs[:0]
	for _, pd := range nd.Inputs {
		p := &Pin{Name: pd.Name, OrigName: pd.OrigName, Type: pd.Type, Link: pd.Link}
		if !keepLinks && p.Link != 0 {
			p.Link = 0
			dropped++
		}
		n.Inputs = append(n.Inputs, p)
	}
	n.Outputs = n.Outputs[:0]
	for _, pd := range nd.Outputs {
		p := &Pin{Name: pd.Name, OrigName: pd.OrigName, Type: pd.Type}
		if keepLinks {
			p.Links = append([]LinkID(nil), pd.Links...)
		} else {
			dropped += len(pd.Links)
		}
		n.Outputs = append(n.Outputs, p)
	}
	for _, wd := range nd.Widgets {
		if w := n.Widget(wd.Name); w != nil {
			w.restore(wd.Value)
			continue
		}
		w := &Widget{Name: wd.Name}
		w.restore(wd.Value)
		n.AddWidget(w)
	}
	return dropped
}

// configure reconciles a node's link references with the registry, runs
// OnConfigure, and emits the bulk-load event when references were dangling.
func (g *Graph) configure(n *Node, nd *NodeData, dropped int) error {
	dangling := dropped
	var dir ir.Direction
	if dropped > 0 {
		dir = ir.DirectionInput
	}
	for i, p := range n.Inputs {
		if p.Link == 0 {
			continue
		}
		if l, ok := g.links[p.Link]; !ok || l.TargetID != n.ID || l.TargetSlot != i {
			p.Link = 0
			dangling++
			dir = ir.DirectionInput
		}
	}
	for i, p := range n.Outputs {
		live := p.Links[:0]
		for _, id := range p.Links {
			if l, ok := g.links[id]; ok && l.OriginID == n.ID && l.OriginSlot == i {
				live = append(live, id)
				continue
			}
			dangling++
			if dir == 0 {
				dir = ir.DirectionOutput
			}
		}
		p.Links = live
	}
	// Links registered by Load but missing from this node's pin refs are
	// attached here so the registry stays authoritative.
	for _, l := range g.links {
		if l.TargetID == n.ID && l.TargetSlot >= 0 && l.TargetSlot < len(n.Inputs) && n.Inputs[l.TargetSlot].Link == 0 {
			n.Inputs[l.TargetSlot].Link = l.ID
		}
		if l.OriginID == n.ID && l.OriginSlot >= 0 && l.OriginSlot < len(n.Outputs) && !containsLink(n.Outputs[l.OriginSlot].Links, l.ID) {
			n.Outputs[l.OriginSlot].Links = append(n.Outputs[l.OriginSlot].Links, l.ID)
		}
	}

	if err := n.behavior.OnConfigure(n); err != nil {
		return fmt.Errorf("configure node %d (%s): %w", nd.ID, nd.Type, err)
	}
	if dangling == 0 {
		return nil
	}
	slog.Debug("node configured with dangling links", "node", n.ID, "type", n.Type, "dangling", dangling)
	if err := n.behavior.OnConnectionsChange(n, ConnectionEvent{Dir: dir, Index: -1, Connected: true}); err != nil {
		return fmt.Errorf("configure node %d (%s): %w", nd.ID, nd.Type, err)
	}
	return nil
}

type inputKey struct {
	node NodeID
	slot int
}

func containsLink(ids []LinkID, id LinkID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

package pins

import (
	"log/slog"

	"github.com/roach88/pinsync/internal/graph"
	"github.com/roach88/pinsync/internal/ir"
)

// Migration rewrites reserved pin names from one spelling to the next.
// Renames are matched by name, never by slot position.
type Migration struct {
	Version int
	Renames map[string]string
}

// Migrations is the ordered table of reserved-name migrations. Append new
// entries with increasing versions; never edit a published one.
var Migrations = []Migration{
	{
		Version: 1,
		Renames: map[string]string{
			"_pipe_in":  "_way_in",
			"_pipe_out": "_way_out",
		},
	},
}

// Migrate applies every migration in order to both pin lists of n and
// returns the number of pins rewritten. Link references are untouched, so
// connections survive. Renames are not observed.
func Migrate(n *graph.Node) (int, error) {
	changed := 0
	for _, m := range Migrations {
		for _, dir := range []ir.Direction{ir.DirectionInput, ir.DirectionOutput} {
			for i, p := range n.Pins(dir) {
				next, ok := m.Renames[p.Name]
				if !ok {
					continue
				}
				if p.OrigName == p.Name || p.OrigName == "" {
					p.OrigName = next
				}
				if err := n.RenamePin(dir, i, next, graph.Suppressed); err != nil {
					return changed, err
				}
				slog.Debug("migrated reserved pin",
					"node", n.ID, "dir", dir.String(), "slot", i, "version", m.Version, "to", next)
				changed++
			}
		}
	}
	return changed, nil
}

// DeriveOrigNames fills in OrigName for pins loaded without one. The
// direction template's type annotation is stripped when it matches the
// pin's type; otherwise the full name is used as-is.
func DeriveOrigNames(n *graph.Node) int {
	derived := 0
	for _, dir := range []ir.Direction{ir.DirectionInput, ir.DirectionOutput} {
		for _, p := range n.Pins(dir) {
			if p.OrigName != "" {
				continue
			}
			p.OrigName = p.Name
			if !IsSystem(p.Name) && p.Type != ir.Wildcard {
				if base, ok := StripAnnotation(dir, p.Name, p.Type); ok {
					p.OrigName = base
				}
			}
			derived++
		}
	}
	return derived
}

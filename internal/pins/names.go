package pins

import (
	"sort"
	"strings"

	"github.com/roach88/pinsync/internal/ir"
)

// Placeholder is the name of the trailing "drop a wire here to grow" pin on
// Junction nodes. It is a system pin.
const Placeholder = "..."

var reserved = map[string]struct{}{
	"_way_in":   {},
	"_way_out":  {},
	"_junc_in":  {},
	"_junc_out": {},
	"_query":    {},
	"_offset":   {},
	Placeholder: {},
}

// IsSystem reports whether name is in the reserved set.
func IsSystem(name string) bool {
	_, ok := reserved[name]
	return ok
}

// Reserved returns the reserved names, sorted.
func Reserved() []string {
	out := make([]string, 0, len(reserved))
	for name := range reserved {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// InputName renders an input pin's host-visible name: "name:type".
func InputName(name, typ string) string {
	return name + ":" + typ
}

// OutputName renders an output pin's host-visible name: "type:name".
// The ordering is intentionally the reverse of InputName.
func OutputName(name, typ string) string {
	return typ + ":" + name
}

// Annotate renders the host-visible name for a pin in the given direction.
func Annotate(dir ir.Direction, name, typ string) string {
	if dir == ir.DirectionInput {
		return InputName(name, typ)
	}
	return OutputName(name, typ)
}

// StripAnnotation undoes Annotate for a known type. It reports false when
// full does not carry the annotation.
func StripAnnotation(dir ir.Direction, full, typ string) (string, bool) {
	if typ == "" {
		return full, false
	}
	if dir == ir.DirectionInput {
		return strings.CutSuffix(full, ":"+typ)
	}
	return strings.CutPrefix(full, typ+":")
}

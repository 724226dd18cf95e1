package harness

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pinsync/internal/ir"
)

// Scenario defines a conformance test scenario.
// A scenario builds a small graph, drives it through connects, disconnects,
// updates and reloads, and asserts on the resulting pins and links.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Parser scripts the parsing service, keyed by query text.
	// Queries with no entry get an empty schema.
	Parser map[string]ParserReply `yaml:"parser,omitempty"`

	// Nodes are created in order before the first step.
	Nodes []NodeDecl `yaml:"nodes"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final graph.
	Assertions []Assertion `yaml:"assertions"`
}

// ParserReply is one scripted parse answer. Order entries are
// [kind, name] pairs.
type ParserReply struct {
	Error []string    `yaml:"error,omitempty"`
	Order [][2]string `yaml:"order,omitempty"`
}

// Schema converts the scripted order into a schema.
func (r ParserReply) Schema() ir.Schema {
	out := make(ir.Schema, 0, len(r.Order))
	for _, e := range r.Order {
		out = append(out, ir.SchemaEntry{Kind: ir.SchemaKind(e[0]), Name: e[1]})
	}
	return out
}

// NodeDecl declares one node. Registered types (Highway, Junction, Reroute)
// ignore Inputs and Outputs; any other type is a plain node with exactly
// the declared pins.
type NodeDecl struct {
	ID      string    `yaml:"id"`
	Type    string    `yaml:"type"`
	Inputs  []PinDecl `yaml:"inputs,omitempty"`
	Outputs []PinDecl `yaml:"outputs,omitempty"`
}

// PinDecl declares one pin of a plain node.
type PinDecl struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Step is one action. Exactly one of its action fields is set.
type Step struct {
	Connect    *LinkStep   `yaml:"connect,omitempty"`
	Disconnect *LinkStep   `yaml:"disconnect,omitempty"`
	Update     *UpdateStep `yaml:"update,omitempty"`

	// Reload serializes the graph and loads it back.
	Reload bool `yaml:"reload,omitempty"`

	// ExpectError requires the step to fail.
	ExpectError bool `yaml:"expect_error,omitempty"`
}

// LinkStep names a link by its endpoints, written "alias:slot".
type LinkStep struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// UpdateStep sets a Highway's query and applies the parser's answer.
type UpdateStep struct {
	Node  string `yaml:"node"`
	Query string `yaml:"query"`

	// Expect is the update status: applied, rejected, failed or stale.
	// Defaults to applied.
	Expect string `yaml:"expect,omitempty"`

	// Unreachable makes the parse call fail at the transport level.
	Unreachable bool `yaml:"unreachable,omitempty"`

	// SupersededBy issues a second update with this query before the
	// first answer is applied. The first then completes as stale and the
	// second is applied.
	SupersededBy string `yaml:"superseded_by,omitempty"`
}

// Assertion validates the final graph.
type Assertion struct {
	// Type specifies the assertion type:
	// - "pins": full pin names (and optionally types) of one side of a node
	// - "link": a link exists between two endpoints (or not, with absent)
	// - "counts": a Junction's real input and output counts
	// - "notices": number of user notifications, optionally by title
	// - "query": the query widget text of a Highway
	// - "dirty": whether a node's update gate is dirty
	Type string `yaml:"type"`

	Node  string   `yaml:"node,omitempty"`
	Dir   string   `yaml:"dir,omitempty"`
	Names []string `yaml:"names,omitempty"`
	Types []string `yaml:"types,omitempty"`

	From   string `yaml:"from,omitempty"`
	To     string `yaml:"to,omitempty"`
	Absent bool   `yaml:"absent,omitempty"`

	Inputs  *int `yaml:"inputs,omitempty"`
	Outputs *int `yaml:"outputs,omitempty"`

	Count *int   `yaml:"count,omitempty"`
	Title string `yaml:"title,omitempty"`

	Value string `yaml:"value,omitempty"`
	Dirty *bool  `yaml:"dirty,omitempty"`
}

// Assertion type constants.
const (
	AssertPins    = "pins"
	AssertLink    = "link"
	AssertCounts  = "counts"
	AssertNotices = "notices"
	AssertQuery   = "query"
	AssertDirty   = "dirty"
)

// Update outcomes accepted in UpdateStep.Expect.
var updateOutcomes = map[string]bool{
	"applied": true, "rejected": true, "failed": true, "stale": true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Nodes) == 0 {
		return fmt.Errorf("nodes list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	aliases := make(map[string]bool, len(s.Nodes))
	for i, n := range s.Nodes {
		if n.ID == "" {
			return fmt.Errorf("nodes[%d]: id is required", i)
		}
		if n.Type == "" {
			return fmt.Errorf("nodes[%d]: type is required", i)
		}
		if aliases[n.ID] {
			return fmt.Errorf("nodes[%d]: duplicate id %q", i, n.ID)
		}
		aliases[n.ID] = true
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step, aliases); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a, aliases); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st *Step, aliases map[string]bool) error {
	set := 0
	if st.Connect != nil {
		set++
	}
	if st.Disconnect != nil {
		set++
	}
	if st.Update != nil {
		set++
	}
	if st.Reload {
		set++
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of connect, disconnect, update, reload is required", index)
	}

	for _, ls := range []*LinkStep{st.Connect, st.Disconnect} {
		if ls == nil {
			continue
		}
		for _, ep := range []string{ls.From, ls.To} {
			alias, _, err := ParseEndpoint(ep)
			if err != nil {
				return fmt.Errorf("steps[%d]: %w", index, err)
			}
			if !aliases[alias] {
				return fmt.Errorf("steps[%d]: unknown node %q", index, alias)
			}
		}
	}
	if u := st.Update; u != nil {
		if !aliases[u.Node] {
			return fmt.Errorf("steps[%d]: unknown node %q", index, u.Node)
		}
		if u.Expect != "" && !updateOutcomes[u.Expect] {
			return fmt.Errorf("steps[%d]: unknown update outcome %q", index, u.Expect)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, aliases map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	needNode := func() error {
		if !aliases[a.Node] {
			return fmt.Errorf("assertions[%d]: unknown node %q for %s", index, a.Node, a.Type)
		}
		return nil
	}

	switch a.Type {
	case AssertPins:
		if err := needNode(); err != nil {
			return err
		}
		if _, err := ir.ParseDirection(a.Dir); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Types != nil && len(a.Types) != len(a.Names) {
			return fmt.Errorf("assertions[%d]: types must match names in length", index)
		}
	case AssertLink:
		for _, ep := range []string{a.From, a.To} {
			alias, _, err := ParseEndpoint(ep)
			if err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
			if !aliases[alias] {
				return fmt.Errorf("assertions[%d]: unknown node %q", index, alias)
			}
		}
	case AssertCounts:
		if err := needNode(); err != nil {
			return err
		}
		if a.Inputs == nil && a.Outputs == nil {
			return fmt.Errorf("assertions[%d]: inputs or outputs is required for counts", index)
		}
	case AssertNotices:
		if a.Node != "" {
			if err := needNode(); err != nil {
				return err
			}
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for notices", index)
		}
	case AssertQuery:
		if err := needNode(); err != nil {
			return err
		}
	case AssertDirty:
		if err := needNode(); err != nil {
			return err
		}
		if a.Dirty == nil {
			return fmt.Errorf("assertions[%d]: dirty is required", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// ParseEndpoint splits "alias:slot".
func ParseEndpoint(s string) (string, int, error) {
	alias, slot, ok := strings.Cut(s, ":")
	if !ok || alias == "" {
		return "", 0, fmt.Errorf("endpoint %q: want alias:slot", s)
	}
	n, err := strconv.Atoi(slot)
	if err != nil || n < 0 {
		return "", 0, fmt.Errorf("endpoint %q: bad slot", s)
	}
	return alias, n, nil
}

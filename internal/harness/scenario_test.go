package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pinsync/internal/ir"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
parser:
  "a":
    order: [[set, seed], [get, image]]
  "bad":
    error: ["unexpected token"]
nodes:
  - id: src
    type: Source
    outputs: [{name: seed, type: INT}]
  - id: hw
    type: Highway
steps:
  - update: {node: hw, query: "a"}
  - connect: {from: "src:0", to: "hw:1"}
  - update: {node: hw, query: "bad", expect: rejected}
  - reload: true
assertions:
  - type: pins
    node: hw
    dir: input
    names: [_way_in, "+seed:INT"]
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Len(t, scenario.Nodes, 2)
	assert.Len(t, scenario.Steps, 4)
	assert.Len(t, scenario.Assertions, 1)

	assert.Equal(t, ir.Schema{
		{Kind: ir.KindSet, Name: "seed"},
		{Kind: ir.KindGet, Name: "image"},
	}, scenario.Parser["a"].Schema())
	assert.Equal(t, []string{"unexpected token"}, scenario.Parser["bad"].Error)

	assert.Equal(t, []PinDecl{{Name: "seed", Type: "INT"}}, scenario.Nodes[0].Outputs)
	require.NotNil(t, scenario.Steps[1].Connect)
	assert.Equal(t, "src:0", scenario.Steps[1].Connect.From)
	assert.Equal(t, "rejected", scenario.Steps[2].Update.Expect)
	assert.True(t, scenario.Steps[3].Reload)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MalformedYAML(t *testing.T) {
	path := writeScenario(t, "name: [unterminated")
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Validation(t *testing.T) {
	const nodes = `
nodes:
  - id: hw
    type: Highway
`
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing_name",
			yaml:    "description: d\n" + nodes + "assertions: [{type: query, node: hw}]",
			wantErr: "name is required",
		},
		{
			name:    "missing_description",
			yaml:    "name: n\n" + nodes + "assertions: [{type: query, node: hw}]",
			wantErr: "description is required",
		},
		{
			name:    "missing_nodes",
			yaml:    "name: n\ndescription: d\nassertions: [{type: query, node: hw}]",
			wantErr: "nodes list is required",
		},
		{
			name:    "missing_assertions",
			yaml:    "name: n\ndescription: d\n" + nodes,
			wantErr: "assertions list is required",
		},
		{
			name: "duplicate_node",
			yaml: `
name: n
description: d
nodes: [{id: hw, type: Highway}, {id: hw, type: Junction}]
assertions: [{type: query, node: hw}]
`,
			wantErr: `duplicate id "hw"`,
		},
		{
			name:    "empty_step",
			yaml:    "name: n\ndescription: d\n" + nodes + "steps: [{expect_error: true}]\nassertions: [{type: query, node: hw}]",
			wantErr: "exactly one of connect, disconnect, update, reload",
		},
		{
			name:    "two_actions_in_step",
			yaml:    "name: n\ndescription: d\n" + nodes + "steps: [{reload: true, update: {node: hw, query: q}}]\nassertions: [{type: query, node: hw}]",
			wantErr: "exactly one of connect, disconnect, update, reload",
		},
		{
			name:    "bad_endpoint",
			yaml:    "name: n\ndescription: d\n" + nodes + "steps: [{connect: {from: hw, to: \"hw:1\"}}]\nassertions: [{type: query, node: hw}]",
			wantErr: "want alias:slot",
		},
		{
			name:    "negative_slot",
			yaml:    "name: n\ndescription: d\n" + nodes + "steps: [{connect: {from: \"hw:-1\", to: \"hw:1\"}}]\nassertions: [{type: query, node: hw}]",
			wantErr: "bad slot",
		},
		{
			name:    "unknown_step_node",
			yaml:    "name: n\ndescription: d\n" + nodes + "steps: [{update: {node: other, query: q}}]\nassertions: [{type: query, node: hw}]",
			wantErr: `unknown node "other"`,
		},
		{
			name:    "unknown_outcome",
			yaml:    "name: n\ndescription: d\n" + nodes + "steps: [{update: {node: hw, query: q, expect: maybe}}]\nassertions: [{type: query, node: hw}]",
			wantErr: `unknown update outcome "maybe"`,
		},
		{
			name:    "unknown_assertion_type",
			yaml:    "name: n\ndescription: d\n" + nodes + "assertions: [{type: trace_contains}]",
			wantErr: `unknown assertion type "trace_contains"`,
		},
		{
			name:    "pins_bad_dir",
			yaml:    "name: n\ndescription: d\n" + nodes + "assertions: [{type: pins, node: hw, dir: sideways}]",
			wantErr: "assertions[0]",
		},
		{
			name:    "pins_types_length",
			yaml:    "name: n\ndescription: d\n" + nodes + "assertions: [{type: pins, node: hw, dir: input, names: [a], types: [A, B]}]",
			wantErr: "types must match names in length",
		},
		{
			name:    "counts_without_counts",
			yaml:    "name: n\ndescription: d\n" + nodes + "assertions: [{type: counts, node: hw}]",
			wantErr: "inputs or outputs is required",
		},
		{
			name:    "notices_negative",
			yaml:    "name: n\ndescription: d\n" + nodes + "assertions: [{type: notices, count: -1}]",
			wantErr: "non-negative count is required",
		},
		{
			name:    "dirty_missing_value",
			yaml:    "name: n\ndescription: d\n" + nodes + "assertions: [{type: dirty, node: hw}]",
			wantErr: "dirty is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_UnknownFieldsRejected(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "typo_assertion_singular",
			yaml: `
name: test
description: Test typo
nodes: [{id: hw, type: Highway}]
assertion: [{type: query, node: hw}]
assertions: [{type: query, node: hw}]
`,
			wantErr: "field assertion not found",
		},
		{
			name: "typo_in_step",
			yaml: `
name: test
description: Test typo
nodes: [{id: hw, type: Highway}]
steps: [{updat: {node: hw, query: q}}]
assertions: [{type: query, node: hw}]
`,
			wantErr: "field updat not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_ZeroNoticesAllowed(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: quiet
description: No notices
nodes: [{id: hw, type: Highway}]
assertions: [{type: notices, count: 0}]
`))
	require.NoError(t, err)
	require.NotNil(t, s.Assertions[0].Count)
	assert.Equal(t, 0, *s.Assertions[0].Count)
}

func TestParseEndpoint(t *testing.T) {
	alias, slot, err := ParseEndpoint("hw:12")
	require.NoError(t, err)
	assert.Equal(t, "hw", alias)
	assert.Equal(t, 12, slot)

	for _, bad := range []string{"", "hw", ":1", "hw:x", "hw:-2"} {
		_, _, err := ParseEndpoint(bad)
		assert.Error(t, err, "endpoint %q", bad)
	}
}

func TestAssertionConstants(t *testing.T) {
	assert.Equal(t, "pins", AssertPins)
	assert.Equal(t, "link", AssertLink)
	assert.Equal(t, "counts", AssertCounts)
	assert.Equal(t, "notices", AssertNotices)
	assert.Equal(t, "query", AssertQuery)
	assert.Equal(t, "dirty", AssertDirty)
}

// TestLoadExampleScenarios validates the scenario files in testdata/scenarios.
func TestLoadExampleScenarios(t *testing.T) {
	paths, err := filepath.Glob("../../testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)
			assert.NotEmpty(t, s.Description)
		})
	}
}

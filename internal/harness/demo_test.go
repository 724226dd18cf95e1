package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDemoScenarios runs every scenario under testdata/scenarios. These
// serve as end-to-end checks of the node behaviors and as reference
// examples of the scenario format.
func TestDemoScenarios(t *testing.T) {
	paths, err := filepath.Glob("../../testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err, "failed to load scenario from %s", path)

			result, err := Run(scenario)
			require.NoError(t, err, "scenario execution failed")
			require.NotNil(t, result)

			assert.True(t, result.Pass, "scenario should pass: errors=%v", result.Errors)
			assert.Empty(t, result.Errors)
			assert.NotEmpty(t, result.Trace, "trace should not be empty")
			assert.Len(t, result.Nodes, len(scenario.Nodes))

			t.Logf("Scenario %s: %d trace events", scenario.Name, len(result.Trace))
		})
	}
}

// TestDemoScenarioTraceOrder validates that sequence numbers increase.
func TestDemoScenarioTraceOrder(t *testing.T) {
	scenario, err := LoadScenario("../../testdata/scenarios/highway_rewire.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	for i := 1; i < len(result.Trace); i++ {
		assert.Greater(t, result.Trace[i].Seq, result.Trace[i-1].Seq,
			"seq values should be strictly increasing at trace[%d]", i)
	}
}

// TestDemoScenarioRenamesPrecedeStep checks that interactive renames are
// recorded before the step that caused them.
func TestDemoScenarioRenamesPrecedeStep(t *testing.T) {
	scenario, err := LoadScenario("../../testdata/scenarios/junction_grow_shrink.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(result.Trace), 2)

	assert.Equal(t, "rename", result.Trace[0].Kind)
	assert.Equal(t, "j", result.Trace[0].Node)
	assert.Equal(t, "connect", result.Trace[1].Kind)
}

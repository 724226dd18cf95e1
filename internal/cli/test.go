package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pinsync/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`

	// notes are the text-mode lines printed under a failed scenario.
	notes   []string
	updated bool
}

func (r ScenarioResult) RenderText(w io.Writer) {
	if !r.Pass {
		fmt.Fprintf(w, "✗ %s\n", r.Name)
		for _, n := range r.notes {
			fmt.Fprintf(w, "  %s\n", n)
		}
		return
	}
	if r.updated {
		fmt.Fprintf(w, "✓ %s (golden updated)\n", r.Name)
		return
	}
	fmt.Fprintf(w, "✓ %s\n", r.Name)
}

// failedScenario is a result that never reached its assertions.
func failedScenario(name, errMsg, note string) ScenarioResult {
	return ScenarioResult{Name: name, Errors: []string{errMsg}, notes: []string{note}}
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run graph scenarios",
		Long: `Run scenario files against a fresh engine.

Each scenario scripts the parsing service, drives a small graph through
connects, disconnects, updates and reloads, then checks its assertions.
When <scenarios-dir>/golden/<name>.golden exists, the canonical snapshot
of the run must match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  pinsync test ./testdata/scenarios
  pinsync test ./testdata/scenarios --filter "junction_*"
  pinsync test ./testdata/scenarios --update
  pinsync test ./testdata/scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	w := cmd.OutOrStdout()
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		msg := fmt.Sprintf("scenarios directory not found: %s", scenariosDir)
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", msg)
		return NewExitError(ExitCommandError, msg)
	}

	files, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "find scenarios", err)
	}
	if len(files) == 0 && opts.Format != "json" {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	for _, file := range files {
		sr := runScenario(file, opts.Update)
		if opts.Format != "json" {
			sr.RenderText(w)
		}
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, sr)
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result)
}

// findScenarioFiles lists the .yaml and .yml files under dir whose base
// name matches filter. golden directories are skipped.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			ok, err := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// runScenario loads and runs one scenario file. With update the snapshot
// is written as the new golden file; otherwise an existing golden file
// must match it byte for byte.
func runScenario(file string, update bool) ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return failedScenario(filepath.Base(file),
			fmt.Sprintf("failed to load scenario: %v", err), fmt.Sprintf("Load error: %v", err))
	}
	res, err := harness.Run(scenario)
	if err != nil {
		return failedScenario(scenario.Name,
			fmt.Sprintf("execution failed: %v", err), fmt.Sprintf("Execution error: %v", err))
	}

	sr := ScenarioResult{Name: scenario.Name, Pass: res.Pass}
	if !res.Pass {
		sr.Errors = res.Errors
		sr.notes = res.Errors
	}

	golden := goldenFilePath(file)
	if update {
		if err := updateGoldenFile(scenario, res, golden); err != nil {
			return failedScenario(scenario.Name,
				fmt.Sprintf("failed to update golden file: %v", err), fmt.Sprintf("Golden update error: %v", err))
		}
		sr.updated = true
		return sr
	}
	if _, err := os.Stat(golden); os.IsNotExist(err) {
		return sr
	}

	match, err := compareWithGolden(scenario, res, golden)
	switch {
	case err != nil:
		return failedScenario(scenario.Name,
			fmt.Sprintf("golden comparison failed: %v", err), fmt.Sprintf("Golden comparison error: %v", err))
	case !match:
		return failedScenario(scenario.Name,
			"snapshot does not match golden file", "Golden file mismatch (run with --update to regenerate)")
	}
	return sr
}

// goldenFilePath maps dir/name.yaml to dir/golden/name.golden.
func goldenFilePath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

func updateGoldenFile(scenario *harness.Scenario, result *harness.Result, goldenPath string) error {
	data, err := harness.Snapshot(scenario.Name, result)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(goldenPath, data, 0644)
}

func compareWithGolden(scenario *harness.Scenario, result *harness.Result, goldenPath string) (bool, error) {
	want, err := os.ReadFile(goldenPath)
	if err != nil {
		return false, err
	}
	got, err := harness.Snapshot(scenario.Name, result)
	if err != nil {
		return false, fmt.Errorf("snapshot: %w", err)
	}
	return bytes.Equal(want, got), nil
}

func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	resp := CLIResponse{Status: "ok", Data: result}
	var failure error
	if result.Failed > 0 {
		msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
		resp.Status = "error"
		resp.Error = &CLIError{Code: ErrCodeTestFailed, Message: msg}
		failure = NewExitError(ExitFailure, msg)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	return failure
}

func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "\nTest Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}

package cli

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"

	"github.com/gertd/go-pluralize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/roach88/pipetest/internal/scenario"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
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
		Short: "Run every scenario in a directory",
		Long: `Run all scenario files in a directory and compare their reports
against golden files.

Reports are stored as canonical JSON under <scenarios-dir>/golden/<name>.golden.
Scenarios without a golden file are checked against their expected
outcome only.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  pipetest test ./scenarios
  pipetest test ./scenarios --filter "count_*"
  pipetest test ./scenarios --update
  pipetest test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern on the file name")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	fs := opts.fs()
	if ok, _ := afero.DirExists(fs, dir); !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}

	files, err := scenario.Discover(fs, dir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	if len(files) == 0 {
		if opts.Format == "json" {
			return opts.formatter(cmd).Success(result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	for _, file := range files {
		res := runTestScenario(opts, fs, dir, file, cmd)
		result.Scenarios = append(result.Scenarios, res)
		if res.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(opts.formatter(cmd), result)
	}
	return outputTestText(cmd.OutOrStdout(), result)
}

// runTestScenario executes one scenario file and checks its report against
// the expected outcome and the golden file.
func runTestScenario(opts *TestOptions, fs afero.Fs, dir, file string, cmd *cobra.Command) ScenarioResult {
	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		w = io.Discard
	}

	s, err := scenario.Load(fs, file)
	if err != nil {
		res := ScenarioResult{
			Name:   filepath.Base(file),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
		printScenarioResult(w, res, "")
		return res
	}
	opts.formatter(cmd).VerboseLog("running scenario %s", s.Name)

	report, data, err := executeReport(cmd, opts.RootOptions, s)
	if err != nil {
		res := ScenarioResult{
			Name:   s.Name,
			Errors: []string{fmt.Sprintf("failed to run scenario: %v", err)},
		}
		printScenarioResult(w, res, "")
		return res
	}
	res := checkReport(s, report)

	path := goldenFilePath(dir, s.Name)
	note := ""
	switch {
	case opts.Update:
		if err := writeGoldenFile(fs, path, data); err != nil {
			res.Pass = false
			res.Errors = append(res.Errors, err.Error())
		} else {
			note = "golden updated"
		}
	default:
		match, found, err := compareWithGolden(fs, path, data)
		switch {
		case err != nil:
			res.Pass = false
			res.Errors = append(res.Errors, err.Error())
		case found && !match:
			res.Pass = false
			res.Errors = append(res.Errors, "report does not match golden file (run with --update to regenerate)")
		}
	}

	printScenarioResult(w, res, note)
	return res
}

// goldenFilePath returns the path to the golden report of a scenario.
func goldenFilePath(dir, name string) string {
	return filepath.Join(dir, "golden", name+".golden")
}

func writeGoldenFile(fs afero.Fs, path string, data []byte) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// compareWithGolden reports whether the golden file at path exists and
// holds exactly data.
func compareWithGolden(fs afero.Fs, path string, data []byte) (match, found bool, err error) {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return false, false, fmt.Errorf("failed to stat golden file: %w", err)
	}
	if !exists {
		return false, false, nil
	}
	golden, err := afero.ReadFile(fs, path)
	if err != nil {
		return false, true, fmt.Errorf("failed to read golden file: %w", err)
	}
	return bytes.Equal(golden, data), true, nil
}

func outputTestJSON(formatter *OutputFormatter, result TestResult) error {
	if result.Failed == 0 {
		return formatter.Success(result)
	}
	msg := failedSummary(result.Failed)
	if err := formatter.Error(ErrCodeTestFailed, msg, result); err != nil {
		return err
	}
	return NewExitError(ExitFailure, msg)
}

func outputTestText(w io.Writer, result TestResult) error {
	plural := pluralize.NewClient()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %s, %d passed, %d failed\n",
		plural.Pluralize("scenario", result.Total, true), result.Passed, result.Failed)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, failedSummary(result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}

func failedSummary(failed int) string {
	return pluralize.NewClient().Pluralize("scenario", failed, true) + " failed"
}

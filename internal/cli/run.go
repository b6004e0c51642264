package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/pipetest/internal/engine"
	"github.com/roach88/pipetest/internal/harness"
	"github.com/roach88/pipetest/internal/scenario"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Streaming bool
	Database  string
}

// ScenarioResult is the outcome of one scenario.
type ScenarioResult struct {
	Name     string          `json:"name"`
	Pass     bool            `json:"pass"`
	Outcome  harness.Outcome `json:"outcome,omitempty"`
	Expected harness.Outcome `json:"expected,omitempty"`
	Errors   []string        `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one pipeline scenario",
		Long: `Run a single scenario through the test runner and check its outcome.

Exit codes:
  0 - The scenario produced its expected outcome
  1 - The outcome or error message differed
  2 - Command error (missing file, invalid scenario, etc.)

Examples:
  pipetest run ./scenarios/word_lengths.yaml
  pipetest run ./scenarios/word_lengths.yaml --streaming
  pipetest run ./scenarios/word_lengths.yaml --db ./metrics.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Streaming, "streaming", false, "run in streaming mode")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite metrics database (default in-memory)")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	s, err := scenario.Load(opts.fs(), path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	if opts.Streaming {
		s.Streaming = true
	}
	if opts.Database != "" {
		s.MetricsDB = opts.Database
	}
	formatter.VerboseLog("running scenario %s", s.Name)

	result, err := executeScenario(cmd, opts.RootOptions, s)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	if !result.Pass {
		if opts.Format == "json" {
			if err := formatter.Error(ErrCodeScenarioFailed, result.Errors[0], result); err != nil {
				return err
			}
		} else {
			printScenarioResult(cmd.OutOrStdout(), result, "")
		}
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", s.Name))
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	printScenarioResult(cmd.OutOrStdout(), result, "")
	return nil
}

// executeScenario runs s with loggers on the command's stderr and checks
// the report against the expected outcome. The returned error is reserved
// for scenarios that cannot be built.
func executeScenario(cmd *cobra.Command, opts *RootOptions, s *scenario.Scenario) (ScenarioResult, error) {
	report, _, err := executeReport(cmd, opts, s)
	if err != nil {
		return ScenarioResult{}, err
	}
	return checkReport(s, report), nil
}

func executeReport(cmd *cobra.Command, opts *RootOptions, s *scenario.Scenario) (scenario.Report, []byte, error) {
	logger := opts.logger(cmd.ErrOrStderr())
	report, err := scenario.Execute(cmd.Context(), s,
		harness.WithLogger(logger),
		harness.WithEngineOptions(engine.WithLogger(logger)),
	)
	if err != nil {
		return scenario.Report{}, nil, err
	}
	data, err := report.Canonical()
	if err != nil {
		return scenario.Report{}, nil, fmt.Errorf("encode report: %w", err)
	}
	return report, data, nil
}

func checkReport(s *scenario.Scenario, report scenario.Report) ScenarioResult {
	result := ScenarioResult{
		Name:     s.Name,
		Pass:     true,
		Outcome:  report.Outcome,
		Expected: s.Expect.Outcome,
	}
	if err := report.Check(s.Expect); err != nil {
		result.Pass = false
		result.Errors = append(result.Errors, err.Error())
	}
	return result
}

func printScenarioResult(w io.Writer, result ScenarioResult, note string) {
	if result.Pass {
		if note != "" {
			fmt.Fprintf(w, "✓ %s (%s, %s)\n", result.Name, result.Outcome, note)
		} else {
			fmt.Fprintf(w, "✓ %s (%s)\n", result.Name, result.Outcome)
		}
		return
	}
	fmt.Fprintf(w, "✗ %s\n", result.Name)
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

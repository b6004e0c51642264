package scenario

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/pipetest/internal/harness"
	"github.com/roach88/pipetest/internal/ir"
	"github.com/roach88/pipetest/internal/pipeline"
)

// Report is the observed result of executing a scenario.
// It contains nothing that differs between runs, so it can be compared
// against a golden file.
type Report struct {
	Scenario   string
	Streaming  bool
	Assertions int
	Outcome    harness.Outcome
	Error      string

	// Outputs holds the elements of every step, for completed runs only.
	Outputs map[string][]ir.Value

	// Aggregators holds the aggregator values, for completed runs only.
	Aggregators map[string]int64
}

// completedResult is implemented by engine results.
type completedResult interface {
	harness.Result
	Output(col pipeline.PCollection) []ir.Value
	Aggregators(ctx context.Context) (map[string]int64, error)
}

// Execute builds the scenario pipeline and runs it through a harness
// TestRunner. Harness failures are reported in the Report; the error is
// reserved for scenarios whose pipeline cannot be built.
func Execute(ctx context.Context, s *Scenario, hopts ...harness.Option) (Report, error) {
	p, cols, err := Build(s)
	if err != nil {
		return Report{}, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	report := Report{
		Scenario:   s.Name,
		Assertions: pipeline.CountAssertions(p),
	}

	opts, err := s.RunOptions()
	if err != nil {
		report.fail(err)
		return report, nil
	}
	report.Streaming = opts.Streaming

	runner, err := harness.FromOptions(opts, hopts...)
	if err != nil {
		report.fail(err)
		return report, nil
	}
	defer runner.Close()

	res, err := runner.Run(ctx, p)
	if err != nil {
		report.fail(err)
		return report, nil
	}
	report.Outcome = harness.OutcomePass

	if cr, ok := res.(completedResult); ok {
		report.Outputs = make(map[string][]ir.Value, len(cols))
		for name, col := range cols {
			report.Outputs[name] = cr.Output(col)
		}
		aggs, err := cr.Aggregators(ctx)
		if err != nil {
			return report, fmt.Errorf("scenario %s: read aggregators: %w", s.Name, err)
		}
		report.Aggregators = aggs
	}
	return report, nil
}

func (r *Report) fail(err error) {
	r.Outcome = harness.Classify(err)
	r.Error = err.Error()
}

// Check compares the report against the expected outcome.
func (r Report) Check(expect Expect) error {
	want := expect.Outcome
	if want == "" {
		want = harness.OutcomePass
	}
	if r.Outcome != want {
		if r.Error != "" {
			return fmt.Errorf("expected outcome %s, got %s: %s", want, r.Outcome, r.Error)
		}
		return fmt.Errorf("expected outcome %s, got %s", want, r.Outcome)
	}
	if expect.Message != "" && !strings.Contains(r.Error, expect.Message) {
		return fmt.Errorf("expected error containing %q, got %q", expect.Message, r.Error)
	}
	return nil
}

// Canonical returns the canonical JSON encoding of the report.
func (r Report) Canonical() ([]byte, error) {
	rec := ir.Record{
		"scenario":   ir.String(r.Scenario),
		"streaming":  ir.Bool(r.Streaming),
		"assertions": ir.Int(r.Assertions),
		"outcome":    ir.String(r.Outcome),
	}
	if r.Error != "" {
		rec["error"] = ir.String(r.Error)
	}
	if r.Outputs != nil {
		outputs := make(ir.Record, len(r.Outputs))
		for name, values := range r.Outputs {
			list := make(ir.List, len(values))
			copy(list, values)
			outputs[name] = list
		}
		rec["outputs"] = outputs
	}
	if r.Aggregators != nil {
		aggs := make(ir.Record, len(r.Aggregators))
		for name, v := range r.Aggregators {
			aggs[name] = ir.Int(v)
		}
		rec["aggregators"] = aggs
	}
	return ir.Marshal(rec)
}

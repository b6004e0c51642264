package scenario

import (
	"fmt"

	"github.com/roach88/pipetest/internal/ir"
	"github.com/roach88/pipetest/internal/pipeline"
)

// Build constructs the pipeline described by s. It returns the pipeline and
// the output collection of every step, keyed by step name.
func Build(s *Scenario) (*pipeline.Pipeline, map[string]pipeline.PCollection, error) {
	p := pipeline.New(s.Name)
	cols := make(map[string]pipeline.PCollection, len(s.Pipeline))

	for i, step := range s.Pipeline {
		kind, name, err := step.Kind()
		if err != nil {
			return nil, nil, fmt.Errorf("pipeline[%d]: %w", i, err)
		}
		in := cols[step.Input]

		var col pipeline.PCollection
		switch kind {
		case "create":
			values, err := convert(step.Values)
			if err != nil {
				return nil, nil, fmt.Errorf("pipeline[%d] %q: values%w", i, name, err)
			}
			col = pipeline.Create(p, name, values...)
		case "map":
			fn, err := mapFn(step.Fn)
			if err != nil {
				return nil, nil, fmt.Errorf("pipeline[%d] %q: %w", i, name, err)
			}
			col = pipeline.Map(p, name, in, fn)
		case "filter":
			fn, err := filterFn(step.Fn)
			if err != nil {
				return nil, nil, fmt.Errorf("pipeline[%d] %q: %w", i, name, err)
			}
			col = pipeline.Filter(p, name, in, fn)
		case "flat_map":
			fn, err := flatMapFn(step.Fn)
			if err != nil {
				return nil, nil, fmt.Errorf("pipeline[%d] %q: %w", i, name, err)
			}
			col = pipeline.FlatMap(p, name, in, fn)
		case "count":
			col = pipeline.Count(p, name, in)
		}
		cols[name] = col
	}

	for i, a := range s.Assertions {
		assertion := pipeline.AssertThat(p, cols[a.Input])
		if a.Name != "" {
			assertion.Named(a.Name)
		}
		switch {
		case a.ContainsInAnyOrder != nil:
			values, err := convert(*a.ContainsInAnyOrder)
			if err != nil {
				return nil, nil, fmt.Errorf("assertions[%d]: contains_in_any_order%w", i, err)
			}
			assertion.ContainsInAnyOrder(values...)
		case a.Empty:
			assertion.Empty()
		case a.HasSize != nil:
			assertion.HasSize(*a.HasSize)
		}
	}

	if err := pipeline.Validate(p); err != nil {
		return nil, nil, err
	}
	return p, cols, nil
}

// convert turns decoded YAML values into elements.
func convert(raw []any) ([]ir.Value, error) {
	values := make([]ir.Value, len(raw))
	for i, r := range raw {
		v, err := ir.FromAny(r)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		values[i] = v
	}
	return values, nil
}

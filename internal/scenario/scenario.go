// Package scenario runs declarative YAML pipeline scenarios through the
// test harness.
//
// # Scenario Format
//
//	name: word_lengths
//	description: "lengths of words"
//	streaming: false
//	options:
//	  parallelism: 2
//	pipeline:
//	  - create: words
//	    values: [a, bb, ccc]
//	  - map: lengths
//	    input: words
//	    fn: length
//	assertions:
//	  - input: lengths
//	    contains_in_any_order: [1, 2, 3]
//	expect:
//	  outcome: pass
//	  message: ""
//
// Each pipeline step sets exactly one of create, map, filter, flat_map or
// count to the step name. Every assertion sets exactly one check:
// contains_in_any_order, empty or has_size. The functions available to fn
// are listed in Builtins.
//
// expect.outcome is one of the harness outcomes (pass, assertion_failure,
// execution_failure, count_mismatch, aggregator_error,
// configuration_error) and defaults to pass. expect.message, when set,
// must be a substring of the error message.
package scenario

import (
	"bytes"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/roach88/pipetest/internal/harness"
	"github.com/roach88/pipetest/internal/options"
)

// Scenario is one declarative pipeline test.
type Scenario struct {
	// Name uniquely identifies the scenario; golden reports are named after it.
	Name string `yaml:"name"`

	// Description explains what the scenario checks.
	Description string `yaml:"description,omitempty"`

	// Streaming runs the pipeline in streaming mode.
	Streaming bool `yaml:"streaming,omitempty"`

	// Options overlays execution options on the defaults. It is decoded
	// lazily so that invalid options surface as a configuration_error
	// outcome rather than a load failure.
	Options yaml.Node `yaml:"options,omitempty"`

	// Pipeline lists the transforms in declaration order.
	Pipeline []Step `yaml:"pipeline"`

	// Assertions lists the checkpoints registered after the pipeline.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// Expect is the outcome the scenario must produce.
	Expect Expect `yaml:"expect,omitempty"`

	// MetricsDB overrides options.metrics_db. Set by callers, never by files.
	MetricsDB string `yaml:"-"`
}

// Step is one transform.
type Step struct {
	Create  string `yaml:"create,omitempty"`
	Map     string `yaml:"map,omitempty"`
	Filter  string `yaml:"filter,omitempty"`
	FlatMap string `yaml:"flat_map,omitempty"`
	Count   string `yaml:"count,omitempty"`

	// Values are the elements of a create step.
	Values []any `yaml:"values,omitempty"`

	// Input names the step whose output this step reads.
	Input string `yaml:"input,omitempty"`

	// Fn names a builtin function, e.g. "upper" or "add:3".
	Fn string `yaml:"fn,omitempty"`
}

// Kind returns the transform kind and the step name.
func (s Step) Kind() (string, string, error) {
	var kinds []string
	var name string
	for _, c := range []struct{ kind, name string }{
		{"create", s.Create},
		{"map", s.Map},
		{"filter", s.Filter},
		{"flat_map", s.FlatMap},
		{"count", s.Count},
	} {
		if c.name != "" {
			kinds = append(kinds, c.kind)
			name = c.name
		}
	}
	switch len(kinds) {
	case 0:
		return "", "", fmt.Errorf("one of create, map, filter, flat_map or count is required")
	case 1:
		return kinds[0], name, nil
	default:
		return "", "", fmt.Errorf("only one kind may be set, got %s", strings.Join(kinds, ", "))
	}
}

// Assertion is one checkpoint on a step's output.
type Assertion struct {
	// Input names the step whose output is checked.
	Input string `yaml:"input"`

	// Name labels the checkpoint. Defaults to the checkpoint position.
	Name string `yaml:"name,omitempty"`

	ContainsInAnyOrder *[]any `yaml:"contains_in_any_order,omitempty"`
	Empty              bool   `yaml:"empty,omitempty"`
	HasSize            *int   `yaml:"has_size,omitempty"`
}

func (a Assertion) checks() int {
	n := 0
	if a.ContainsInAnyOrder != nil {
		n++
	}
	if a.Empty {
		n++
	}
	if a.HasSize != nil {
		n++
	}
	return n
}

// Expect is the outcome a scenario must produce.
type Expect struct {
	Outcome harness.Outcome `yaml:"outcome,omitempty"`
	Message string          `yaml:"message,omitempty"`
}

// Load reads and validates a scenario file.
// Unknown fields are rejected so that typos do not go unnoticed.
func Load(fs afero.Fs, path string) (*Scenario, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%s: failed to parse YAML: %w", path, err)
	}

	if s.Expect.Outcome == "" {
		s.Expect.Outcome = harness.OutcomePass
	}
	if err := validate(&s); err != nil {
		return nil, fmt.Errorf("%s: invalid scenario: %w", path, err)
	}
	return &s, nil
}

// Discover returns the scenario files directly under dir, sorted by name.
// A non-empty filter is a glob matched against the file base name.
func Discover(fs afero.Fs, dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", filter, err)
		}
	}

	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if filter != "" {
			if ok, _ := filepath.Match(filter, name); !ok {
				continue
			}
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	slices.Sort(paths)
	return paths, nil
}

// RunOptions returns the execution options of the scenario: the defaults
// overlaid with the options block, the streaming flag and MetricsDB.
func (s *Scenario) RunOptions() (options.Options, error) {
	opts := options.Default()
	if s.Options.Kind != 0 {
		data, err := yaml.Marshal(&s.Options)
		if err != nil {
			return options.Options{}, &options.ConfigurationError{Message: fmt.Sprintf("encode options: %v", err), Cause: err}
		}
		if opts, err = options.Parse(data); err != nil {
			return options.Options{}, err
		}
	}
	if s.Streaming {
		opts.Streaming = true
	}
	if s.MetricsDB != "" {
		opts.MetricsDB = s.MetricsDB
	}
	return opts, nil
}

// validate checks required fields and step references.
func validate(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if strings.ContainsAny(s.Name, `/\`) {
		return fmt.Errorf("name %q must not contain path separators", s.Name)
	}
	if len(s.Pipeline) == 0 {
		return fmt.Errorf("pipeline list is required and must be non-empty")
	}
	if !s.Expect.Outcome.Valid() {
		return fmt.Errorf("expect: unknown outcome %q", s.Expect.Outcome)
	}

	seen := make(map[string]bool)
	for i, step := range s.Pipeline {
		kind, name, err := step.Kind()
		if err != nil {
			return fmt.Errorf("pipeline[%d]: %w", i, err)
		}
		if seen[name] {
			return fmt.Errorf("pipeline[%d]: duplicate step name %q", i, name)
		}
		switch kind {
		case "create":
			if step.Input != "" || step.Fn != "" {
				return fmt.Errorf("pipeline[%d]: create takes values only", i)
			}
		case "count":
			if step.Fn != "" {
				return fmt.Errorf("pipeline[%d]: count takes no fn", i)
			}
		default:
			if step.Fn == "" {
				return fmt.Errorf("pipeline[%d]: fn is required for %s", i, kind)
			}
		}
		if kind != "create" {
			if len(step.Values) > 0 {
				return fmt.Errorf("pipeline[%d]: values are only valid for create", i)
			}
			if !seen[step.Input] {
				return fmt.Errorf("pipeline[%d]: input %q is not an earlier step", i, step.Input)
			}
		}
		seen[name] = true
	}

	for i, a := range s.Assertions {
		if !seen[a.Input] {
			return fmt.Errorf("assertions[%d]: input %q is not a step", i, a.Input)
		}
		if n := a.checks(); n != 1 {
			return fmt.Errorf("assertions[%d]: exactly one of contains_in_any_order, empty or has_size is required, got %d", i, n)
		}
		if a.HasSize != nil && *a.HasSize < 0 {
			return fmt.Errorf("assertions[%d]: has_size must be non-negative", i)
		}
	}
	return nil
}

package pipeline

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/pipetest/internal/failure"
	"github.com/roach88/pipetest/internal/ir"
)

// Well-known aggregator names written by assertion checkpoints.
const (
	// SuccessCounter counts checkpoints that held.
	SuccessCounter = "pipetest/assert/success"

	// FailureCounter counts checkpoints that did not hold.
	FailureCounter = "pipetest/assert/failure"
)

// Assertion registers checkpoints against one collection.
// Every terminal method registers exactly one checkpoint.
type Assertion struct {
	p     *Pipeline
	col   PCollection
	label string
}

// AssertThat starts an assertion on col.
func AssertThat(p *Pipeline, col PCollection) *Assertion {
	return &Assertion{p: p, col: col}
}

// Named sets the label used for the checkpoint names and messages.
func (a *Assertion) Named(label string) *Assertion {
	a.label = label
	return a
}

// ContainsInAnyOrder checks that the collection holds exactly the given
// elements, as a multiset.
func (a *Assertion) ContainsInAnyOrder(expected ...ir.Value) {
	want := slices.Clone(expected)
	a.register("contains_in_any_order", func(name string) CheckFn {
		return func(actual []ir.Value) error {
			missing, unexpected, err := multisetDiff(want, actual)
			if err != nil {
				return err
			}
			if len(missing) == 0 && len(unexpected) == 0 {
				return nil
			}
			var b strings.Builder
			fmt.Fprintf(&b, "%s: expected %s to contain in any order %s, but was %s",
				name, a.subject(), formatValues(want), formatValues(actual))
			if len(missing) > 0 {
				fmt.Fprintf(&b, "; missing %s", formatValues(missing))
			}
			if len(unexpected) > 0 {
				fmt.Fprintf(&b, "; unexpected %s", formatValues(unexpected))
			}
			return &failure.AssertionError{Checkpoint: name, Message: b.String()}
		}
	})
}

// Empty checks that the collection has no elements.
func (a *Assertion) Empty() {
	a.register("empty", func(name string) CheckFn {
		return func(actual []ir.Value) error {
			if len(actual) == 0 {
				return nil
			}
			return failure.Assertionf(name, "%s: expected %s to be empty, but was %s",
				name, a.subject(), formatValues(actual))
		}
	})
}

// HasSize checks the number of elements.
func (a *Assertion) HasSize(n int) {
	a.register("has_size", func(name string) CheckFn {
		return func(actual []ir.Value) error {
			if len(actual) == n {
				return nil
			}
			return failure.Assertionf(name, "%s: expected %s to have %d elements, but found %d",
				name, a.subject(), n, len(actual))
		}
	})
}

// Satisfies runs fn over the complete collection. A nil return means the
// check held; a non-assertion error is reported as-is by the engine.
func (a *Assertion) Satisfies(description string, fn CheckFn) {
	if fn == nil {
		a.p.fail(fmt.Errorf("assertion %q: check function is nil", description))
	}
	a.register("satisfies", func(name string) CheckFn {
		return func(actual []ir.Value) error {
			return fn(actual)
		}
	})
}

// register adds one checkpoint transform named after the label (or the
// checkpoint index) and the check kind.
func (a *Assertion) register(check string, build func(name string) CheckFn) {
	base := a.label
	if base == "" {
		base = fmt.Sprintf("assert_%d", CountAssertions(a.p)+1)
	}
	name := base + "/" + check
	a.p.add(&Transform{Name: name, Kind: KindAssert, Check: build(name)}, a.col)
}

func (a *Assertion) subject() string {
	if t := a.p.Transform(a.col.id); t != nil && a.col.Valid() {
		return fmt.Sprintf("%q", t.Name)
	}
	return "collection"
}

// CountAssertions returns the number of checkpoints registered in p.
func CountAssertions(p *Pipeline) int {
	if p == nil {
		return 0
	}
	n := 0
	for _, t := range p.transforms {
		if t.Kind == KindAssert {
			n++
		}
	}
	return n
}

// multisetDiff returns the elements of want absent from got and the
// elements of got absent from want, counting duplicates.
func multisetDiff(want, got []ir.Value) (missing, unexpected []ir.Value, err error) {
	counts := make(map[string]int, len(want))
	for _, v := range want {
		k, err := ir.Key(v)
		if err != nil {
			return nil, nil, err
		}
		counts[k]++
	}
	for _, v := range got {
		k, err := ir.Key(v)
		if err != nil {
			return nil, nil, err
		}
		if counts[k] > 0 {
			counts[k]--
			continue
		}
		unexpected = append(unexpected, v)
	}
	for _, v := range want {
		k, _ := ir.Key(v)
		if counts[k] > 0 {
			counts[k]--
			missing = append(missing, v)
		}
	}
	return missing, unexpected, nil
}

// formatValues renders elements sorted by their canonical encoding, so that
// messages do not depend on execution order.
func formatValues(vals []ir.Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = ir.Format(v)
	}
	slices.Sort(parts)
	return "[" + strings.Join(parts, ", ") + "]"
}

// Package pipeline provides the in-process pipeline graph model executed by
// the engine and verified by the harness.
//
// A Pipeline is an ordered list of transforms. Each transform consumes at
// most one PCollection and produces one. Construction never fails eagerly;
// the first construction error is recorded on the pipeline and reported by
// Validate, so graphs can be built fluently:
//
//	p := pipeline.New("words")
//	words := pipeline.Create(p, "words", ir.Values("a", "bb")...)
//	lengths := pipeline.Map(p, "lengths", words, lengthFn)
//	pipeline.AssertThat(p, lengths).ContainsInAnyOrder(ir.Values(1, 2)...)
//
// Once handed to an engine the graph is treated as immutable.
package pipeline

import (
	"fmt"

	"github.com/roach88/pipetest/internal/ir"
)

// Kind identifies what a transform does.
type Kind string

const (
	KindCreate  Kind = "create"
	KindMap     Kind = "map"
	KindFilter  Kind = "filter"
	KindFlatMap Kind = "flat_map"
	KindCount   Kind = "count"
	KindAssert  Kind = "assert"
)

// ElementWise reports whether the kind processes one element at a time.
// Element-wise stages can be fused and run per element in streaming mode.
func (k Kind) ElementWise() bool {
	switch k {
	case KindMap, KindFilter, KindFlatMap:
		return true
	}
	return false
}

// MapFn transforms one element.
type MapFn func(ir.Value) (ir.Value, error)

// FilterFn keeps an element when it returns true.
type FilterFn func(ir.Value) (bool, error)

// FlatMapFn expands one element into zero or more.
type FlatMapFn func(ir.Value) ([]ir.Value, error)

// CheckFn verifies the complete contents of a collection. It returns an
// error (normally a *failure.AssertionError) when the check does not hold.
type CheckFn func([]ir.Value) error

// PCollection is a handle to the output of a transform.
type PCollection struct {
	p  *Pipeline
	id int
}

// ID returns the index of the transform that produces the collection.
func (c PCollection) ID() int { return c.id }

// Valid reports whether the handle was produced by a pipeline.
func (c PCollection) Valid() bool { return c.p != nil }

// Transform is one node of the graph.
// Only the field matching Kind is populated.
type Transform struct {
	Name  string
	Kind  Kind
	Input int // -1 for root transforms
	ID    int

	Values  []ir.Value // KindCreate
	Map     MapFn      // KindMap
	Filter  FilterFn   // KindFilter
	FlatMap FlatMapFn  // KindFlatMap
	Check   CheckFn    // KindAssert
}

// Pipeline is the graph under construction.
type Pipeline struct {
	name       string
	transforms []*Transform
	names      map[string]bool
	err        error
}

// New creates an empty pipeline.
func New(name string) *Pipeline {
	return &Pipeline{
		name:  name,
		names: make(map[string]bool),
	}
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Transforms returns the transforms in declaration order.
// The returned slice is a copy; the transforms themselves are shared.
func (p *Pipeline) Transforms() []*Transform {
	out := make([]*Transform, len(p.transforms))
	copy(out, p.transforms)
	return out
}

// Transform returns the transform with the given ID.
func (p *Pipeline) Transform(id int) *Transform {
	if id < 0 || id >= len(p.transforms) {
		return nil
	}
	return p.transforms[id]
}

// Consumers returns the IDs of the transforms reading the given transform's
// output, in declaration order.
func (p *Pipeline) Consumers(id int) []int {
	var out []int
	for _, t := range p.transforms {
		if t.Input == id {
			out = append(out, t.ID)
		}
	}
	return out
}

// Validate returns the first construction error, if any.
func Validate(p *Pipeline) error {
	if p == nil {
		return fmt.Errorf("pipeline is nil")
	}
	return p.err
}

// Create adds a root transform emitting the given elements.
func Create(p *Pipeline, name string, values ...ir.Value) PCollection {
	vals := make([]ir.Value, len(values))
	copy(vals, values)
	return p.add(&Transform{Name: name, Kind: KindCreate, Input: -1, Values: vals}, PCollection{})
}

// Map adds an element-wise transform.
func Map(p *Pipeline, name string, in PCollection, fn MapFn) PCollection {
	if fn == nil {
		p.fail(fmt.Errorf("transform %q: map function is nil", name))
	}
	return p.add(&Transform{Name: name, Kind: KindMap, Map: fn}, in)
}

// Filter adds a transform keeping only the elements fn accepts.
func Filter(p *Pipeline, name string, in PCollection, fn FilterFn) PCollection {
	if fn == nil {
		p.fail(fmt.Errorf("transform %q: filter function is nil", name))
	}
	return p.add(&Transform{Name: name, Kind: KindFilter, Filter: fn}, in)
}

// FlatMap adds a transform expanding each element into zero or more.
func FlatMap(p *Pipeline, name string, in PCollection, fn FlatMapFn) PCollection {
	if fn == nil {
		p.fail(fmt.Errorf("transform %q: flat map function is nil", name))
	}
	return p.add(&Transform{Name: name, Kind: KindFlatMap, FlatMap: fn}, in)
}

// Count adds a transform emitting a single Int: the number of input elements.
func Count(p *Pipeline, name string, in PCollection) PCollection {
	return p.add(&Transform{Name: name, Kind: KindCount}, in)
}

func (p *Pipeline) add(t *Transform, in PCollection) PCollection {
	t.ID = len(p.transforms)
	if t.Kind != KindCreate {
		switch {
		case !in.Valid():
			p.fail(fmt.Errorf("transform %q: input collection is not set", t.Name))
			t.Input = -1
		case in.p != p:
			p.fail(fmt.Errorf("transform %q: input collection belongs to another pipeline", t.Name))
			t.Input = -1
		default:
			t.Input = in.id
		}
	}
	switch {
	case t.Name == "":
		p.fail(fmt.Errorf("transform %d: name is required", t.ID))
	case p.names[t.Name]:
		p.fail(fmt.Errorf("transform %q: duplicate name", t.Name))
	}
	p.names[t.Name] = true
	p.transforms = append(p.transforms, t)
	return PCollection{p: p, id: t.ID}
}

// fail records the first construction error.
func (p *Pipeline) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

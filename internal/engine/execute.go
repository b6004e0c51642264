package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime/debug"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/pipetest/internal/failure"
	"github.com/roach88/pipetest/internal/ir"
	"github.com/roach88/pipetest/internal/pipeline"
)

var errNilElement = errors.New("user function produced a nil element")

// execution holds the state of one run. It is driven from a single
// goroutine; only element-wise bundles run concurrently, and they write to
// disjoint slots.
type execution struct {
	transforms  []*pipeline.Transform
	consumers   [][]int
	outputs     [][]ir.Value
	aggs        aggregators
	parallelism int
	logger      *slog.Logger
}

func newExecution(p *pipeline.Pipeline, parallelism int, logger *slog.Logger) *execution {
	transforms := p.Transforms()
	x := &execution{
		transforms:  transforms,
		consumers:   make([][]int, len(transforms)),
		outputs:     make([][]ir.Value, len(transforms)),
		aggs:        aggregators{},
		parallelism: parallelism,
		logger:      logger,
	}
	for _, t := range transforms {
		x.consumers[t.ID] = p.Consumers(t.ID)
	}
	if pipeline.CountAssertions(p) > 0 {
		x.aggs.register(pipeline.SuccessCounter)
		x.aggs.register(pipeline.FailureCounter)
	}
	return x
}

// batch runs every transform over its complete input, in declaration order.
func (x *execution) batch(ctx context.Context) error {
	for _, t := range x.transforms {
		if err := ctx.Err(); err != nil {
			return err
		}

		var out []ir.Value
		var err error
		switch {
		case t.Kind == pipeline.KindCreate:
			out = slices.Clone(t.Values)
		case t.Kind.ElementWise():
			out, err = x.runBundles(ctx, t, x.outputs[t.Input])
		default:
			out, err = x.aggregate(t, x.outputs[t.Input])
		}
		if err != nil {
			return err
		}
		x.outputs[t.ID] = out
		x.logger.Debug("stage finished", "stage", t.Name, "elements", len(out))
	}
	return nil
}

// runBundles splits in into at most parallelism contiguous bundles and
// processes them concurrently. Outputs are concatenated in bundle order and
// the reported failure is the one from the lowest failing bundle.
func (x *execution) runBundles(ctx context.Context, t *pipeline.Transform, in []ir.Value) ([]ir.Value, error) {
	n := min(x.parallelism, len(in))
	if n <= 1 {
		return x.runBundle(ctx, t, in)
	}

	size := (len(in) + n - 1) / n
	var bundles [][]ir.Value
	for start := 0; start < len(in); start += size {
		bundles = append(bundles, in[start:min(start+size, len(in))])
	}

	outs := make([][]ir.Value, len(bundles))
	errs := make([]error, len(bundles))
	var g errgroup.Group
	g.SetLimit(x.parallelism)
	for i, bundle := range bundles {
		i, bundle := i, bundle
		g.Go(func() error {
			outs[i], errs[i] = x.runBundle(ctx, t, bundle)
			return errs[i]
		})
	}
	if g.Wait() != nil {
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
	}
	return concatValues(outs...), nil
}

func (x *execution) runBundle(ctx context.Context, t *pipeline.Transform, bundle []ir.Value) ([]ir.Value, error) {
	var out []ir.Value
	for _, v := range bundle {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := apply(t, v)
		if err != nil {
			return nil, &failure.StageError{Stage: t.Name, Cause: err}
		}
		out = append(out, res...)
	}
	return out, nil
}

// stream pushes elements one at a time through fused element-wise stages.
// Aggregating stages fire in declaration order once the roots are drained.
func (x *execution) stream(ctx context.Context) error {
	buffers := make(map[int][]ir.Value)

	var push func(id int, v ir.Value) error
	push = func(id int, v ir.Value) error {
		x.outputs[id] = append(x.outputs[id], v)
		for _, c := range x.consumers[id] {
			t := x.transforms[c]
			if !t.Kind.ElementWise() {
				buffers[c] = append(buffers[c], v)
				continue
			}
			res, err := apply(t, v)
			if err != nil {
				return &failure.StageError{Stage: t.Name, Cause: err}
			}
			for _, r := range res {
				if err := push(c, r); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for _, t := range x.transforms {
		if t.Kind != pipeline.KindCreate {
			continue
		}
		for _, v := range t.Values {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := push(t.ID, v); err != nil {
				return err
			}
		}
	}

	for _, t := range x.transforms {
		if t.Kind == pipeline.KindCreate || t.Kind.ElementWise() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := x.aggregate(t, buffers[t.ID])
		if err != nil {
			return err
		}
		delete(buffers, t.ID)
		for _, r := range res {
			if err := push(t.ID, r); err != nil {
				return err
			}
		}
		x.logger.Debug("stage fired", "stage", t.Name, "elements", len(res))
	}
	return nil
}

// aggregate runs a stage that needs its whole input.
func (x *execution) aggregate(t *pipeline.Transform, in []ir.Value) ([]ir.Value, error) {
	switch t.Kind {
	case pipeline.KindCount:
		return []ir.Value{ir.Int(len(in))}, nil
	case pipeline.KindAssert:
		err := callUser(t.Name, func() error {
			return t.Check(slices.Clone(in))
		})
		if err != nil {
			x.aggs.add(pipeline.FailureCounter, 1)
			return nil, &failure.StageError{Stage: t.Name, Cause: err}
		}
		x.aggs.add(pipeline.SuccessCounter, 1)
		return nil, nil
	default:
		return nil, fmt.Errorf("transform %q: unsupported kind %q", t.Name, t.Kind)
	}
}

// apply runs an element-wise user function on one element.
func apply(t *pipeline.Transform, v ir.Value) ([]ir.Value, error) {
	var out []ir.Value
	err := callUser(t.Name, func() error {
		switch t.Kind {
		case pipeline.KindMap:
			r, err := t.Map(v)
			if err != nil {
				return err
			}
			if r == nil {
				return errNilElement
			}
			out = []ir.Value{r}
		case pipeline.KindFilter:
			keep, err := t.Filter(v)
			if err != nil {
				return err
			}
			if keep {
				out = []ir.Value{v}
			}
		case pipeline.KindFlatMap:
			rs, err := t.FlatMap(v)
			if err != nil {
				return err
			}
			if slices.Contains(rs, nil) {
				return errNilElement
			}
			out = rs
		default:
			return fmt.Errorf("unsupported kind %q", t.Kind)
		}
		return nil
	})
	return out, err
}

// callUser invokes user code, converting a returned error or a panic into a
// *failure.UserCodeError for step.
func callUser(step string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &failure.UserCodeError{
				Step:  step,
				Cause: &failure.PanicError{Value: r, Stack: debug.Stack()},
			}
		}
	}()
	if cause := fn(); cause != nil {
		return &failure.UserCodeError{Step: step, Cause: cause}
	}
	return nil
}

// aggregators accumulates named counters during a run.
type aggregators map[string]int64

func (a aggregators) register(name string) {
	if _, ok := a[name]; !ok {
		a[name] = 0
	}
}

func (a aggregators) add(name string, delta int64) {
	a[name] += delta
}

func (a aggregators) snapshot() map[string]int64 {
	return maps.Clone(a)
}

// concatValues mirrors slices.Concat (Go 1.22+) for the Go 1.21 toolchain.
func concatValues(ss ...[]ir.Value) []ir.Value {
	var out []ir.Value
	for _, s := range ss {
		out = append(out, s...)
	}
	return out
}

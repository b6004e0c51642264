package engine

import (
	"context"
	"slices"

	"github.com/roach88/pipetest/internal/ir"
	"github.com/roach88/pipetest/internal/pipeline"
	"github.com/roach88/pipetest/internal/store"
)

// State is the terminal state of a run.
type State string

const (
	StateDone   State = "DONE"
	StateFailed State = "FAILED"
)

// Result is the handle to a completed run.
type Result struct {
	runID   string
	state   State
	store   *store.Store
	outputs [][]ir.Value
}

// RunID returns the ID the run was recorded under.
func (r *Result) RunID() string { return r.runID }

// State returns the terminal state of the run.
func (r *Result) State() State { return r.state }

// AggregatorValue returns the final value of a named aggregator.
// Returns an error wrapping store.ErrAggregatorNotFound if the run never
// registered it.
func (r *Result) AggregatorValue(ctx context.Context, name string) (int64, error) {
	return r.store.AggregatorValue(ctx, r.runID, name)
}

// Aggregators returns every aggregator of the run.
func (r *Result) Aggregators(ctx context.Context) (map[string]int64, error) {
	return r.store.Aggregators(ctx, r.runID)
}

// Output returns the elements the run materialized for col. Collections
// downstream of a failure are empty.
func (r *Result) Output(col pipeline.PCollection) []ir.Value {
	id := col.ID()
	if !col.Valid() || id < 0 || id >= len(r.outputs) {
		return nil
	}
	return slices.Clone(r.outputs[id])
}

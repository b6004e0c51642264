package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/pipetest/internal/ir"
	"github.com/roach88/pipetest/internal/pipeline"
)

// Snapshot captures what a test observed from one harness run.
// It holds nothing that varies between runs (no run IDs, no stacks), so
// the same pipeline always snapshots to the same bytes.
type Snapshot struct {
	Pipeline   string
	Streaming  bool
	Assertions int
	Outcome    Outcome
	Error      string
}

// NewSnapshot records the outcome err of running p.
func NewSnapshot(p *pipeline.Pipeline, streaming bool, err error) Snapshot {
	s := Snapshot{
		Pipeline:   p.Name(),
		Streaming:  streaming,
		Assertions: pipeline.CountAssertions(p),
		Outcome:    Classify(err),
	}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

// Canonical returns the canonical JSON encoding of the snapshot.
func (s Snapshot) Canonical() ([]byte, error) {
	rec := ir.Record{
		"pipeline":   ir.String(s.Pipeline),
		"streaming":  ir.Bool(s.Streaming),
		"assertions": ir.Int(s.Assertions),
		"outcome":    ir.String(s.Outcome),
	}
	if s.Error != "" {
		rec["error"] = ir.String(s.Error)
	}
	return ir.Marshal(rec)
}

// AssertGolden compares the snapshot against testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, s Snapshot) {
	t.Helper()

	data, err := s.Canonical()
	if err != nil {
		t.Fatalf("snapshot %s: %v", name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}

// Package options holds the execution options handed to the engine and the
// harness, together with their schema validation and file loading.
//
// Options is a plain value. Nothing in this repository mutates a caller's
// Options in place; derived configurations are returned as new values.
package options

import (
	"maps"
)

// Execution targets understood by the in-process engine.
const (
	// TestTarget is the sentinel that selects the engine's test execution
	// environment. The harness forces it on every configuration.
	TestTarget = "[auto]"

	// LocalTarget selects a local environment sized from the options.
	LocalTarget = "[local]"

	// CollectionTarget selects the single-threaded collection environment.
	CollectionTarget = "[collection]"
)

// Defaults applied by Default and by Load before decoding a file.
const (
	DefaultRunner      = "LocalRunner"
	DefaultParallelism = -1 // engine chooses
	DefaultMetricsDB   = ":memory:"
)

// Options configures a pipeline run.
type Options struct {
	// Runner names the runner that should execute the pipeline.
	Runner string `yaml:"runner" json:"runner"`

	// Target selects the execution environment: one of the bracketed
	// sentinels, or host:port for a remote cluster.
	Target string `yaml:"target" json:"target"`

	// Streaming selects streaming (element at a time) over batch execution.
	Streaming bool `yaml:"streaming" json:"streaming"`

	// Parallelism bounds concurrent bundles per stage; -1 lets the engine decide.
	Parallelism int `yaml:"parallelism" json:"parallelism"`

	// JobName labels the run. Empty means derive from the pipeline name.
	JobName string `yaml:"job_name" json:"job_name"`

	// MetricsDB is the SQLite path for run records and aggregator values.
	MetricsDB string `yaml:"metrics_db" json:"metrics_db"`

	// Labels are free-form key/value pairs recorded with each run.
	Labels map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// Default returns a fresh default configuration.
func Default() Options {
	return Options{
		Runner:      DefaultRunner,
		Target:      TestTarget,
		Parallelism: DefaultParallelism,
		MetricsDB:   DefaultMetricsDB,
	}
}

// Clone returns a deep copy of o.
func (o Options) Clone() Options {
	c := o
	c.Labels = maps.Clone(o.Labels)
	return c
}

// DeriveTestOptions returns a copy of base with the target forced to
// TestTarget. Any target set on base is discarded. base is not modified.
func DeriveTestOptions(base Options) Options {
	derived := base.Clone()
	derived.Target = TestTarget
	return derived
}

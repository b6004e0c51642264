// Package store provides SQLite-backed storage for pipeline run records and
// the aggregator values produced by each run.
//
// The store holds two tables:
//   - runs: one row per pipeline run (status, graph digest, logical seqs)
//   - aggregators: named int64 counters per run
//
// # Ordering
//
// Runs are ordered by started_seq, a value taken from the engine's logical
// clock, never by wall-clock timestamps. Queries include an explicit
// ORDER BY so listings are identical across invocations.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: aggregators reference runs
//
// Passing ":memory:" to Open gives a private database that lives as long as
// the Store. The connection pool is limited to one connection, so the
// in-memory database is not lost between statements.
package store

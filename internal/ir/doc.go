// Package ir provides the element value model shared by the pipeline model,
// the execution engine and the scenario loader.
//
// Pipeline elements are constrained to a small sealed set of value kinds so
// that they can be compared, hashed and printed deterministically:
//
//   - String, Int, Bool
//   - List (ordered)
//   - Record (string keys, iterated in canonical key order)
//
// There is no float and no null kind. YAML and JSON inputs that carry either
// are rejected at the boundary by FromAny.
//
// All other internal packages may import ir; ir imports nothing internal.
package ir

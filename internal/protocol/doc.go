// Package protocol defines the declarative interaction protocol model:
// roles, message schemas with parameter polarity, and the value types
// messages carry.
//
// A protocol is written in CUE and compiled once at process start into an
// immutable Protocol value. Compilation precomputes each schema's input and
// output parameter sets so that runtime validation never re-parses the
// specification. Static validation (Validate) runs a fixpoint reachability
// check: every `in` parameter must be producible as an `out` or `private`
// parameter of some schema enabled earlier in at least one execution order.
// Protocols that fail validation are a configuration error, fatal at
// startup.
//
// Parameter values are a sealed set (String, Int, Bool). Money is always
// an Int in cents - floats are forbidden in the wire model because they
// break canonical serialization and deterministic replay. Messages are
// content-addressed: MessageID hashes the canonical JSON form, so duplicate
// delivery of the same message instance produces the same ID.
package protocol

// Package sim wires the three role policies and their causality engines
// into a deterministic simulation run.
//
// The runner is a single-writer event loop: messages move through one
// FIFO queue, each delivery is validated by the recipient's engine, and
// every accepted message gets a global seq from one logical clock. With
// scripted samplers and sequential keys the same scenario produces a
// byte-identical trace, which is what the golden tests pin.
//
// Scenarios are strict YAML: unknown fields are rejected, and cross-role
// references (buyer items against the seller catalog, buyer addresses
// against the shipper zone table) are validated at load. Configuration
// problems are fatal before the first message moves.
package sim

// Package buyer implements the purchasing policy: which items to request
// quotes for, whether to accept or reject a quote, and where to ship.
//
// The policy is deterministic given its Sampler: the same seed and the same
// inbound message order produce the same requests and decisions. All money
// is integer cents; no floats cross the policy boundary.
//
// The budget ledger is the buyer's only mutable state. It is updated on
// every request and every accept/reject, regardless of how the transaction
// instance ultimately ends. Stopping is fail-closed: when no candidate item
// has both request quota and sub-budget headroom left, NextRequest reports
// done even if the overall request quota is not exhausted.
package buyer

// Package causality implements the per-instance parameter-binding ledger
// that enforces a protocol's information-dependency constraints.
//
// Each role process owns one Engine. The engine tracks, per transaction
// instance (identified by the protocol's key parameters), which parameters
// have been bound by prior messages. Emission goes through ValidateAndBind:
// a message is accepted only if every `in` parameter is already bound to
// the exact value the message carries and every `out` parameter is either
// new or an exact duplicate. Reception goes through Receive, which applies
// the same conflict checks but learns unbound `in` parameters from the
// wire, since a role may first hear of an instance mid-protocol. Duplicate
// delivery is idempotent, not an error.
//
// Engine state is partitioned by instance key, so concurrently open
// instances never observe each other's bindings. Policies receive a
// Snapshot - a copied view - and can never mutate engine state directly.
//
// Violations surface as *Rejection values with structured codes so callers
// can tell a fatal protocol violation from a benign duplicate. The engine
// never crashes the hosting role on a violation and imposes no timeouts;
// instance eviction is left to the hosting runtime.
package causality

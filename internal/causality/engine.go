package causality

import (
	"fmt"
	"sync"

	"github.com/kadewey/parley/internal/protocol"
)

// State is the lifecycle state of a transaction instance.
type State string

const (
	// StateOpen: the ledger is accepting bindings.
	StateOpen State = "open"

	// StateClosed: a terminal message was recorded; no further mutation.
	StateClosed State = "closed"
)

// Snapshot is a read-only view of an instance's accumulated knowledge.
// Bindings is a copy - mutating it never affects engine state.
type Snapshot struct {
	Key      string
	State    State
	Bindings protocol.Params
}

// Bound returns the bound value for a parameter, if any.
func (s Snapshot) Bound(name string) (protocol.Value, bool) {
	v, ok := s.Bindings[name]
	return v, ok
}

// String returns the bound value as a Go string, or "" if unbound or not
// a protocol.String.
func (s Snapshot) String(name string) string {
	if v, ok := s.Bindings[name].(protocol.String); ok {
		return string(v)
	}
	return ""
}

// Int returns the bound value as an int64, or 0 if unbound or not a
// protocol.Int.
func (s Snapshot) Int(name string) int64 {
	if v, ok := s.Bindings[name].(protocol.Int); ok {
		return int64(v)
	}
	return 0
}

// instance is the per-key binding ledger.
type instance struct {
	state    State
	bindings protocol.Params
	boundAt  map[string]int64 // param -> seq when first bound
}

// Engine validates messages against a protocol and maintains one binding
// ledger per transaction instance. One engine per role process; each role
// sees only the instances it participates in.
//
// Instances are partitioned by key, so concurrent instances never contend
// on bindings; the single mutex only guards the instance map and the
// per-message validate-merge step, which is short and allocation-light.
type Engine struct {
	proto *protocol.Protocol
	clock *Clock

	mu        sync.Mutex
	instances map[string]*instance
}

// New creates an engine for the given compiled protocol.
func New(proto *protocol.Protocol) *Engine {
	return &Engine{
		proto:     proto,
		clock:     NewClock(),
		instances: make(map[string]*instance),
	}
}

// NewWithClock creates an engine resuming from a specific logical clock.
// Used by replay.
func NewWithClock(proto *protocol.Protocol, clock *Clock) *Engine {
	return &Engine{
		proto:     proto,
		clock:     clock,
		instances: make(map[string]*instance),
	}
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// InstanceKey derives the instance identity from a message's key
// parameters. Every message of an instance carries all key parameters, so
// any message suffices to correlate.
func InstanceKey(proto *protocol.Protocol, msg protocol.Message) (string, error) {
	key := ""
	for i, name := range proto.Keys {
		v, ok := msg.Params[name]
		if !ok {
			return "", &Rejection{Code: CodeMissingKey, Schema: msg.Schema, Param: name}
		}
		if i > 0 {
			key += "/"
		}
		key += keyString(v)
	}
	return key, nil
}

func keyString(v protocol.Value) string {
	switch val := v.(type) {
	case protocol.String:
		return string(val)
	case protocol.Int:
		return fmt.Sprintf("%d", int64(val))
	case protocol.Bool:
		return fmt.Sprintf("%t", bool(val))
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ValidateAndBind checks a message against the protocol's causality
// constraints and, on success, merges its newly established parameters
// into the instance ledger, returning the updated knowledge snapshot.
//
// This is the emission-side check (also used when replaying a complete
// trace): every `in` parameter must already be bound in this ledger, so
// a role can never send values it does not know. Rules, in order:
//   - the schema must exist and the sender must match its declared role
//   - all key parameters must be present
//   - every `in` parameter must be carried by the message AND already
//     bound in the ledger to the exact same value
//   - every `out` parameter must be carried and either unbound or bound
//     to the exact same value (duplicate delivery is idempotent)
//   - a closed instance accepts only exact duplicates of recorded
//     bindings; anything else is CodeInstanceClosed
//
// Failures return a *Rejection; the instance is left untouched (bindings
// merge only after every parameter has been checked).
func (e *Engine) ValidateAndBind(msg protocol.Message) (Snapshot, error) {
	return e.apply(msg, false)
}

// Receive checks an inbound message from a peer role and merges its
// bindings into the ledger.
//
// Reception is an integrity check, not a viability check: the receiver
// may be hearing about this instance for the first time (the shipper's
// first contact is the ship message), so `in` parameters it has never
// bound are learned from the wire. Everything else matches
// ValidateAndBind: ins must be carried, any parameter already bound must
// match exactly, duplicates are idempotent, and closed instances accept
// only exact duplicates.
func (e *Engine) Receive(msg protocol.Message) (Snapshot, error) {
	return e.apply(msg, true)
}

func (e *Engine) apply(msg protocol.Message, learnInputs bool) (Snapshot, error) {
	schema, ok := e.proto.Schema(msg.Schema)
	if !ok {
		return Snapshot{}, &Rejection{Code: CodeUnknownSchema, Schema: msg.Schema}
	}
	if msg.From != schema.From {
		return Snapshot{}, &Rejection{
			Code: CodeWrongSender, Schema: msg.Schema,
			Detail: fmt.Sprintf("sender %q, schema declares %q", msg.From, schema.From),
		}
	}

	key, err := InstanceKey(e.proto, msg)
	if err != nil {
		return Snapshot{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	inst, exists := e.instances[key]

	// Validate every parameter before mutating anything.
	newOuts := make([]string, 0, len(schema.Params))
	for _, param := range schema.Params {
		v, present := msg.Params[param.Name]

		switch param.Polarity {
		case protocol.In:
			if !present {
				return Snapshot{}, &Rejection{
					Code: CodeMissingInput, Schema: msg.Schema, Key: key,
					Param: param.Name, Detail: "not carried by message",
				}
			}
			var bound protocol.Value
			var ok bool
			if exists {
				bound, ok = inst.bindings[param.Name]
			}
			if !ok {
				if !learnInputs {
					return Snapshot{}, &Rejection{
						Code: CodeMissingInput, Schema: msg.Schema, Key: key,
						Param: param.Name, Detail: "not bound in instance ledger",
					}
				}
				newOuts = append(newOuts, param.Name)
				continue
			}
			if !protocol.Equal(bound, v) {
				return Snapshot{}, &Rejection{
					Code: CodeValueConflict, Schema: msg.Schema, Key: key,
					Param: param.Name, Detail: "message value disagrees with bound value",
				}
			}

		case protocol.Out:
			if !present {
				return Snapshot{}, &Rejection{
					Code: CodeMissingOutput, Schema: msg.Schema, Key: key,
					Param: param.Name, Detail: "not carried by message",
				}
			}
			if exists {
				if bound, ok := inst.bindings[param.Name]; ok {
					if !protocol.Equal(bound, v) {
						return Snapshot{}, &Rejection{
							Code: CodeValueConflict, Schema: msg.Schema, Key: key,
							Param: param.Name, Detail: "conflicts with already-bound value",
						}
					}
					continue // exact duplicate, nothing to merge
				}
			}
			newOuts = append(newOuts, param.Name)

		case protocol.Private:
			// Private parameters are bound locally by the sender; they may
			// be absent from the wire form entirely.
			if !present {
				continue
			}
			if exists {
				if bound, ok := inst.bindings[param.Name]; ok {
					if !protocol.Equal(bound, v) {
						return Snapshot{}, &Rejection{
							Code: CodeValueConflict, Schema: msg.Schema, Key: key,
							Param: param.Name, Detail: "conflicts with already-bound value",
						}
					}
					continue
				}
			}
			newOuts = append(newOuts, param.Name)
		}
	}

	if exists && inst.state == StateClosed {
		if len(newOuts) == 0 {
			// Exact duplicate of an already-recorded message: idempotent.
			return e.snapshotLocked(key, inst), nil
		}
		return Snapshot{}, &Rejection{
			Code: CodeInstanceClosed, Schema: msg.Schema, Key: key,
		}
	}

	if !exists {
		inst = &instance{
			state:    StateOpen,
			bindings: make(protocol.Params),
			boundAt:  make(map[string]int64),
		}
		e.instances[key] = inst
	}

	for _, name := range newOuts {
		inst.bindings[name] = msg.Params[name]
		inst.boundAt[name] = e.clock.Next()
	}
	if schema.Terminal {
		inst.state = StateClosed
	}

	return e.snapshotLocked(key, inst), nil
}

// Snapshot returns the read-only knowledge view for an instance.
func (e *Engine) Snapshot(key string) (Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[key]
	if !ok {
		return Snapshot{}, false
	}
	return e.snapshotLocked(key, inst), true
}

// snapshotLocked copies instance state. Caller holds e.mu.
func (e *Engine) snapshotLocked(key string, inst *instance) Snapshot {
	return Snapshot{
		Key:      key,
		State:    inst.state,
		Bindings: inst.bindings.Clone(),
	}
}

// BoundAt returns the logical-clock seq at which a parameter was first
// bound, for trace ordering.
func (e *Engine) BoundAt(key, param string) (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[key]
	if !ok {
		return 0, false
	}
	seq, ok := inst.boundAt[param]
	return seq, ok
}

// Evict discards an instance's ledger. The engine is timeout-agnostic:
// lifecycle management after closure (or abandonment) belongs to the
// hosting runtime.
func (e *Engine) Evict(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.instances, key)
}

// InstanceCount returns the number of instances currently tracked.
// Useful for eviction bookkeeping and tests.
func (e *Engine) InstanceCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.instances)
}

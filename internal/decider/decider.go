package decider

import "context"

// Prompt is one judgment request from a role policy.
type Prompt struct {
	// Role is the requesting role name, lowercase (buyer, seller, shipper).
	Role string

	// System frames the model's persona. Empty uses a standard agent frame.
	System string

	// User is the decision question, including any JSON shape instructions.
	User string

	// Fallback is the safe outcome used when the response cannot be
	// parsed. Decisions fail toward it, never toward an error.
	Fallback Outcome
}

// Outcome is a decoded decision.
type Outcome struct {
	// Decision is the normalized (upper-case) decision verb.
	Decision string

	// Fields carries any additional response values, stringified.
	Fields map[string]string
}

// Field returns a named field or "".
func (o Outcome) Field(name string) string {
	return o.Fields[name]
}

// Decider turns a prompt into an outcome.
type Decider interface {
	Decide(ctx context.Context, p Prompt) (Outcome, error)
}

// RuleFunc adapts a plain function into a Decider. It is the
// deterministic default: policies encode their rules directly and no
// external call is made.
type RuleFunc func(ctx context.Context, p Prompt) (Outcome, error)

// Decide implements Decider.
func (f RuleFunc) Decide(ctx context.Context, p Prompt) (Outcome, error) {
	return f(ctx, p)
}

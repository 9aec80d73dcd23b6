package protocol

import "fmt"

// Polarity describes how a message schema relates to a parameter.
type Polarity string

const (
	// In parameters must already be bound in the instance ledger before
	// the message may be sent or accepted.
	In Polarity = "in"

	// Out parameters are newly established by the message.
	Out Polarity = "out"

	// Private parameters are bound locally by the sending role and never
	// revealed to other roles.
	Private Polarity = "private"
)

// ValidPolarities enumerates the allowed polarity strings.
var ValidPolarities = map[Polarity]bool{
	In:      true,
	Out:     true,
	Private: true,
}

// Param is a named parameter with its polarity within one schema.
// The same parameter name may carry different polarities in different
// schemas (typically `out` where it is established, `in` everywhere after).
type Param struct {
	Name     string
	Polarity Polarity
}

// Schema describes one message type: who sends it, who receives it, and
// which parameters it consumes (in) versus establishes (out/private).
//
// Input and output sets are precomputed at compile time (see precompute)
// so per-message validation is a map lookup, never a spec re-parse.
type Schema struct {
	Name     string
	From     string
	To       string
	Params   []Param // declaration order
	Terminal bool    // recording this message closes the instance

	inputs  map[string]bool
	outputs map[string]bool // out and private
}

// precompute builds the input/output lookup sets.
// Called by the compiler; must run before Inputs/Outputs/Produces.
func (s *Schema) precompute() {
	s.inputs = make(map[string]bool)
	s.outputs = make(map[string]bool)
	for _, p := range s.Params {
		switch p.Polarity {
		case In:
			s.inputs[p.Name] = true
		case Out, Private:
			s.outputs[p.Name] = true
		}
	}
}

// Inputs reports whether name is an `in` parameter of this schema.
func (s *Schema) Inputs(name string) bool { return s.inputs[name] }

// Produces reports whether name is an `out` or `private` parameter of
// this schema.
func (s *Schema) Produces(name string) bool { return s.outputs[name] }

// PolarityOf returns the polarity of the named parameter.
func (s *Schema) PolarityOf(name string) (Polarity, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p.Polarity, true
		}
	}
	return "", false
}

// Protocol is an immutable, compiled interaction protocol.
type Protocol struct {
	Name    string
	Roles   []string
	Keys    []string  // parameters that jointly identify an instance
	Schemas []*Schema // declaration order

	byName map[string]*Schema
}

// Schema returns the schema with the given name.
func (p *Protocol) Schema(name string) (*Schema, bool) {
	s, ok := p.byName[name]
	return s, ok
}

// HasRole reports whether the protocol declares the given role.
func (p *Protocol) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// index builds the by-name schema lookup and precomputes parameter sets.
// Called by the compiler after all schemas are parsed.
func (p *Protocol) index() error {
	p.byName = make(map[string]*Schema, len(p.Schemas))
	for _, s := range p.Schemas {
		if _, dup := p.byName[s.Name]; dup {
			return fmt.Errorf("duplicate schema name: %s", s.Name)
		}
		s.precompute()
		p.byName[s.Name] = s
	}
	return nil
}

package protocol

import (
	"fmt"
	"strings"
)

// Validate runs static checks on a compiled protocol. A protocol that
// fails validation can never produce a legal execution, so callers treat
// any error here as a fatal configuration error.
//
// Checks:
//   - every schema names declared sender and receiver roles
//   - every key parameter appears in every schema
//   - information-flow fixpoint: every schema must be enableable, meaning
//     all of its `in` parameters are producible by schemas enabled earlier
//     in at least one execution order
//   - at least one terminal schema exists, otherwise instances never close
func Validate(p *Protocol) error {
	for _, s := range p.Schemas {
		if !p.HasRole(s.From) {
			return fmt.Errorf("schema %s: sender %q is not a declared role", s.Name, s.From)
		}
		if !p.HasRole(s.To) {
			return fmt.Errorf("schema %s: receiver %q is not a declared role", s.Name, s.To)
		}
		for _, key := range p.Keys {
			if _, ok := s.PolarityOf(key); !ok {
				return fmt.Errorf("schema %s: missing key parameter %q (keys must appear in every message)", s.Name, key)
			}
		}
	}

	if err := checkInformationFlow(p); err != nil {
		return err
	}

	for _, s := range p.Schemas {
		if s.Terminal {
			return nil
		}
	}
	return fmt.Errorf("protocol %s: no terminal schema - instances could never close", p.Name)
}

// checkInformationFlow runs the enablement fixpoint. A schema is enabled
// once every one of its `in` parameters is in the known set; enabling a
// schema adds its `out` and `private` parameters to the known set. Any
// schema left unenabled at the fixpoint references a parameter no valid
// execution order can have bound first.
func checkInformationFlow(p *Protocol) error {
	known := make(map[string]bool)
	enabled := make(map[string]bool, len(p.Schemas))

	for changed := true; changed; {
		changed = false
		for _, s := range p.Schemas {
			if enabled[s.Name] {
				continue
			}
			if !inputsKnown(s, known) {
				continue
			}
			enabled[s.Name] = true
			changed = true
			for _, param := range s.Params {
				if param.Polarity == Out || param.Polarity == Private {
					known[param.Name] = true
				}
			}
		}
	}

	for _, s := range p.Schemas {
		if !enabled[s.Name] {
			return fmt.Errorf("schema %s: input parameter(s) %s can never be bound by a prior message",
				s.Name, strings.Join(missingInputs(s, known), ", "))
		}
	}
	return nil
}

func inputsKnown(s *Schema, known map[string]bool) bool {
	for _, p := range s.Params {
		if p.Polarity == In && !known[p.Name] {
			return false
		}
	}
	return true
}

func missingInputs(s *Schema, known map[string]bool) []string {
	var missing []string
	for _, p := range s.Params {
		if p.Polarity == In && !known[p.Name] {
			missing = append(missing, p.Name)
		}
	}
	return missing
}

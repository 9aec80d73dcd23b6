package protocol

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileFile loads and compiles a protocol specification from a CUE file.
// The file must contain exactly one protocol under the top-level `protocol`
// struct:
//
//	protocol: Purchase: {
//		roles: ["Buyer", "Seller", "Shipper"]
//		keys:  ["ID"]
//		messages: { ... }
//	}
//
// Compile errors carry source positions. Parse errors are a configuration
// error - callers should treat them as fatal at startup.
func CompileFile(path string) (*Protocol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read protocol file: %w", err)
	}
	return CompileBytes(data, path)
}

// CompileBytes compiles protocol CUE source. filename is used in error
// positions only.
func CompileBytes(data []byte, filename string) (*Protocol, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	protoVal := v.LookupPath(cue.ParsePath("protocol"))
	if !protoVal.Exists() {
		return nil, &CompileError{
			Field:   "protocol",
			Message: "top-level protocol struct is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := protoVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var proto *Protocol
	for iter.Next() {
		if proto != nil {
			return nil, &CompileError{
				Field:   "protocol",
				Message: "exactly one protocol per file",
				Pos:     iter.Value().Pos(),
			}
		}
		proto, err = Compile(iter.Value())
		if err != nil {
			return nil, err
		}
		proto.Name = iter.Label()
	}
	if proto == nil {
		return nil, &CompileError{
			Field:   "protocol",
			Message: "protocol struct is empty",
			Pos:     protoVal.Pos(),
		}
	}

	if err := Validate(proto); err != nil {
		return nil, err
	}
	return proto, nil
}

// Compile parses a single protocol body (the struct under protocol.<Name>)
// into a Protocol. The caller is responsible for running Validate.
func Compile(v cue.Value) (*Protocol, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	proto := &Protocol{}

	// Name from the struct label when compiled standalone.
	if sel := v.Path().Selectors(); len(sel) > 0 {
		proto.Name = sel[len(sel)-1].String()
	}

	roles, err := parseStringList(v, "roles")
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, &CompileError{Field: "roles", Message: "at least one role is required", Pos: v.Pos()}
	}
	proto.Roles = roles

	keys, err := parseStringList(v, "keys")
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, &CompileError{Field: "keys", Message: "at least one key parameter is required", Pos: v.Pos()}
	}
	proto.Keys = keys

	msgsVal := v.LookupPath(cue.ParsePath("messages"))
	if !msgsVal.Exists() {
		return nil, &CompileError{Field: "messages", Message: "messages struct is required", Pos: v.Pos()}
	}

	iter, err := msgsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		schema, err := parseSchema(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		proto.Schemas = append(proto.Schemas, schema)
	}
	if len(proto.Schemas) == 0 {
		return nil, &CompileError{Field: "messages", Message: "at least one message schema is required", Pos: msgsVal.Pos()}
	}

	if err := proto.index(); err != nil {
		return nil, &CompileError{Field: "messages", Message: err.Error(), Pos: msgsVal.Pos()}
	}
	return proto, nil
}

// parseSchema parses one message schema struct.
func parseSchema(name string, v cue.Value) (*Schema, error) {
	schema := &Schema{Name: name}

	for _, field := range []struct {
		name string
		dst  *string
	}{
		{"from", &schema.From},
		{"to", &schema.To},
	} {
		fv := v.LookupPath(cue.ParsePath(field.name))
		if !fv.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("messages.%s.%s", name, field.name),
				Message: field.name + " is required",
				Pos:     v.Pos(),
			}
		}
		s, err := fv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		*field.dst = s
	}

	paramsVal := v.LookupPath(cue.ParsePath("params"))
	if !paramsVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("messages.%s.params", name),
			Message: "params struct is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := paramsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		polStr, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		pol := Polarity(polStr)
		if !ValidPolarities[pol] {
			return nil, &CompileError{
				Field:   fmt.Sprintf("messages.%s.params.%s", name, iter.Label()),
				Message: fmt.Sprintf("invalid polarity %q (want in, out, or private)", polStr),
				Pos:     iter.Value().Pos(),
			}
		}
		schema.Params = append(schema.Params, Param{Name: iter.Label(), Polarity: pol})
	}
	if len(schema.Params) == 0 {
		return nil, &CompileError{
			Field:   fmt.Sprintf("messages.%s.params", name),
			Message: "at least one parameter is required",
			Pos:     paramsVal.Pos(),
		}
	}

	termVal := v.LookupPath(cue.ParsePath("terminal"))
	if termVal.Exists() {
		term, err := termVal.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		schema.Terminal = term
	}

	return schema, nil
}

func parseStringList(v cue.Value, field string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	iter, err := fv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError is a protocol compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}

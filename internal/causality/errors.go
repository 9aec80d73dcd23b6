package causality

import (
	"errors"
	"fmt"
)

// Code categorizes why the engine rejected a message.
type Code string

const (
	// CodeUnknownSchema: the message names a schema the protocol does not
	// declare. Configuration-level fault on the sender's side.
	CodeUnknownSchema Code = "unknown-schema"

	// CodeWrongSender: the message claims a sender role that does not
	// match the schema's declared sender.
	CodeWrongSender Code = "wrong-sender"

	// CodeMissingKey: a key parameter is absent, so the message cannot be
	// correlated to any instance.
	CodeMissingKey Code = "missing-key"

	// CodeMissingInput: an `in` parameter is not carried by the message or
	// not yet bound in the instance ledger.
	CodeMissingInput Code = "missing-input"

	// CodeMissingOutput: an `out` parameter the schema requires is not
	// carried by the message.
	CodeMissingOutput Code = "missing-output"

	// CodeValueConflict: a parameter the message carries disagrees with
	// the value already bound for this instance.
	CodeValueConflict Code = "value-conflict"

	// CodeInstanceClosed: a terminal message already closed the instance
	// and the message is not an exact duplicate of recorded bindings.
	CodeInstanceClosed Code = "instance-closed"
)

// Rejection is a structured refusal from ValidateAndBind. It is an error
// value, never a panic: protocol violations are resolved locally and must
// not crash the receiving role.
type Rejection struct {
	Code   Code
	Schema string
	Key    string
	Param  string // offending parameter, when applicable
	Detail string
}

func (r *Rejection) Error() string {
	msg := fmt.Sprintf("%s: schema %s", r.Code, r.Schema)
	if r.Key != "" {
		msg += fmt.Sprintf(" (instance %s)", r.Key)
	}
	if r.Param != "" {
		msg += fmt.Sprintf(": param %q", r.Param)
	}
	if r.Detail != "" {
		msg += ": " + r.Detail
	}
	return msg
}

// AsRejection unwraps err into a *Rejection if it is one.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// IsCode reports whether err is a Rejection with the given code.
func IsCode(err error, code Code) bool {
	r, ok := AsRejection(err)
	return ok && r.Code == code
}

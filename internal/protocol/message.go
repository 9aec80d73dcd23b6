package protocol

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainMessage is the domain prefix for content-addressed message IDs.
// The version suffix allows a future hash-layout migration.
const DomainMessage = "parley/message/v1"

// Message is a concrete message instance: a schema name plus a value for
// every parameter the schema declares as in or out. Private parameters are
// bound locally by the sender and never appear on the wire.
type Message struct {
	Schema string
	From   string
	Params Params
}

// ID computes the content-addressed identity of the message.
// Two deliveries of the same message instance hash to the same ID, which
// is what makes duplicate delivery detectable and idempotent downstream.
func (m Message) ID() (string, error) {
	payload := m.Params.Clone()
	payload["_schema"] = String(m.Schema)
	payload["_from"] = String(m.From)

	canonical, err := payload.MarshalCanonical()
	if err != nil {
		return "", fmt.Errorf("message ID: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(DomainMessage))
	h.Write([]byte{0x00}) // domain/data boundary
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MustID is like ID but panics on error. Use only in tests or when the
// params are known to be valid.
func (m Message) MustID() string {
	id, err := m.ID()
	if err != nil {
		panic(err)
	}
	return id
}

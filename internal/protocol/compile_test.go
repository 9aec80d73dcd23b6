package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalProtocol = `
protocol: Ping: {
	roles: ["A", "B"]
	keys: ["ID"]
	messages: {
		ping: {
			from: "A"
			to:   "B"
			params: {ID: "out", payload: "out"}
		}
		pong: {
			from: "B"
			to:   "A"
			params: {ID: "in", payload: "in", answer: "out"}
			terminal: true
		}
	}
}
`

func TestCompileBytes_Minimal(t *testing.T) {
	proto, err := CompileBytes([]byte(minimalProtocol), "ping.cue")
	require.NoError(t, err)

	assert.Equal(t, "Ping", proto.Name)
	assert.Equal(t, []string{"A", "B"}, proto.Roles)
	assert.Equal(t, []string{"ID"}, proto.Keys)
	require.Len(t, proto.Schemas, 2)

	ping, ok := proto.Schema("ping")
	require.True(t, ok)
	assert.Equal(t, "A", ping.From)
	assert.Equal(t, "B", ping.To)
	assert.False(t, ping.Terminal)
	assert.True(t, ping.Produces("ID"))
	assert.True(t, ping.Produces("payload"))

	pong, ok := proto.Schema("pong")
	require.True(t, ok)
	assert.True(t, pong.Terminal)
	assert.True(t, pong.Inputs("ID"))
	assert.True(t, pong.Inputs("payload"))
	assert.True(t, pong.Produces("answer"))
}

func TestCompileBytes_ParamOrderPreserved(t *testing.T) {
	proto, err := CompileBytes([]byte(minimalProtocol), "ping.cue")
	require.NoError(t, err)

	pong, ok := proto.Schema("pong")
	require.True(t, ok)

	names := make([]string, len(pong.Params))
	for i, p := range pong.Params {
		names[i] = p.Name
	}
	assert.Equal(t, []string{"ID", "payload", "answer"}, names)
}

func TestCompileBytes_Errors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		wantErr string
	}{
		{
			name:    "missing protocol struct",
			source:  `foo: 1`,
			wantErr: "protocol struct is required",
		},
		{
			name: "missing roles",
			source: `protocol: P: {
				keys: ["ID"]
				messages: {m: {from: "A", to: "B", params: {ID: "out"}}}
			}`,
			wantErr: "at least one role is required",
		},
		{
			name: "missing keys",
			source: `protocol: P: {
				roles: ["A", "B"]
				messages: {m: {from: "A", to: "B", params: {ID: "out"}}}
			}`,
			wantErr: "at least one key parameter is required",
		},
		{
			name: "invalid polarity",
			source: `protocol: P: {
				roles: ["A", "B"]
				keys: ["ID"]
				messages: {m: {from: "A", to: "B", params: {ID: "inout"}}}
			}`,
			wantErr: "invalid polarity",
		},
		{
			name: "missing sender",
			source: `protocol: P: {
				roles: ["A", "B"]
				keys: ["ID"]
				messages: {m: {to: "B", params: {ID: "out"}}}
			}`,
			wantErr: "from is required",
		},
		{
			name: "empty params",
			source: `protocol: P: {
				roles: ["A", "B"]
				keys: ["ID"]
				messages: {m: {from: "A", to: "B", params: {}}}
			}`,
			wantErr: "at least one parameter is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileBytes([]byte(tt.source), "test.cue")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCompileBytes_SyntaxErrorHasPosition(t *testing.T) {
	_, err := CompileBytes([]byte("protocol: {{{"), "broken.cue")
	require.Error(t, err)

	var ce *CompileError
	if assert.ErrorAs(t, err, &ce) {
		assert.Contains(t, ce.Error(), "broken.cue")
	}
}

func TestPurchase_CompilesAndValidates(t *testing.T) {
	proto, err := Purchase()
	require.NoError(t, err)

	assert.Equal(t, "Purchase", proto.Name)
	assert.Equal(t, []string{"Buyer", "Seller", "Shipper"}, proto.Roles)
	assert.Equal(t, []string{"ID"}, proto.Keys)

	for _, name := range []string{"rfq", "quote", "accept", "reject", "refuse", "ship", "deliver"} {
		_, ok := proto.Schema(name)
		assert.True(t, ok, "schema %s should exist", name)
	}

	// Terminal alternatives of the Purchase protocol.
	for _, name := range []string{"reject", "refuse", "deliver"} {
		s, _ := proto.Schema(name)
		assert.True(t, s.Terminal, "schema %s should be terminal", name)
	}
}

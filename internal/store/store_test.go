package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadewey/parley/internal/protocol"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func rfqMsg(key, item string) protocol.Message {
	return protocol.Message{
		Schema: "rfq",
		From:   "Buyer",
		Params: protocol.Params{"ID": protocol.String(key), "item": protocol.String(item)},
	}
}

func quoteMsg(key, item string, price int64) protocol.Message {
	return protocol.Message{
		Schema: "quote",
		From:   "Seller",
		Params: protocol.Params{
			"ID":    protocol.String(key),
			"item":  protocol.String(item),
			"price": protocol.Int(price),
		},
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.WriteMessage(context.Background(), rfqMsg("k1", "laptop"), "k1", 1))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	n, err := s2.CountMessages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWriteMessage_DoubleWriteIsNoOp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	msg := rfqMsg("k1", "laptop")
	require.NoError(t, s.WriteMessage(ctx, msg, "k1", 1))
	require.NoError(t, s.WriteMessage(ctx, msg, "k1", 1))

	n, err := s.CountMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReadTrace_OrderedBySeq(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteMessage(ctx, quoteMsg("k1", "laptop", 11800), "k1", 2))
	require.NoError(t, s.WriteMessage(ctx, rfqMsg("k1", "laptop"), "k1", 1))

	recs, err := s.ReadTrace(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "rfq", recs[0].Schema)
	assert.Equal(t, "quote", recs[1].Schema)
	assert.Equal(t, protocol.Int(11800), recs[1].Params["price"])
}

func TestReadInstance_FiltersByKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteMessage(ctx, rfqMsg("k1", "laptop"), "k1", 1))
	require.NoError(t, s.WriteMessage(ctx, rfqMsg("k2", "phone"), "k2", 2))

	recs, err := s.ReadInstance(ctx, "k2")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "k2", recs[0].InstanceKey)
	assert.Equal(t, protocol.String("phone"), recs[0].Params["item"])
}

func TestReplay_CleanTrace(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteMessage(ctx, rfqMsg("k1", "laptop"), "k1", 1))
	require.NoError(t, s.WriteMessage(ctx, quoteMsg("k1", "laptop", 11800), "k1", 2))

	report, err := s.Replay(ctx, protocol.MustPurchase())
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Equal(t, 2, report.Messages)
	assert.Equal(t, 1, report.Instances)
}

func TestReplay_ReportsOutOfOrderTrace(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Quote recorded without its rfq: replay must reject it.
	require.NoError(t, s.WriteMessage(ctx, quoteMsg("k1", "laptop", 11800), "k1", 1))

	report, err := s.Replay(ctx, protocol.MustPurchase())
	require.NoError(t, err)
	require.Len(t, report.Rejections, 1)
	assert.False(t, report.Clean())
	assert.Equal(t, "quote", report.Rejections[0].Schema)
	assert.Contains(t, report.Rejections[0].Reason, "missing-input")
}

package seller

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadewey/parley/internal/testutil"
)

func newPolicy(t *testing.T, cfg Config, items map[string]Item, market Market) *Policy {
	t.Helper()
	inv, err := NewInventory(items)
	require.NoError(t, err)
	p, err := New(cfg, inv, market, testutil.SilentLogger())
	require.NoError(t, err)
	return p
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{MaxStock: 0}.WithDefaults()
	assert.ErrorContains(t, cfg.Validate(), "max stock must be positive")

	cfg = Config{MaxStock: 10, MinVariation: 1.2, MaxVariation: 0.8}
	assert.ErrorContains(t, cfg.WithDefaults().Validate(), "variation bounds")

	cfg = Config{MaxStock: 10, CeilingPrice: -1}
	assert.ErrorContains(t, cfg.WithDefaults().Validate(), "ceiling price")
}

// Base price $100, stock 1 of max 10, variation pinned at 1.0: the
// demand premium alone pushes the quote to $118, at or above base.
func TestQuoteFor_LowStockDemandPremium(t *testing.T) {
	cfg := Config{MaxStock: 10, MinVariation: 1.0, MaxVariation: 1.0}
	market := testutil.NewFixedSampler(nil, []float64{0})
	p := newPolicy(t, cfg, map[string]Item{"laptop": {BasePrice: 10000, Stock: 1}}, market)

	price, err := p.QuoteFor("k1", "laptop")
	require.NoError(t, err)
	assert.Equal(t, int64(11800), price) // 10000 * (1 + 9*0.02)
	assert.GreaterOrEqual(t, price, int64(10000))
}

func TestQuoteFor_VariationResampledPerQuote(t *testing.T) {
	cfg := Config{MaxStock: 25}
	// Draws 0 and 1 map to the variation bounds 0.8 and 1.2.
	market := testutil.NewFixedSampler(nil, []float64{0, 0.9999999})
	p := newPolicy(t, cfg, map[string]Item{"watch": {BasePrice: 30000, Stock: 25}}, market)

	low, err := p.QuoteFor("k1", "watch")
	require.NoError(t, err)
	high, err := p.QuoteFor("k2", "watch")
	require.NoError(t, err)

	assert.Less(t, low, high)
	assert.Equal(t, int64(24000), low) // 30000 * 1.0 * 0.8
}

func TestQuoteFor_ClampedToCeiling(t *testing.T) {
	cfg := Config{MaxStock: 25, MinVariation: 1.2, MaxVariation: 1.2, CeilingPrice: 200000}
	market := testutil.NewFixedSampler(nil, []float64{0})
	p := newPolicy(t, cfg, map[string]Item{"laptop": {BasePrice: 180000, Stock: 1}}, market)

	price, err := p.QuoteFor("k1", "laptop")
	require.NoError(t, err)
	assert.Equal(t, int64(200000), price)
}

func TestQuoteFor_ZeroStockQuotesAtCeiling(t *testing.T) {
	cfg := Config{MaxStock: 10, CeilingPrice: 200000}
	market := testutil.NewFixedSampler(nil, nil) // no draw for ceiling quotes
	p := newPolicy(t, cfg, map[string]Item{"laptop": {BasePrice: 10000, Stock: 0}}, market)

	price, err := p.QuoteFor("k1", "laptop")
	require.NoError(t, err)
	assert.Equal(t, int64(200000), price)
}

func TestQuoteFor_UnknownItemIsError(t *testing.T) {
	cfg := Config{MaxStock: 10}
	p := newPolicy(t, cfg, map[string]Item{"laptop": {BasePrice: 10000, Stock: 5}},
		testutil.NewFixedSampler(nil, nil))

	_, err := p.QuoteFor("k1", "submarine")
	assert.ErrorContains(t, err, "no base price configured")
}

func TestHandleAccept_ShipsAndDecrementsStock(t *testing.T) {
	cfg := Config{MaxStock: 10}
	p := newPolicy(t, cfg, map[string]Item{"laptop": {BasePrice: 10000, Stock: 2}},
		testutil.NewFixedSampler(nil, nil))

	f := p.HandleAccept("k1", "laptop", 11000)
	assert.True(t, f.Ship)
	assert.Equal(t, 1, p.inv.Stock("laptop"))
}

func TestHandleAccept_RefusesWhenStockRaceLost(t *testing.T) {
	cfg := Config{MaxStock: 10}
	p := newPolicy(t, cfg, map[string]Item{"laptop": {BasePrice: 10000, Stock: 0}},
		testutil.NewFixedSampler(nil, nil))

	f := p.HandleAccept("k1", "laptop", 11000)
	assert.False(t, f.Ship)
	assert.Equal(t, RefuseOutOfStock, f.Reason)
}

// Concurrent acceptances for the last unit: exactly one ships.
func TestHandleAccept_ConcurrentLastUnit(t *testing.T) {
	cfg := Config{MaxStock: 10}
	p := newPolicy(t, cfg, map[string]Item{"laptop": {BasePrice: 10000, Stock: 1}},
		testutil.NewFixedSampler(nil, nil))

	const contenders = 20
	var wg sync.WaitGroup
	results := make(chan Fulfilment, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- p.HandleAccept("k", "laptop", 11000)
		}()
	}
	wg.Wait()
	close(results)

	shipped := 0
	for f := range results {
		if f.Ship {
			shipped++
		} else {
			assert.Equal(t, RefuseOutOfStock, f.Reason)
		}
	}
	assert.Equal(t, 1, shipped)

	rep := p.Report()
	assert.Equal(t, 1, rep.OrdersShipped)
	assert.Equal(t, contenders-1, rep.OrdersRefused)
}

func TestReport(t *testing.T) {
	cfg := Config{MaxStock: 10, MinVariation: 1.0, MaxVariation: 1.0}
	p := newPolicy(t, cfg, map[string]Item{"watch": {BasePrice: 30000, Stock: 3}},
		testutil.NewFixedSampler(nil, []float64{0, 0}))

	_, err := p.QuoteFor("k1", "watch")
	require.NoError(t, err)
	_, err = p.QuoteFor("k2", "watch")
	require.NoError(t, err)
	p.HandleAccept("k1", "watch", 31000)
	p.HandleReject("k2", "watch", "over_item_budget")

	rep := p.Report()
	assert.Equal(t, 2, rep.QuotesSent)
	assert.Equal(t, 1, rep.OrdersAccepted)
	assert.Equal(t, 1, rep.RejectedByBuyer)
	assert.Equal(t, 2, rep.FinalStock["watch"])
}

package buyer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadewey/parley/internal/testutil"
)

func testConfig() Config {
	return Config{
		Budget: 150000, // $1500
		ItemBudgets: map[string]int64{
			"laptop":     95000,
			"phone":      80000,
			"tablet":     35000,
			"watch":      20000,
			"headphones": 9000,
		},
		TargetItems: 3,
		Tolerance:   15000,
		MaxRequests: 5,
		Addresses:   []string{"123 Main St", "456 Oak Ave", "789 Pine Rd"},
	}
}

func newPolicy(t *testing.T, cfg Config, sample Sampler) *Policy {
	t.Helper()
	p, err := New(cfg, NewFixedGenerator(
		"k1", "k2", "k3", "k4", "k5", "k6", "k7", "k8", "k9", "k10",
	), sample, testutil.SilentLogger())
	require.NoError(t, err)
	return p
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"zero budget", func(c *Config) { c.Budget = 0 }, "budget must be positive"},
		{"no items", func(c *Config) { c.ItemBudgets = nil }, "no candidate items"},
		{"negative sub-budget", func(c *Config) { c.ItemBudgets["laptop"] = -1 }, "sub-budget must be positive"},
		{"zero target", func(c *Config) { c.TargetItems = 0 }, "target items must be positive"},
		{"negative tolerance", func(c *Config) { c.Tolerance = -1 }, "tolerance must be non-negative"},
		{"zero max requests", func(c *Config) { c.MaxRequests = 0 }, "max requests must be positive"},
		{"no addresses", func(c *Config) { c.Addresses = nil }, "no shipping addresses"},
		{"unknown selection", func(c *Config) { c.Selection = "psychic" }, "unknown selection policy"},
		{
			"urgency without weights",
			func(c *Config) { c.Selection = SelectUrgency },
			"needs 3 address weights",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.WithDefaults().Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestNextRequest_MintsKeyAndCountsRequest(t *testing.T) {
	sample := testutil.NewFixedSampler([]int{2}, nil) // items sorted: headphones, laptop, phone, tablet, watch
	p := newPolicy(t, testConfig(), sample)

	req, ok := p.NextRequest()
	require.True(t, ok)
	assert.Equal(t, "k1", req.Key)
	assert.Equal(t, "phone", req.Item)
	assert.Equal(t, int64(80000), req.SubBudget)

	rep := p.Report()
	assert.Equal(t, 1, rep.RequestsSent)
	assert.Equal(t, 1, rep.RequestCounts["phone"])
}

func TestNextRequest_SkipsItemsAtPerItemRequestCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRequests = 10
	// Always pick the first candidate.
	sample := testutil.NewFixedSampler([]int{0, 0, 0}, nil)
	p := newPolicy(t, cfg, sample)

	first, ok := p.NextRequest()
	require.True(t, ok)
	second, ok := p.NextRequest()
	require.True(t, ok)
	assert.Equal(t, first.Item, second.Item)

	// Two requests spent the default per-item quota; the first candidate
	// must now be a different item.
	third, ok := p.NextRequest()
	require.True(t, ok)
	assert.NotEqual(t, first.Item, third.Item)
}

func TestNextRequest_StopsAtOverallQuota(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRequests = 2
	sample := testutil.NewFixedSampler([]int{0, 0}, nil)
	p := newPolicy(t, cfg, sample)

	_, ok := p.NextRequest()
	require.True(t, ok)
	_, ok = p.NextRequest()
	require.True(t, ok)

	_, ok = p.NextRequest()
	assert.False(t, ok)
}

func TestNextRequest_FailsClosedWhenNothingAffordable(t *testing.T) {
	cfg := testConfig()
	cfg.Budget = 5000 // below every sub-budget
	sample := testutil.NewFixedSampler(nil, nil)
	p := newPolicy(t, cfg, sample)

	_, ok := p.NextRequest()
	assert.False(t, ok)
}

func TestEvaluateQuote_RejectsOverSubBudgetWithZeroTolerance(t *testing.T) {
	cfg := testConfig()
	cfg.ItemBudgets = map[string]int64{"laptop": 9000} // $90
	cfg.Tolerance = 0
	sample := testutil.NewFixedSampler([]int{0}, nil)
	p := newPolicy(t, cfg, sample)

	req, ok := p.NextRequest()
	require.True(t, ok)

	d := p.EvaluateQuote(Quote{Key: req.Key, Item: "laptop", Price: 10000}) // $100
	assert.Equal(t, DecideReject, d.Kind)
	assert.Equal(t, ReasonOverItemBudget, d.Reason)
	assert.NotEmpty(t, d.Resp)
}

func TestEvaluateQuote_AcceptsWithinSubBudget(t *testing.T) {
	cfg := testConfig()
	cfg.ItemBudgets = map[string]int64{"laptop": 15000} // $150
	cfg.Tolerance = 2000
	sample := testutil.NewFixedSampler([]int{0, 1}, nil)
	p := newPolicy(t, cfg, sample)

	req, ok := p.NextRequest()
	require.True(t, ok)

	d := p.EvaluateQuote(Quote{Key: req.Key, Item: "laptop", Price: 10000})
	assert.Equal(t, DecideAccept, d.Kind)
	assert.Equal(t, "456 Oak Ave", d.Address)

	rep := p.Report()
	assert.Equal(t, int64(10000), rep.Spent)
	assert.Equal(t, 1, rep.ItemsPurchased)
}

func TestEvaluateQuote_AcceptsWithinToleranceWhileShortOfTarget(t *testing.T) {
	cfg := testConfig()
	cfg.ItemBudgets = map[string]int64{"watch": 20000}
	cfg.Tolerance = 1500
	sample := testutil.NewFixedSampler([]int{0, 0}, nil)
	p := newPolicy(t, cfg, sample)

	req, ok := p.NextRequest()
	require.True(t, ok)

	// $10 over the sub-budget, within the $15 tolerance, zero purchased.
	d := p.EvaluateQuote(Quote{Key: req.Key, Item: "watch", Price: 21000})
	assert.Equal(t, DecideAccept, d.Kind)
}

func TestEvaluateQuote_RejectionPrecedence(t *testing.T) {
	t.Run("target reached", func(t *testing.T) {
		cfg := testConfig()
		cfg.TargetItems = 1
		cfg.MaxRequests = 5
		sample := testutil.NewFixedSampler([]int{0, 0, 0}, nil)
		p := newPolicy(t, cfg, sample)

		r1, _ := p.NextRequest()
		r2, _ := p.NextRequest()
		d := p.EvaluateQuote(Quote{Key: r1.Key, Item: r1.Item, Price: 1000})
		require.Equal(t, DecideAccept, d.Kind)

		d = p.EvaluateQuote(Quote{Key: r2.Key, Item: r2.Item, Price: 1000})
		assert.Equal(t, DecideReject, d.Kind)
		assert.Equal(t, ReasonTargetReached, d.Reason)
	})

	t.Run("per-item cap", func(t *testing.T) {
		cfg := testConfig()
		cfg.ItemBudgets = map[string]int64{"watch": 20000}
		cfg.TargetItems = 5
		cfg.MaxRequests = 10
		p := newPolicy(t, cfg, testutil.NewFixedSampler([]int{0, 0, 0, 0}, nil))

		r1, _ := p.NextRequest()
		r2, _ := p.NextRequest()
		require.Equal(t, DecideAccept, p.EvaluateQuote(Quote{Key: r1.Key, Item: "watch", Price: 1000}).Kind)
		require.Equal(t, DecideAccept, p.EvaluateQuote(Quote{Key: r2.Key, Item: "watch", Price: 1000}).Kind)

		// A third quote for an item already at the ownership cap.
		p.outstanding["k3"] = "watch"
		d := p.EvaluateQuote(Quote{Key: "k3", Item: "watch", Price: 1000})
		assert.Equal(t, DecideReject, d.Kind)
		assert.Equal(t, ReasonPerItemCap, d.Reason)
	})

	t.Run("insufficient total budget", func(t *testing.T) {
		cfg := testConfig()
		cfg.Budget = 100000
		cfg.ItemBudgets = map[string]int64{"laptop": 95000}
		cfg.Tolerance = 20000
		sample := testutil.NewFixedSampler([]int{0}, nil)
		p := newPolicy(t, cfg, sample)

		req, _ := p.NextRequest()
		d := p.EvaluateQuote(Quote{Key: req.Key, Item: "laptop", Price: 110000})
		assert.Equal(t, DecideReject, d.Kind)
		assert.Equal(t, ReasonInsufficientTotalBudget, d.Reason)
	})
}

func TestEvaluateQuote_IgnoresUnknownKey(t *testing.T) {
	p := newPolicy(t, testConfig(), testutil.NewFixedSampler(nil, nil))

	d := p.EvaluateQuote(Quote{Key: "never-requested", Item: "laptop", Price: 1000})
	assert.Equal(t, DecideIgnore, d.Kind)

	rep := p.Report()
	assert.Equal(t, 1, rep.QuotesReceived)
	assert.Zero(t, rep.Accepted)
	assert.Zero(t, rep.Rejected)
}

func TestHandleRefusal_RestoresBudgetAndCounters(t *testing.T) {
	cfg := testConfig()
	sample := testutil.NewFixedSampler([]int{0, 0}, nil)
	p := newPolicy(t, cfg, sample)

	req, _ := p.NextRequest()
	d := p.EvaluateQuote(Quote{Key: req.Key, Item: req.Item, Price: 5000})
	require.Equal(t, DecideAccept, d.Kind)

	p.HandleRefusal(req.Key, req.Item, 5000)

	rep := p.Report()
	assert.Equal(t, cfg.Budget, rep.Remaining)
	assert.Zero(t, rep.ItemsPurchased)
	assert.Equal(t, 1, rep.Refused)
}

func TestHandleDelivery_CountsOutcomes(t *testing.T) {
	p := newPolicy(t, testConfig(), testutil.NewFixedSampler(nil, nil))

	p.HandleDelivery("k1", "laptop", DeliveredOutcome)
	p.HandleDelivery("k2", "phone", "weather_delay")

	rep := p.Report()
	assert.Equal(t, 1, rep.Delivered)
	assert.Equal(t, 1, rep.DeliveryFailed)
}

func TestPickAddress_UrgencyWeighted(t *testing.T) {
	cfg := testConfig()
	cfg.Selection = SelectUrgency
	cfg.AddressWeights = []int{5, 3, 2}
	// Roll 6 lands in the second bucket (0-4 first, 5-7 second).
	sample := testutil.NewFixedSampler([]int{0, 6}, nil)
	p := newPolicy(t, cfg, sample)

	req, _ := p.NextRequest()
	d := p.EvaluateQuote(Quote{Key: req.Key, Item: req.Item, Price: 1000})
	require.Equal(t, DecideAccept, d.Kind)
	assert.Equal(t, "456 Oak Ave", d.Address)
}

// Termination: with any seed, the request loop ends within MaxRequests
// even when every quote is rejected.
func TestRequestLoop_Terminates(t *testing.T) {
	for seed := int64(0); seed < 10; seed++ {
		cfg := testConfig()
		p, err := New(cfg, UUIDv7Generator{}, rand.New(rand.NewSource(seed)), testutil.SilentLogger())
		require.NoError(t, err)

		issued := 0
		for {
			req, ok := p.NextRequest()
			if !ok {
				break
			}
			issued++
			require.LessOrEqual(t, issued, cfg.MaxRequests)

			// Every quote comes back unaffordable.
			d := p.EvaluateQuote(Quote{Key: req.Key, Item: req.Item, Price: cfg.Budget + 1})
			require.Equal(t, DecideReject, d.Kind)
		}
		assert.LessOrEqual(t, issued, cfg.MaxRequests)
	}
}

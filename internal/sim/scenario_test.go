package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadewey/parley/internal/roles/buyer"
)

const scenarioYAML = `
name: two-item-run
description: buyer chases two items across two addresses
seed: 42
buyer:
  budget: 150000
  item_budgets:
    laptop: 120000
    mouse: 3000
  target_items: 2
  tolerance: 5000
  max_requests: 6
  addresses:
    - 123 Main St
    - 789 Pine Rd
seller:
  max_stock: 10
  items:
    laptop: {base_price: 100000, stock: 3}
    mouse: {base_price: 2500, stock: 10}
shipper:
  zones:
    123 Main St: {zone: Local, min_days: 1, max_days: 2, success: 0.98}
    789 Pine Rd: {zone: Remote, min_days: 3, max_days: 7, success: 0.9}
`

func parseScenario(t *testing.T) *Scenario {
	t.Helper()
	sc, err := ParseScenario([]byte(scenarioYAML))
	require.NoError(t, err)
	return sc
}

func TestParseScenario(t *testing.T) {
	sc := parseScenario(t)

	assert.Equal(t, "two-item-run", sc.Name)
	assert.Equal(t, int64(42), sc.Seed)
	assert.Equal(t, int64(120000), sc.Buyer.ItemBudgets["laptop"])
	assert.Equal(t, 3, sc.Seller.Items["laptop"].Stock)
	assert.Equal(t, "Remote", sc.Shipper.Zones["789 Pine Rd"].Zone)

	// Defaults apply through the config converters.
	cfg := sc.BuyerConfig().WithDefaults()
	assert.Equal(t, 2, cfg.MaxRequestsPerItem)
	assert.Equal(t, buyer.SelectRandom, cfg.Selection)
	assert.InDelta(t, 0.8, sc.SellerConfig().WithDefaults().MinVariation, 0.0001)
}

func TestParseScenario_UnknownFieldRejected(t *testing.T) {
	_, err := ParseScenario([]byte(scenarioYAML + "\nmax_reqests: 4\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenarioYAML), 0o644))

	sc, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "two-item-run", sc.Name)

	_, err = LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read scenario")
}

func TestScenario_Validate_CrossChecks(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Scenario)
		wantErr string
	}{
		{
			"missing name",
			func(sc *Scenario) { sc.Name = "" },
			"scenario name is required",
		},
		{
			"buyer item absent from catalog",
			func(sc *Scenario) { sc.Buyer.ItemBudgets["phone"] = 50000 },
			"not in the seller catalog",
		},
		{
			"buyer address outside zone table",
			func(sc *Scenario) { sc.Buyer.Addresses = append(sc.Buyer.Addresses, "1 Nowhere Ln") },
			"maps to no shipper zone",
		},
		{
			"empty catalog",
			func(sc *Scenario) { sc.Seller.Items = nil },
			"no items configured",
		},
		{
			"buyer config surfaced",
			func(sc *Scenario) { sc.Buyer.Budget = 0 },
			"budget must be positive",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := parseScenario(t)
			tt.mutate(sc)
			err := sc.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

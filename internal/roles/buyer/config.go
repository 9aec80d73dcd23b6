package buyer

import (
	"fmt"
	"sort"
)

// Selection names an address-selection policy.
type Selection string

const (
	// SelectRandom picks uniformly among the candidate addresses.
	SelectRandom Selection = "random"

	// SelectUrgency picks by configured weight. Higher-weight addresses
	// (faster zones) are favored as the buyer nears its target count.
	SelectUrgency Selection = "urgency"
)

// Config holds the buyer's scenario parameters. Money is integer cents.
type Config struct {
	// Budget is the total spendable amount.
	Budget int64

	// ItemBudgets maps item name to its per-item sub-budget. The key set
	// defines the candidate items.
	ItemBudgets map[string]int64

	// TargetItems is the purchase goal: stop after this many items.
	TargetItems int

	// Tolerance is how far above an item's sub-budget the buyer will go
	// while still short of its target.
	Tolerance int64

	// MaxRequests caps quote requests overall.
	MaxRequests int

	// MaxRequestsPerItem caps quote requests per item. Zero means the
	// default of 2.
	MaxRequestsPerItem int

	// Addresses are the candidate shipping addresses.
	Addresses []string

	// AddressWeights weight the addresses for SelectUrgency. Must match
	// Addresses in length when Selection is SelectUrgency.
	AddressWeights []int

	// Selection picks the address policy. Empty means SelectRandom.
	Selection Selection
}

const defaultMaxRequestsPerItem = 2

// WithDefaults returns a copy with zero fields filled in.
func (c Config) WithDefaults() Config {
	if c.MaxRequestsPerItem == 0 {
		c.MaxRequestsPerItem = defaultMaxRequestsPerItem
	}
	if c.Selection == "" {
		c.Selection = SelectRandom
	}
	return c
}

// Validate rejects configurations that cannot run. Configuration errors
// are fatal at setup, never discovered mid-run.
func (c Config) Validate() error {
	if c.Budget <= 0 {
		return fmt.Errorf("buyer: budget must be positive, got %d", c.Budget)
	}
	if len(c.ItemBudgets) == 0 {
		return fmt.Errorf("buyer: no candidate items configured")
	}
	for item, sub := range c.ItemBudgets {
		if sub <= 0 {
			return fmt.Errorf("buyer: item %q sub-budget must be positive, got %d", item, sub)
		}
	}
	if c.TargetItems <= 0 {
		return fmt.Errorf("buyer: target items must be positive, got %d", c.TargetItems)
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("buyer: tolerance must be non-negative, got %d", c.Tolerance)
	}
	if c.MaxRequests <= 0 {
		return fmt.Errorf("buyer: max requests must be positive, got %d", c.MaxRequests)
	}
	if len(c.Addresses) == 0 {
		return fmt.Errorf("buyer: no shipping addresses configured")
	}
	switch c.Selection {
	case "", SelectRandom:
	case SelectUrgency:
		if len(c.AddressWeights) != len(c.Addresses) {
			return fmt.Errorf("buyer: urgency selection needs %d address weights, got %d",
				len(c.Addresses), len(c.AddressWeights))
		}
		for i, w := range c.AddressWeights {
			if w <= 0 {
				return fmt.Errorf("buyer: address weight %d must be positive, got %d", i, w)
			}
		}
	default:
		return fmt.Errorf("buyer: unknown selection policy %q", c.Selection)
	}
	return nil
}

// items returns the candidate item names in sorted order so iteration is
// deterministic regardless of map layout.
func (c Config) items() []string {
	names := make([]string, 0, len(c.ItemBudgets))
	for name := range c.ItemBudgets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

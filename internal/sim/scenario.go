package sim

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kadewey/parley/internal/roles/buyer"
	"github.com/kadewey/parley/internal/roles/seller"
	"github.com/kadewey/parley/internal/roles/shipper"
)

// Scenario is one simulation configuration. Money fields are integer
// cents throughout.
type Scenario struct {
	// Name identifies the scenario, also naming its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario exercises.
	Description string `yaml:"description,omitempty"`

	// Seed drives every random draw of the run.
	Seed int64 `yaml:"seed"`

	// TraceDB is an optional SQLite path for the message trace.
	TraceDB string `yaml:"trace_db,omitempty"`

	Buyer   BuyerSection   `yaml:"buyer"`
	Seller  SellerSection  `yaml:"seller"`
	Shipper ShipperSection `yaml:"shipper"`
}

// BuyerSection configures the buyer policy.
type BuyerSection struct {
	Budget             int64            `yaml:"budget"`
	ItemBudgets        map[string]int64 `yaml:"item_budgets"`
	TargetItems        int              `yaml:"target_items"`
	Tolerance          int64            `yaml:"tolerance"`
	MaxRequests        int              `yaml:"max_requests"`
	MaxRequestsPerItem int              `yaml:"max_requests_per_item,omitempty"`
	Addresses          []string         `yaml:"addresses"`
	AddressWeights     []int            `yaml:"address_weights,omitempty"`
	Selection          string           `yaml:"selection,omitempty"`
}

// SellerSection configures the seller policy and inventory.
type SellerSection struct {
	Items         map[string]ItemSection `yaml:"items"`
	MaxStock      int                    `yaml:"max_stock"`
	DemandScaling float64                `yaml:"demand_scaling,omitempty"`
	MinVariation  float64                `yaml:"min_variation,omitempty"`
	MaxVariation  float64                `yaml:"max_variation,omitempty"`
	CeilingPrice  int64                  `yaml:"ceiling_price,omitempty"`
}

// ItemSection is one stocked item.
type ItemSection struct {
	BasePrice int64 `yaml:"base_price"`
	Stock     int   `yaml:"stock"`
}

// ShipperSection configures the shipper policy.
type ShipperSection struct {
	Zones         map[string]ZoneSection `yaml:"zones"`
	Compression   float64                `yaml:"compression,omitempty"`
	MinProcessing float64                `yaml:"min_processing,omitempty"`
	MaxProcessing float64                `yaml:"max_processing,omitempty"`
}

// ZoneSection is one delivery zone keyed by address.
type ZoneSection struct {
	Zone     string  `yaml:"zone"`
	MinDays  int     `yaml:"min_days"`
	MaxDays  int     `yaml:"max_days"`
	Success  float64 `yaml:"success"`
	Modifier float64 `yaml:"modifier,omitempty"`
}

// LoadScenario reads and parses a scenario file. Unknown fields are
// rejected so a typo fails loudly instead of silently defaulting.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field checking and
// validates it.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// Validate checks the scenario against the role config rules plus the
// cross-role constraints only the scenario can see: every buyer item
// must exist in the seller catalog, and every buyer address must map to
// a shipper zone.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}

	if err := s.BuyerConfig().WithDefaults().Validate(); err != nil {
		return err
	}
	if err := s.SellerConfig().WithDefaults().Validate(); err != nil {
		return err
	}
	if len(s.Seller.Items) == 0 {
		return fmt.Errorf("seller: no items configured")
	}
	if err := s.ShipperConfig().WithDefaults().Validate(); err != nil {
		return err
	}

	for item := range s.Buyer.ItemBudgets {
		if _, ok := s.Seller.Items[item]; !ok {
			return fmt.Errorf("buyer item %q is not in the seller catalog", item)
		}
	}
	for _, addr := range s.Buyer.Addresses {
		if _, ok := s.Shipper.Zones[addr]; !ok {
			return fmt.Errorf("buyer address %q maps to no shipper zone", addr)
		}
	}
	return nil
}

// BuyerConfig converts the buyer section with defaults applied.
func (s *Scenario) BuyerConfig() buyer.Config {
	return buyer.Config{
		Budget:             s.Buyer.Budget,
		ItemBudgets:        s.Buyer.ItemBudgets,
		TargetItems:        s.Buyer.TargetItems,
		Tolerance:          s.Buyer.Tolerance,
		MaxRequests:        s.Buyer.MaxRequests,
		MaxRequestsPerItem: s.Buyer.MaxRequestsPerItem,
		Addresses:          s.Buyer.Addresses,
		AddressWeights:     s.Buyer.AddressWeights,
		Selection:          buyer.Selection(s.Buyer.Selection),
	}
}

// SellerConfig converts the seller section.
func (s *Scenario) SellerConfig() seller.Config {
	return seller.Config{
		MaxStock:      s.Seller.MaxStock,
		DemandScaling: s.Seller.DemandScaling,
		MinVariation:  s.Seller.MinVariation,
		MaxVariation:  s.Seller.MaxVariation,
		CeilingPrice:  s.Seller.CeilingPrice,
	}
}

// SellerItems converts the seller catalog.
func (s *Scenario) SellerItems() map[string]seller.Item {
	items := make(map[string]seller.Item, len(s.Seller.Items))
	for name, it := range s.Seller.Items {
		items[name] = seller.Item{BasePrice: it.BasePrice, Stock: it.Stock}
	}
	return items
}

// ShipperConfig converts the shipper section.
func (s *Scenario) ShipperConfig() shipper.Config {
	zones := make(map[string]shipper.Zone, len(s.Shipper.Zones))
	for addr, z := range s.Shipper.Zones {
		zones[addr] = shipper.Zone{
			Name:        z.Zone,
			MinDays:     z.MinDays,
			MaxDays:     z.MaxDays,
			SuccessProb: z.Success,
			Modifier:    z.Modifier,
		}
	}
	return shipper.Config{
		Zones:         zones,
		Compression:   s.Shipper.Compression,
		MinProcessing: s.Shipper.MinProcessing,
		MaxProcessing: s.Shipper.MaxProcessing,
	}
}

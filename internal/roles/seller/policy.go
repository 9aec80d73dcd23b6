package seller

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
)

// Market is the source of randomness for per-quote price variation.
// *rand.Rand satisfies it; tests script the draws.
type Market interface {
	Float64() float64
}

// Config holds the seller's pricing parameters.
type Config struct {
	// MaxStock anchors the demand curve: an item at MaxStock has no
	// demand premium.
	MaxStock int

	// DemandScaling is the premium per missing unit of stock. Zero means
	// the default of 0.02.
	DemandScaling float64

	// MinVariation and MaxVariation bound the per-quote market noise
	// multiplier. Zero values mean the defaults of 0.8 and 1.2.
	MinVariation float64
	MaxVariation float64

	// CeilingPrice is the clamp on every quote, cents. Zero means the
	// default of $2000. Out-of-stock items are quoted at this price.
	CeilingPrice int64
}

const (
	defaultDemandScaling = 0.02
	defaultMinVariation  = 0.8
	defaultMaxVariation  = 1.2
	defaultCeilingPrice  = 200000
)

func (c Config) WithDefaults() Config {
	if c.DemandScaling == 0 {
		c.DemandScaling = defaultDemandScaling
	}
	if c.MinVariation == 0 {
		c.MinVariation = defaultMinVariation
	}
	if c.MaxVariation == 0 {
		c.MaxVariation = defaultMaxVariation
	}
	if c.CeilingPrice == 0 {
		c.CeilingPrice = defaultCeilingPrice
	}
	return c
}

// Validate rejects configurations that cannot run.
func (c Config) Validate() error {
	if c.MaxStock <= 0 {
		return fmt.Errorf("seller: max stock must be positive, got %d", c.MaxStock)
	}
	if c.DemandScaling < 0 {
		return fmt.Errorf("seller: demand scaling must be non-negative, got %g", c.DemandScaling)
	}
	if c.MinVariation <= 0 || c.MaxVariation < c.MinVariation {
		return fmt.Errorf("seller: variation bounds [%g, %g] invalid", c.MinVariation, c.MaxVariation)
	}
	if c.CeilingPrice <= 0 {
		return fmt.Errorf("seller: ceiling price must be positive, got %d", c.CeilingPrice)
	}
	return nil
}

// RefuseOutOfStock is the outcome a refusal carries when the stock race
// is lost between quoting and acceptance.
const RefuseOutOfStock = "out_of_stock"

// Fulfilment is the decision for one accepted order: ship it, or refuse
// with a reason.
type Fulfilment struct {
	Ship   bool
	Reason string // set when Ship is false
}

// Policy is the seller's decision logic over a shared Inventory.
//
// Safe for concurrent use across in-flight transaction instances.
type Policy struct {
	mu     sync.Mutex
	cfg    Config
	inv    *Inventory
	market Market
	log    *slog.Logger

	quotesSent      int
	ordersAccepted  int
	ordersRefused   int
	rejectedByBuyer int
	ordersShipped   int
}

// New creates a seller policy over an inventory.
func New(cfg Config, inv *Inventory, market Market, log *slog.Logger) (*Policy, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("seller: inventory is required")
	}
	if market == nil {
		return nil, fmt.Errorf("seller: market sampler is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Policy{cfg: cfg, inv: inv, market: market, log: log.With("role", "seller")}, nil
}

// QuoteFor prices one request-for-quote.
//
// price = basePrice * demandFactor * marketVariation, rounded to cents
// and clamped to the ceiling. demandFactor rises as stock falls, floored
// at 1.0. Variation is resampled per quote, so repeated requests for the
// same item can quote differently. An out-of-stock item quotes at the
// ceiling: the protocol requires a quote for every request, and a
// ceiling quote prices the scarcity honestly.
//
// An item with no configured base price is a configuration fault and
// surfaces as an error, never a made-up price.
func (p *Policy) QuoteFor(key, item string) (int64, error) {
	base, ok := p.inv.BasePrice(item)
	if !ok {
		return 0, fmt.Errorf("seller: no base price configured for item %q", item)
	}

	stock := p.inv.Stock(item)
	var price int64
	if stock <= 0 {
		price = p.cfg.CeilingPrice
	} else {
		demand := 1.0 + float64(p.cfg.MaxStock-stock)*p.cfg.DemandScaling
		if demand < 1.0 {
			demand = 1.0
		}
		variation := p.cfg.MinVariation + p.market.Float64()*(p.cfg.MaxVariation-p.cfg.MinVariation)
		price = int64(math.Round(float64(base) * demand * variation))
		if price > p.cfg.CeilingPrice {
			price = p.cfg.CeilingPrice
		}
	}

	p.mu.Lock()
	p.quotesSent++
	p.mu.Unlock()

	p.log.Info("quoting", "key", key, "item", item, "price", price, "stock", stock)
	return price, nil
}

// HandleAccept fulfils an accepted order: reserve a unit and ship, or
// refuse if the stock race was lost since the quote went out.
func (p *Policy) HandleAccept(key, item string, price int64) Fulfilment {
	remaining, ok := p.inv.Reserve(item)

	p.mu.Lock()
	defer p.mu.Unlock()

	if !ok {
		p.ordersRefused++
		p.log.Info("refusing accepted order", "key", key, "item", item,
			"reason", RefuseOutOfStock)
		return Fulfilment{Reason: RefuseOutOfStock}
	}

	p.ordersAccepted++
	p.ordersShipped++
	p.log.Info("shipping order", "key", key, "item", item, "price", price,
		"remaining_stock", remaining)
	return Fulfilment{Ship: true}
}

// HandleReject records a buyer rejection. No stock action: nothing was
// reserved at quote time.
func (p *Policy) HandleReject(key, item, reason string) {
	p.mu.Lock()
	p.rejectedByBuyer++
	p.mu.Unlock()
	p.log.Info("quote rejected", "key", key, "item", item, "reason", reason)
}

// Report is the seller's final statistics.
type Report struct {
	QuotesSent      int
	OrdersAccepted  int
	OrdersRefused   int
	RejectedByBuyer int
	OrdersShipped   int
	FinalStock      map[string]int
}

// Report snapshots the counters and remaining stock.
func (p *Policy) Report() Report {
	p.mu.Lock()
	defer p.mu.Unlock()

	stock := make(map[string]int)
	for _, item := range p.inv.Items() {
		stock[item] = p.inv.Stock(item)
	}
	return Report{
		QuotesSent:      p.quotesSent,
		OrdersAccepted:  p.ordersAccepted,
		OrdersRefused:   p.ordersRefused,
		RejectedByBuyer: p.rejectedByBuyer,
		OrdersShipped:   p.ordersShipped,
		FinalStock:      stock,
	}
}

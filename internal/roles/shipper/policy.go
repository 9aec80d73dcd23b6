package shipper

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Roller is the source of randomness for transit, processing, and
// success draws. *rand.Rand satisfies it.
type Roller interface {
	Intn(n int) int
	Float64() float64
}

// Zone describes one delivery zone.
type Zone struct {
	Name        string
	MinDays     int
	MaxDays     int
	SuccessProb float64

	// Modifier scales SuccessProb for weather or capacity effects.
	// Zero means 1.0 (no adjustment).
	Modifier float64
}

// Config holds the shipper's scenario parameters.
type Config struct {
	// Zones maps shipping address to its delivery zone. An address
	// outside this table is a configuration error.
	Zones map[string]Zone

	// Compression scales nominal transit days into simulation delay.
	// Zero means the default of 0.2.
	Compression float64

	// MinProcessing and MaxProcessing bound the handling delay added to
	// every shipment. Zero values mean the defaults of 0.5 and 1.5.
	MinProcessing float64
	MaxProcessing float64

	// FailureReasons is the enumerated pool a failed delivery draws its
	// reason from. Empty means DefaultFailureReasons.
	FailureReasons []string
}

// DefaultFailureReasons is the standard failure pool.
var DefaultFailureReasons = []string{
	"address_not_found",
	"recipient_unavailable",
	"damaged_in_transit",
	"weather_delay",
	"capacity_exceeded",
}

const (
	defaultCompression   = 0.2
	defaultMinProcessing = 0.5
	defaultMaxProcessing = 1.5
)

func (c Config) WithDefaults() Config {
	if c.Compression == 0 {
		c.Compression = defaultCompression
	}
	if c.MinProcessing == 0 {
		c.MinProcessing = defaultMinProcessing
	}
	if c.MaxProcessing == 0 {
		c.MaxProcessing = defaultMaxProcessing
	}
	if len(c.FailureReasons) == 0 {
		c.FailureReasons = DefaultFailureReasons
	}
	return c
}

// Validate rejects configurations that cannot run. Zone mistakes are
// fatal here, at setup, never at delivery time.
func (c Config) Validate() error {
	if len(c.Zones) == 0 {
		return fmt.Errorf("shipper: no zones configured")
	}
	for addr, z := range c.Zones {
		if z.Name == "" {
			return fmt.Errorf("shipper: zone for %q has no name", addr)
		}
		if z.MinDays < 0 || z.MaxDays < z.MinDays {
			return fmt.Errorf("shipper: zone %q day range [%d, %d] invalid", z.Name, z.MinDays, z.MaxDays)
		}
		if z.SuccessProb < 0 || z.SuccessProb > 1 {
			return fmt.Errorf("shipper: zone %q success probability %g outside [0,1]", z.Name, z.SuccessProb)
		}
		if z.Modifier < 0 {
			return fmt.Errorf("shipper: zone %q modifier must be non-negative, got %g", z.Name, z.Modifier)
		}
	}
	if c.Compression < 0 {
		return fmt.Errorf("shipper: compression must be non-negative, got %g", c.Compression)
	}
	if c.MinProcessing < 0 || c.MaxProcessing < c.MinProcessing {
		return fmt.Errorf("shipper: processing bounds [%g, %g] invalid", c.MinProcessing, c.MaxProcessing)
	}
	return nil
}

// Outcome is the result of one delivery attempt. Delay is simulation
// seconds, always non-negative.
type Outcome struct {
	Success     bool
	Reason      string // failure reason, empty on success
	Zone        string
	TransitDays int
	Delay       float64
}

type zoneStats struct {
	attempts int
	success  int
	failed   int
}

// Policy is the shipper's decision logic.
//
// Safe for concurrent use across in-flight shipments.
type Policy struct {
	mu     sync.Mutex
	cfg    Config
	roller Roller
	log    *slog.Logger

	shipmentsReceived int
	delivered         int
	failed            int
	perZone           map[string]*zoneStats
}

// New creates a shipper policy.
func New(cfg Config, roller Roller, log *slog.Logger) (*Policy, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if roller == nil {
		return nil, fmt.Errorf("shipper: roller is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Policy{
		cfg:     cfg,
		roller:  roller,
		log:     log.With("role", "shipper"),
		perZone: make(map[string]*zoneStats),
	}, nil
}

// Resolve maps an address to its zone. Callers validate the full address
// set at setup; a miss here is a configuration fault.
func (p *Policy) Resolve(address string) (Zone, error) {
	z, ok := p.cfg.Zones[address]
	if !ok {
		return Zone{}, fmt.Errorf("shipper: address %q maps to no delivery zone", address)
	}
	return z, nil
}

// DecideDelivery simulates one delivery.
//
// Transit days are uniform in the zone's [min, max]; the delay is the
// transit scaled by the compression factor plus a bounded processing
// draw. Success requires a uniform sample strictly below the zone's
// probability (adjusted by its modifier); otherwise the failure reason is
// drawn uniformly from the configured pool.
func (p *Policy) DecideDelivery(key, item, address string) (Outcome, error) {
	zone, err := p.Resolve(address)
	if err != nil {
		return Outcome{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.shipmentsReceived++
	stats, ok := p.perZone[zone.Name]
	if !ok {
		stats = &zoneStats{}
		p.perZone[zone.Name] = stats
	}
	stats.attempts++

	transit := zone.MinDays
	if span := zone.MaxDays - zone.MinDays; span > 0 {
		transit += p.roller.Intn(span + 1)
	}
	processing := p.cfg.MinProcessing +
		p.roller.Float64()*(p.cfg.MaxProcessing-p.cfg.MinProcessing)
	delay := float64(transit)*p.cfg.Compression + processing

	prob := zone.SuccessProb
	if zone.Modifier != 0 {
		prob *= zone.Modifier
	}

	out := Outcome{Zone: zone.Name, TransitDays: transit, Delay: delay}
	if p.roller.Float64() < prob {
		out.Success = true
		p.delivered++
		stats.success++
		p.log.Info("delivery succeeded", "key", key, "item", item,
			"address", address, "zone", zone.Name, "transit_days", transit)
	} else {
		out.Reason = p.cfg.FailureReasons[p.roller.Intn(len(p.cfg.FailureReasons))]
		p.failed++
		stats.failed++
		p.log.Info("delivery failed", "key", key, "item", item,
			"address", address, "zone", zone.Name, "reason", out.Reason)
	}
	return out, nil
}

// ZoneReport is per-zone delivery statistics.
type ZoneReport struct {
	Zone     string
	Attempts int
	Success  int
	Failed   int
}

// Report is the shipper's final statistics.
type Report struct {
	ShipmentsReceived int
	Delivered         int
	Failed            int
	Zones             []ZoneReport
}

// Report snapshots the counters, zones sorted by name.
func (p *Policy) Report() Report {
	p.mu.Lock()
	defer p.mu.Unlock()

	rep := Report{
		ShipmentsReceived: p.shipmentsReceived,
		Delivered:         p.delivered,
		Failed:            p.failed,
	}
	for name, s := range p.perZone {
		rep.Zones = append(rep.Zones, ZoneReport{
			Zone: name, Attempts: s.attempts, Success: s.success, Failed: s.failed,
		})
	}
	sort.Slice(rep.Zones, func(i, j int) bool { return rep.Zones[i].Zone < rep.Zones[j].Zone })
	return rep
}

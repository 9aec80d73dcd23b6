package buyer

import (
	"fmt"
	"log/slog"
	"sync"
)

// Sampler is the source of randomness for item and address selection.
// *rand.Rand satisfies it; tests use a fixed-sequence implementation.
type Sampler interface {
	Intn(n int) int
}

// Request is a decision to ask for a quote. Key is the freshly minted
// instance key.
type Request struct {
	Key       string
	Item      string
	SubBudget int64
}

// Quote is an inbound quote as the policy sees it: integer cents only.
type Quote struct {
	Key   string
	Item  string
	Price int64
}

// DecisionKind is the outcome class of EvaluateQuote.
type DecisionKind string

const (
	// DecideAccept: send an accept with the chosen address.
	DecideAccept DecisionKind = "accept"

	// DecideReject: send a reject carrying Reason.
	DecideReject DecisionKind = "reject"

	// DecideIgnore: the quote matches no outstanding request; drop it.
	DecideIgnore DecisionKind = "ignore"
)

// Reason explains a rejection. These are business outcomes, not errors.
type Reason string

const (
	// ReasonTargetReached: the purchase goal is already met.
	ReasonTargetReached Reason = "target_reached"

	// ReasonPerItemCap: already own the per-item maximum of this item.
	ReasonPerItemCap Reason = "per_item_cap"

	// ReasonInsufficientTotalBudget: price exceeds the remaining total.
	ReasonInsufficientTotalBudget Reason = "insufficient_total_budget"

	// ReasonOverItemBudget: price exceeds the sub-budget by more than the
	// tolerance, or tolerance no longer applies.
	ReasonOverItemBudget Reason = "over_item_budget"
)

// Decision is the result of evaluating one quote.
type Decision struct {
	Kind    DecisionKind
	Address string // set when Kind is DecideAccept
	Resp    string // response token, set for accept and reject
	Reason  Reason // set when Kind is DecideReject
}

// Policy is the buyer's decision logic plus its budget ledger.
//
// Safe for concurrent use: multiple in-flight instances may deliver
// quotes and delivery outcomes concurrently.
type Policy struct {
	mu          sync.Mutex
	cfg         Config
	ledger      *Ledger
	keys        KeyGenerator
	sample      Sampler
	log         *slog.Logger
	outstanding map[string]string // instance key -> requested item
}

// New creates a buyer policy. cfg is validated; keys and sample are
// required so determinism is always an explicit choice of the caller.
func New(cfg Config, keys KeyGenerator, sample Sampler, log *slog.Logger) (*Policy, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if keys == nil {
		return nil, fmt.Errorf("buyer: key generator is required")
	}
	if sample == nil {
		return nil, fmt.Errorf("buyer: sampler is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Policy{
		cfg:         cfg,
		ledger:      newLedger(cfg.Budget),
		keys:        keys,
		sample:      sample,
		log:         log.With("role", "buyer"),
		outstanding: make(map[string]string),
	}, nil
}

// NextRequest decides the next request-for-quote, or reports done.
//
// Done when: the target count is purchased, the overall request quota is
// spent, or no candidate item has both per-item request quota and a
// sub-budget the remaining total can still cover. The last clause is the
// fail-closed stop: the loop never spins on items it could not buy.
func (p *Policy) NextRequest() (Request, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ledger.itemsPurchased >= p.cfg.TargetItems {
		p.log.Info("stopping: target reached", "purchased", p.ledger.itemsPurchased)
		return Request{}, false
	}
	if p.ledger.rfqsSent >= p.cfg.MaxRequests {
		p.log.Info("stopping: request quota spent", "sent", p.ledger.rfqsSent)
		return Request{}, false
	}

	var candidates []string
	for _, item := range p.cfg.items() {
		if p.ledger.requested[item] >= p.cfg.MaxRequestsPerItem {
			continue
		}
		if p.cfg.ItemBudgets[item] > p.ledger.remaining {
			continue
		}
		candidates = append(candidates, item)
	}
	if len(candidates) == 0 {
		p.log.Info("stopping: no affordable candidates with quota left",
			"remaining", p.ledger.remaining)
		return Request{}, false
	}

	item := candidates[p.sample.Intn(len(candidates))]
	key := p.keys.Generate()
	p.ledger.recordRequest(item)
	p.outstanding[key] = item

	p.log.Info("requesting quote", "key", key, "item", item,
		"sub_budget", p.cfg.ItemBudgets[item])
	return Request{Key: key, Item: item, SubBudget: p.cfg.ItemBudgets[item]}, true
}

// EvaluateQuote decides accept or reject for one quote and applies the
// ledger side effects of that decision.
//
// Accept rule: price within the item's sub-budget, or within Tolerance
// above it while the buyer still has progress to make (fewer than the
// per-item cap of this item, or fewer than TargetItems overall).
func (p *Policy) EvaluateQuote(q Quote) Decision {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ledger.quotesReceived++

	item, ok := p.outstanding[q.Key]
	if !ok {
		p.log.Info("ignoring quote: no outstanding request", "key", q.Key)
		return Decision{Kind: DecideIgnore}
	}
	if item != q.Item {
		p.log.Info("ignoring quote: item mismatch", "key", q.Key,
			"requested", item, "quoted", q.Item)
		return Decision{Kind: DecideIgnore}
	}
	delete(p.outstanding, q.Key)

	if reason, rejected := p.rejectReason(q); rejected {
		p.ledger.recordReject()
		p.log.Info("rejecting quote", "key", q.Key, "item", q.Item,
			"price", q.Price, "reason", string(reason))
		return Decision{Kind: DecideReject, Reason: reason, Resp: p.keys.Generate()}
	}

	addr := p.pickAddress()
	p.ledger.recordAccept(q.Item, q.Price)
	p.log.Info("accepting quote", "key", q.Key, "item", q.Item,
		"price", q.Price, "address", addr, "remaining", p.ledger.remaining)
	return Decision{Kind: DecideAccept, Address: addr, Resp: p.keys.Generate()}
}

// RejectAdvised rejects an outstanding quote on external advice,
// bypassing the budget cascade. The ledger records it like any other
// rejection. Quotes with no outstanding request are still ignored.
func (p *Policy) RejectAdvised(q Quote, reason Reason) Decision {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ledger.quotesReceived++
	item, ok := p.outstanding[q.Key]
	if !ok || item != q.Item {
		return Decision{Kind: DecideIgnore}
	}
	delete(p.outstanding, q.Key)
	p.ledger.recordReject()
	p.log.Info("rejecting quote on advice", "key", q.Key, "item", q.Item,
		"price", q.Price, "reason", string(reason))
	return Decision{Kind: DecideReject, Reason: reason, Resp: p.keys.Generate()}
}

// rejectReason applies the rejection cascade in precedence order.
func (p *Policy) rejectReason(q Quote) (Reason, bool) {
	sub := p.cfg.ItemBudgets[q.Item]

	if p.ledger.itemsPurchased >= p.cfg.TargetItems {
		return ReasonTargetReached, true
	}
	if p.ledger.purchased[q.Item] >= p.cfg.MaxRequestsPerItem {
		return ReasonPerItemCap, true
	}
	if q.Price > p.ledger.remaining {
		return ReasonInsufficientTotalBudget, true
	}
	if q.Price <= sub {
		return "", false
	}
	overBy := q.Price - sub
	stillShort := p.ledger.purchased[q.Item] < p.cfg.MaxRequestsPerItem ||
		p.ledger.itemsPurchased < p.cfg.TargetItems
	if overBy <= p.cfg.Tolerance && stillShort {
		return "", false
	}
	return ReasonOverItemBudget, true
}

// pickAddress selects the shipping address per the configured policy.
func (p *Policy) pickAddress() string {
	switch p.cfg.Selection {
	case SelectUrgency:
		total := 0
		for _, w := range p.cfg.AddressWeights {
			total += w
		}
		roll := p.sample.Intn(total)
		for i, w := range p.cfg.AddressWeights {
			roll -= w
			if roll < 0 {
				return p.cfg.Addresses[i]
			}
		}
		return p.cfg.Addresses[len(p.cfg.Addresses)-1]
	default:
		return p.cfg.Addresses[p.sample.Intn(len(p.cfg.Addresses))]
	}
}

// HandleRefusal reverses an accept the seller could not fulfil. The
// refunded budget and counters make the item purchasable again.
func (p *Policy) HandleRefusal(key, item string, price int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ledger.recordRefund(item, price)
	p.log.Info("seller refused accepted order", "key", key, "item", item,
		"refunded", price, "remaining", p.ledger.remaining)
}

// DeliveredOutcome is the outcome value a successful delivery carries.
const DeliveredOutcome = "delivered"

// HandleDelivery records a delivery outcome. Failures are reportable
// business outcomes; the item stays purchased either way.
func (p *Policy) HandleDelivery(key, item, outcome string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	success := outcome == DeliveredOutcome
	p.ledger.recordDelivery(success)
	if success {
		p.log.Info("delivery succeeded", "key", key, "item", item)
	} else {
		p.log.Info("delivery failed", "key", key, "item", item, "reason", outcome)
	}
}

// Report is the buyer's final statistics.
type Report struct {
	Budget         int64
	Spent          int64
	Remaining      int64
	ItemsPurchased int
	TargetItems    int
	GoalMet        bool
	RequestsSent   int
	QuotesReceived int
	Accepted       int
	Rejected       int
	Refused        int
	Delivered      int
	DeliveryFailed int
	RequestCounts  map[string]int
}

// Report snapshots the ledger for final reporting.
func (p *Policy) Report() Report {
	p.mu.Lock()
	defer p.mu.Unlock()

	counts := make(map[string]int, len(p.ledger.requested))
	for item, n := range p.ledger.requested {
		counts[item] = n
	}
	return Report{
		Budget:         p.ledger.budget,
		Spent:          p.ledger.budget - p.ledger.remaining,
		Remaining:      p.ledger.remaining,
		ItemsPurchased: p.ledger.itemsPurchased,
		TargetItems:    p.cfg.TargetItems,
		GoalMet:        p.ledger.itemsPurchased >= p.cfg.TargetItems,
		RequestsSent:   p.ledger.rfqsSent,
		QuotesReceived: p.ledger.quotesReceived,
		Accepted:       p.ledger.accepted,
		Rejected:       p.ledger.rejected,
		Refused:        p.ledger.refused,
		Delivered:      p.ledger.delivered,
		DeliveryFailed: p.ledger.deliveryFailed,
		RequestCounts:  counts,
	}
}

package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/kadewey/parley/internal/causality"
	"github.com/kadewey/parley/internal/decider"
	"github.com/kadewey/parley/internal/protocol"
	"github.com/kadewey/parley/internal/roles/buyer"
	"github.com/kadewey/parley/internal/roles/seller"
	"github.com/kadewey/parley/internal/roles/shipper"
	"github.com/kadewey/parley/internal/store"
)

// TraceEvent is one accepted message in global order.
type TraceEvent struct {
	Seq    int64
	Key    string
	Schema string
	From   string
	Params protocol.Params
}

// RejectionNote is one message the recipient's engine refused.
type RejectionNote struct {
	Schema string
	Key    string
	Code   causality.Code
	Detail string
}

// Result is the outcome of one simulation run.
type Result struct {
	Buyer      buyer.Report
	Seller     seller.Report
	Shipper    shipper.Report
	Messages   int
	Trace      []TraceEvent
	Rejections []RejectionNote
}

// SequentialKeys mints "prefix-0001", "prefix-0002", ... so seeded runs
// produce stable instance keys for golden comparison.
type SequentialKeys struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialKeys creates a sequential key generator.
func NewSequentialKeys(prefix string) *SequentialKeys {
	return &SequentialKeys{prefix: prefix}
}

// Generate implements buyer.KeyGenerator.
func (g *SequentialKeys) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

type options struct {
	log     *slog.Logger
	keys    buyer.KeyGenerator
	picker  buyer.Sampler
	market  seller.Market
	roller  shipper.Roller
	advisor decider.Decider
	st      *store.Store
}

// Option configures a Runner.
type Option func(*options)

// WithLogger sets the run logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithKeyGenerator overrides the buyer's instance key source. Golden
// tests use SequentialKeys; the default is UUIDv7.
func WithKeyGenerator(keys buyer.KeyGenerator) Option {
	return func(o *options) { o.keys = keys }
}

// WithSamplers overrides the per-role randomness sources. The default
// derives one seeded source per role from the scenario seed.
func WithSamplers(picker buyer.Sampler, market seller.Market, roller shipper.Roller) Option {
	return func(o *options) {
		o.picker = picker
		o.market = market
		o.roller = roller
	}
}

// WithAdvisor attaches a decider consulted before each quote
// evaluation. An explicit REJECT verdict overrides the budget rules;
// anything else falls through to them.
func WithAdvisor(d decider.Decider) Option {
	return func(o *options) { o.advisor = d }
}

// WithStore attaches a trace store; every accepted message is recorded.
func WithStore(st *store.Store) Option {
	return func(o *options) { o.st = st }
}

// Runner executes one scenario. It is a single-writer loop: one FIFO
// queue, one goroutine, one global clock. Messages are validated twice,
// once by the sender's engine at emit and once by the recipient's at
// delivery, the same checks a distributed deployment would run on each
// side of the wire.
type Runner struct {
	sc    *Scenario
	proto *protocol.Protocol
	log   *slog.Logger
	clock *causality.Clock

	engines map[string]*causality.Engine
	buyer   *buyer.Policy
	seller  *seller.Policy
	shipper *shipper.Policy
	advisor decider.Decider
	st      *store.Store

	queue      []protocol.Message
	trace      []TraceEvent
	rejections []RejectionNote
}

// NewRunner builds a runner from a validated scenario.
func NewRunner(sc *Scenario, opts ...Option) (*Runner, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	proto, err := protocol.Purchase()
	if err != nil {
		return nil, fmt.Errorf("sim: load protocol: %w", err)
	}

	o := options{
		log:    slog.Default(),
		keys:   buyer.UUIDv7Generator{},
		picker: rand.New(rand.NewSource(sc.Seed)),
		market: rand.New(rand.NewSource(sc.Seed + 1)),
		roller: rand.New(rand.NewSource(sc.Seed + 2)),
	}
	for _, opt := range opts {
		opt(&o)
	}

	buyerPolicy, err := buyer.New(sc.BuyerConfig(), o.keys, o.picker, o.log)
	if err != nil {
		return nil, err
	}
	inv, err := seller.NewInventory(sc.SellerItems())
	if err != nil {
		return nil, err
	}
	sellerPolicy, err := seller.New(sc.SellerConfig(), inv, o.market, o.log)
	if err != nil {
		return nil, err
	}
	shipperPolicy, err := shipper.New(sc.ShipperConfig(), o.roller, o.log)
	if err != nil {
		return nil, err
	}

	engines := make(map[string]*causality.Engine, len(proto.Roles))
	for _, role := range proto.Roles {
		engines[role] = causality.New(proto)
	}

	return &Runner{
		sc:      sc,
		proto:   proto,
		log:     o.log.With("scenario", sc.Name),
		clock:   causality.NewClock(),
		engines: engines,
		buyer:   buyerPolicy,
		seller:  sellerPolicy,
		shipper: shipperPolicy,
		advisor: o.advisor,
		st:      o.st,
	}, nil
}

// Run drives the simulation to quiescence: the buyer issues requests
// one at a time, and each request's full cascade settles before the
// next. Returns the collected reports and trace.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("sim: run cancelled: %w", err)
		}
		req, ok := r.buyer.NextRequest()
		if !ok {
			break
		}
		r.send(protocol.Message{
			Schema: "rfq",
			From:   "Buyer",
			Params: protocol.Params{
				"ID":   protocol.String(req.Key),
				"item": protocol.String(req.Item),
			},
		})
		if err := r.drain(ctx); err != nil {
			return nil, err
		}
	}

	return &Result{
		Buyer:      r.buyer.Report(),
		Seller:     r.seller.Report(),
		Shipper:    r.shipper.Report(),
		Messages:   len(r.trace),
		Trace:      r.trace,
		Rejections: r.rejections,
	}, nil
}

// send validates an outbound message against the sender's own engine,
// then queues it for delivery. A rejected own message is recorded and
// dropped, never resubmitted.
func (r *Runner) send(msg protocol.Message) {
	if _, err := r.engines[msg.From].ValidateAndBind(msg); err != nil {
		r.noteRejection(msg, err)
		r.log.Warn("own message rejected at emit", "schema", msg.Schema, "error", err)
		return
	}
	r.queue = append(r.queue, msg)
}

// drain delivers queued messages in FIFO order until quiescent.
func (r *Runner) drain(ctx context.Context) error {
	for len(r.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("sim: drain cancelled: %w", err)
		}
		msg := r.queue[0]
		r.queue = r.queue[1:]

		schema, ok := r.proto.Schema(msg.Schema)
		if !ok {
			r.noteRejection(msg, &causality.Rejection{Code: causality.CodeUnknownSchema, Schema: msg.Schema})
			continue
		}

		if _, err := r.engines[schema.To].Receive(msg); err != nil {
			r.noteRejection(msg, err)
			r.log.Warn("message rejected at delivery", "schema", msg.Schema,
				"to", schema.To, "error", err)
			continue
		}

		key, err := causality.InstanceKey(r.proto, msg)
		if err != nil {
			return fmt.Errorf("sim: key for accepted message: %w", err)
		}
		seq := r.clock.Next()
		r.trace = append(r.trace, TraceEvent{
			Seq:    seq,
			Key:    key,
			Schema: msg.Schema,
			From:   msg.From,
			Params: msg.Params.Clone(),
		})
		if r.st != nil {
			if err := r.st.WriteMessage(ctx, msg, key, seq); err != nil {
				return fmt.Errorf("sim: trace write: %w", err)
			}
		}

		outs, err := r.react(ctx, msg, key)
		if err != nil {
			return err
		}
		for _, out := range outs {
			r.send(out)
		}
	}
	return nil
}

// react runs the recipient's policy for one delivered message and
// returns the outbound messages it produces.
func (r *Runner) react(ctx context.Context, msg protocol.Message, key string) ([]protocol.Message, error) {
	item := paramString(msg, "item")
	price := paramInt(msg, "price")
	address := paramString(msg, "address")

	switch msg.Schema {
	case "rfq":
		quoted, err := r.seller.QuoteFor(key, item)
		if err != nil {
			return nil, fmt.Errorf("sim: %w", err)
		}
		return []protocol.Message{{
			Schema: "quote",
			From:   "Seller",
			Params: protocol.Params{
				"ID":    msg.Params["ID"],
				"item":  msg.Params["item"],
				"price": protocol.Int(quoted),
			},
		}}, nil

	case "quote":
		return r.evaluateQuote(ctx, msg, key, item, price)

	case "accept":
		f := r.seller.HandleAccept(key, item, price)
		if !f.Ship {
			return []protocol.Message{{
				Schema: "refuse",
				From:   "Seller",
				Params: protocol.Params{
					"ID":      msg.Params["ID"],
					"item":    msg.Params["item"],
					"price":   msg.Params["price"],
					"outcome": protocol.String(f.Reason),
				},
			}}, nil
		}
		return []protocol.Message{{
			Schema: "ship",
			From:   "Seller",
			Params: protocol.Params{
				"ID":      msg.Params["ID"],
				"item":    msg.Params["item"],
				"address": msg.Params["address"],
				"shipped": protocol.Bool(true),
			},
		}}, nil

	case "reject":
		r.seller.HandleReject(key, item, paramString(msg, "outcome"))
		return nil, nil

	case "refuse":
		r.buyer.HandleRefusal(key, item, price)
		return nil, nil

	case "ship":
		out, err := r.shipper.DecideDelivery(key, item, address)
		if err != nil {
			return nil, fmt.Errorf("sim: %w", err)
		}
		outcome := buyer.DeliveredOutcome
		if !out.Success {
			outcome = out.Reason
		}
		return []protocol.Message{{
			Schema: "deliver",
			From:   "Shipper",
			Params: protocol.Params{
				"ID":      msg.Params["ID"],
				"item":    msg.Params["item"],
				"address": msg.Params["address"],
				"outcome": protocol.String(outcome),
			},
		}}, nil

	case "deliver":
		r.buyer.HandleDelivery(key, item, paramString(msg, "outcome"))
		return nil, nil
	}
	return nil, nil
}

// evaluateQuote consults the advisor (when attached), then the budget
// rules, and converts the decision into protocol messages.
func (r *Runner) evaluateQuote(ctx context.Context, msg protocol.Message, key, item string, price int64) ([]protocol.Message, error) {
	q := buyer.Quote{Key: key, Item: item, Price: price}

	var d buyer.Decision
	if r.advisor != nil && r.adviseReject(ctx, q) {
		d = r.buyer.RejectAdvised(q, buyer.ReasonOverItemBudget)
	} else {
		d = r.buyer.EvaluateQuote(q)
	}

	switch d.Kind {
	case buyer.DecideAccept:
		return []protocol.Message{{
			Schema: "accept",
			From:   "Buyer",
			Params: protocol.Params{
				"ID":      msg.Params["ID"],
				"item":    msg.Params["item"],
				"price":   msg.Params["price"],
				"address": protocol.String(d.Address),
				"resp":    protocol.String(d.Resp),
			},
		}}, nil
	case buyer.DecideReject:
		return []protocol.Message{{
			Schema: "reject",
			From:   "Buyer",
			Params: protocol.Params{
				"ID":      msg.Params["ID"],
				"item":    msg.Params["item"],
				"price":   msg.Params["price"],
				"outcome": protocol.String(string(d.Reason)),
				"resp":    protocol.String(d.Resp),
			},
		}}, nil
	default:
		return nil, nil
	}
}

// adviseReject asks the advisor for a verdict on one quote. Only an
// explicit REJECT overrides the rules; errors and anything else fall
// through to the budget cascade.
func (r *Runner) adviseReject(ctx context.Context, q buyer.Quote) bool {
	out, err := r.advisor.Decide(ctx, decider.Prompt{
		Role: "buyer",
		User: fmt.Sprintf(
			`A seller quoted %d cents for one %q (transaction %s). `+
				`Respond in JSON: {"decision": "ACCEPT"} to defer to budget `+
				`rules, {"decision": "REJECT"} to refuse outright.`,
			q.Price, q.Item, q.Key),
		Fallback: decider.Outcome{Decision: "ACCEPT"},
	})
	if err != nil {
		r.log.Warn("advisor unavailable, using budget rules", "error", err)
		return false
	}
	return out.Decision == "REJECT"
}

func (r *Runner) noteRejection(msg protocol.Message, err error) {
	note := RejectionNote{Schema: msg.Schema}
	if rej, ok := causality.AsRejection(err); ok {
		note.Code = rej.Code
		note.Key = rej.Key
		note.Detail = rej.Detail
	} else {
		note.Detail = err.Error()
	}
	r.rejections = append(r.rejections, note)
}

func paramString(msg protocol.Message, name string) string {
	if v, ok := msg.Params[name].(protocol.String); ok {
		return string(v)
	}
	return ""
}

func paramInt(msg protocol.Message, name string) int64 {
	if v, ok := msg.Params[name].(protocol.Int); ok {
		return int64(v)
	}
	return 0
}

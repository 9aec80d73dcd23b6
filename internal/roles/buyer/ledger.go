package buyer

// Ledger is the buyer's budget and counter state. It is mutated after
// every request and every accept/reject decision, regardless of how the
// transaction instance ultimately ends.
//
// Not safe for concurrent use on its own; Policy serializes access.
type Ledger struct {
	budget    int64
	remaining int64

	itemsPurchased int
	purchased      map[string]int // item -> units bought
	requested      map[string]int // item -> quote requests sent

	rfqsSent       int
	quotesReceived int
	accepted       int
	rejected       int
	refused        int
	delivered      int
	deliveryFailed int
}

func newLedger(budget int64) *Ledger {
	return &Ledger{
		budget:    budget,
		remaining: budget,
		purchased: make(map[string]int),
		requested: make(map[string]int),
	}
}

// Remaining returns the unspent budget.
func (l *Ledger) Remaining() int64 { return l.remaining }

// ItemsPurchased returns the total units bought.
func (l *Ledger) ItemsPurchased() int { return l.itemsPurchased }

// PurchasedOf returns the units bought of one item.
func (l *Ledger) PurchasedOf(item string) int { return l.purchased[item] }

// RequestedOf returns the quote requests sent for one item.
func (l *Ledger) RequestedOf(item string) int { return l.requested[item] }

// RequestsSent returns the total quote requests sent.
func (l *Ledger) RequestsSent() int { return l.rfqsSent }

func (l *Ledger) recordRequest(item string) {
	l.rfqsSent++
	l.requested[item]++
}

func (l *Ledger) recordAccept(item string, price int64) {
	l.remaining -= price
	l.itemsPurchased++
	l.purchased[item]++
	l.accepted++
}

func (l *Ledger) recordReject() {
	l.rejected++
}

// recordRefund reverses an accept after the seller refused to fulfil it.
func (l *Ledger) recordRefund(item string, price int64) {
	l.remaining += price
	l.itemsPurchased--
	l.purchased[item]--
	l.refused++
}

func (l *Ledger) recordDelivery(success bool) {
	if success {
		l.delivered++
	} else {
		l.deliveryFailed++
	}
}

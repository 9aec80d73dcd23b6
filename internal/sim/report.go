package sim

import (
	"io"
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// WriteSummary renders the run's final statistics as human-readable
// text. Money is printed in dollars with locale-aware grouping; the
// underlying values stay integer cents.
func WriteSummary(w io.Writer, name string, res *Result) error {
	p := message.NewPrinter(language.AmericanEnglish)

	if _, err := p.Fprintf(w, "=== %s ===\n", name); err != nil {
		return err
	}

	b := res.Buyer
	goal := "goal not met"
	if b.GoalMet {
		goal = "goal met"
	}
	p.Fprintf(w, "buyer: purchased %d of %d items (%s)\n", b.ItemsPurchased, b.TargetItems, goal)
	p.Fprintf(w, "  spent %s of %s, %s remaining\n",
		dollars(p, b.Spent), dollars(p, b.Budget), dollars(p, b.Remaining))
	p.Fprintf(w, "  requests %d, quotes %d, accepted %d, rejected %d, refused %d\n",
		b.RequestsSent, b.QuotesReceived, b.Accepted, b.Rejected, b.Refused)
	p.Fprintf(w, "  delivered %d, delivery failures %d\n", b.Delivered, b.DeliveryFailed)

	s := res.Seller
	p.Fprintf(w, "seller: quotes %d, accepted %d, rejected by buyer %d, refused %d, shipped %d\n",
		s.QuotesSent, s.OrdersAccepted, s.RejectedByBuyer, s.OrdersRefused, s.OrdersShipped)
	for _, item := range sortedKeys(s.FinalStock) {
		p.Fprintf(w, "  stock %s: %d\n", item, s.FinalStock[item])
	}

	sh := res.Shipper
	p.Fprintf(w, "shipper: shipments %d, delivered %d, failed %d\n",
		sh.ShipmentsReceived, sh.Delivered, sh.Failed)
	for _, z := range sh.Zones {
		p.Fprintf(w, "  zone %s: %d attempts, %d delivered, %d failed\n",
			z.Zone, z.Attempts, z.Success, z.Failed)
	}

	p.Fprintf(w, "messages accepted %d, engine rejections %d\n",
		res.Messages, len(res.Rejections))
	for _, rej := range res.Rejections {
		p.Fprintf(w, "  rejected %s (%s): %s\n", rej.Schema, rej.Code, rej.Detail)
	}
	return nil
}

// dollars formats integer cents as a grouped dollar amount.
func dollars(p *message.Printer, cents int64) string {
	return p.Sprintf("$%.2f", float64(cents)/100)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

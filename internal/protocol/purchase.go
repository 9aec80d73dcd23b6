package protocol

import (
	_ "embed"
	"sync"
)

//go:embed purchase.cue
var purchaseCUE []byte

var (
	purchaseOnce  sync.Once
	purchaseProto *Protocol
	purchaseErr   error
)

// Purchase returns the embedded default Purchase protocol.
// The result is compiled and validated once and shared; treat it as
// immutable.
func Purchase() (*Protocol, error) {
	purchaseOnce.Do(func() {
		purchaseProto, purchaseErr = CompileBytes(purchaseCUE, "purchase.cue")
	})
	return purchaseProto, purchaseErr
}

// MustPurchase is like Purchase but panics on error. The embedded protocol
// is validated by tests, so a failure here means a broken build.
func MustPurchase() *Protocol {
	p, err := Purchase()
	if err != nil {
		panic(err)
	}
	return p
}

package seller

import (
	"fmt"
	"sort"
	"sync"
)

// Item is the configured state of one stocked item. BasePrice is cents.
type Item struct {
	BasePrice int64
	Stock     int
}

// Inventory tracks stock levels. All mutation goes through the mutex:
// concurrent acceptances for the same item are serialized, and the
// check-and-decrement in Reserve is atomic.
type Inventory struct {
	mu    sync.Mutex
	items map[string]*record
}

type record struct {
	basePrice int64
	stock     int
}

// NewInventory builds an inventory from configured items. A missing or
// non-positive base price is a configuration error.
func NewInventory(items map[string]Item) (*Inventory, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("seller: no items configured")
	}
	inv := &Inventory{items: make(map[string]*record, len(items))}
	for name, it := range items {
		if it.BasePrice <= 0 {
			return nil, fmt.Errorf("seller: item %q base price must be positive, got %d", name, it.BasePrice)
		}
		if it.Stock < 0 {
			return nil, fmt.Errorf("seller: item %q stock must be non-negative, got %d", name, it.Stock)
		}
		inv.items[name] = &record{basePrice: it.BasePrice, stock: it.Stock}
	}
	return inv, nil
}

// BasePrice returns the configured base price for an item.
func (inv *Inventory) BasePrice(item string) (int64, bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	rec, ok := inv.items[item]
	if !ok {
		return 0, false
	}
	return rec.basePrice, true
}

// Stock returns the current stock level, or 0 for unknown items.
func (inv *Inventory) Stock(item string) int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	rec, ok := inv.items[item]
	if !ok {
		return 0
	}
	return rec.stock
}

// Reserve atomically decrements stock by one if any remains. Returns the
// stock level after the decrement and whether the reservation won.
func (inv *Inventory) Reserve(item string) (int, bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	rec, ok := inv.items[item]
	if !ok || rec.stock <= 0 {
		return 0, false
	}
	rec.stock--
	return rec.stock, true
}

// Replenish adds stock for an item. Unknown items are ignored: the item
// catalog is fixed at setup.
func (inv *Inventory) Replenish(item string, units int) {
	if units <= 0 {
		return
	}
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if rec, ok := inv.items[item]; ok {
		rec.stock += units
	}
}

// Items returns the catalog names in sorted order.
func (inv *Inventory) Items() []string {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	names := make([]string, 0, len(inv.items))
	for name := range inv.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Package seller implements quoting, order fulfilment, and inventory.
//
// Pricing follows demand: the scarcer an item, the higher its multiplier,
// with bounded market noise resampled per quote and a hard price ceiling.
// Prices are computed in float space and rounded to integer cents before
// they leave the policy; nothing downstream ever sees a float.
//
// Inventory is the seller's only persisted effect. Reserve is an atomic
// check-and-decrement, so concurrently accepted orders for the last unit
// cannot oversell: exactly one acceptance wins and the rest are refused.
package seller

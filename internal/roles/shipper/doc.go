// Package shipper implements delivery simulation: zone resolution,
// transit delay, and stochastic success with enumerated failure reasons.
//
// Every shipment request produces an outcome message. Success and failure
// are both terminal, reportable events; a shipment is never silently
// dropped. All randomness flows through the Roller, so a seeded run is
// fully reproducible.
package shipper

// Package rankingengine implements the reservation ranking engine for the Calyx monolith.
//
// The module owns the goods and reservations tables and keeps the single-winner
// invariant per good: every submit and cancel re-ranks inside one transaction
// scoped to the good, and ranking events leave through the module outbox.
package rankingengine

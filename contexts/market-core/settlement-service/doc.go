// Package settlementservice implements reservation settlement for the Calyx monolith.
//
// The module owns the wallet configuration and distribution tables. Settling
// a reservation validates its preconditions in a fixed order, splits the
// amount across the collection's wallets, and commits every distribution row
// together with the good's finalization in one transaction. Audit entries
// follow after commit and never roll the financial write back.
package settlementservice

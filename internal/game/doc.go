// Package game implements the one card limit poker rules: cards and deals,
// the betting state machine, terminal payoffs and hand history records.
//
// A hand is two players, one private card each, a single betting street.
// OP acts first; a bet equals the ante and every raise doubles the bet
// facing the opponent. The state machine is deterministic: identical rules
// and history always produce identical legal actions and payoffs.
package game

// Package amm implements the two-asset constant-product exchange.
//
// The Exchange is single-writer and deterministic: it holds the reserve pair
// and the owner identity, prices swaps with x*y=k (no fee) and talks to the
// two asset ledgers only through the narrow Ledger interface. Serializing
// calls is the caller's job (see package service).
package amm

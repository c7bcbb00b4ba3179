// Package ledger is an in-memory fungible asset ledger with allowances,
// the collaborator the exchange pulls from and pushes to.
package ledger

// Package service orchestrates the exchange: journal, domain, event outbox
// and snapshots.
//
// ExchangeService is the only write entry point. Transports such as gRPC call
// it with an already authenticated caller address.
package service

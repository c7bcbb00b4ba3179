// Package dexrpc declares the simpledex.v1.Exchange gRPC service: request and
// response messages, a JSON wire codec, the service descriptor and a typed
// client.
//
// Amounts travel as base-10 strings and identities as 0x-prefixed hex
// addresses.
package dexrpc

// Package grpcserver serves ExchangeService over gRPC.
package grpcserver

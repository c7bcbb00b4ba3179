// Package snapshot persists a point-in-time copy of the exchange and its two
// ledgers, tagged with the last command sequence it covers. Recovery loads it
// and replays the journal from that sequence onwards.
package snapshot

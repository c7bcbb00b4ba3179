// Package broadcaster drains the event outbox to a broker.
package broadcaster

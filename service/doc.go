// Package service orchestrates the core components — table,
// reclaimer, journal, outbox, sequencer and stats.
//
// It provides a clean API for mutating and querying the table,
// decoupled from network transports like gRPC.
package service

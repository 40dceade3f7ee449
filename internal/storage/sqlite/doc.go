// Package sqlite implements dialog persistence for the event journal, the
// aggregate repository, and projection materialization.
//
// The backend uses embedded migrations and stores aggregate and projection
// state as JSON blobs keyed by dialog id; only this package translates
// domain-shaped records into concrete SQL rows and transactions.
package sqlite

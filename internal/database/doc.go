// Package database builds pgx connection pools for the market_feed
// store used by the tick recorder.
package database

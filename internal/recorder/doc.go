// Package recorder persists received market ticks into Postgres in
// batches. It sits behind the dispatcher as an optional tick sink; the
// in-memory feed client works identically with it disabled.
package recorder

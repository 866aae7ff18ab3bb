// Package model defines the domain types shared across the feed client:
// market ticks and the aggregate feed status snapshot.
package model

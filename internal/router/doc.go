// Package router implements the Message Dispatcher component.
//
// The dispatcher converts raw inbound frames into typed domain events:
// market_data frames become MarketTicks pushed to the tick sinks,
// system_status frames are merged into the status snapshot, and
// anything else is ignored. Malformed frames are logged and dropped at
// frame granularity. No other component parses the wire format.
package router

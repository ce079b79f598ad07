// Package events distributes run lifecycle events
//
// Published events pass through a caravan topic and are handed in batches to
// the Hub, which fans them out to subscribers such as WebSocket clients
package events

// Package engine runs persisted checks. Each check moves through
// pending → running → completed/failed in the store while its hops are
// written as hop lines and published to live subscribers.
package engine

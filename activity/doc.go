// Package activity tracks long-running simulated activities.
//
// An activity moves through a fixed, timer-driven lifecycle:
//
//	PENDING --(pending delay)--> IN_PROGRESS --(progress delay)--> COMPLETED
//	                                                            \-> CANCELED ("Deadline exceeded")
//
// and can be forced to CANCELED by Engine.Cancel at any point. Every status write
// publishes an InstrumentActivityStatusChange event.
//
// # Components
//
//   - Registry: the in-memory store of Records, keyed by activity id
//   - Engine: starts activities, drives their timers and serves status/data queries
//
// # Terminal states
//
// By default a cancel may overwrite a terminal status, and the progress timer may
// overwrite a cancel; the last writer wins and both events are published. When the
// Engine is built with WithStrictTerminalStates, writes to a record that is already
// COMPLETED or CANCELED are dropped instead, and no event is published for them.
//
// Events are published while the registry lock is held, so the order of events for
// one activity always matches the order its writes were applied.
package activity

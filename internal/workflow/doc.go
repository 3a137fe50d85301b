// Package workflow composes pipeline jobs into user facing actions and folds
// their events into an observable State.
//
// Overview
// The Coordinator is owned by the consumer goroutine of an event.Loop. Its
// actions are posted to the loop, its Handle method is the loop handler. It
// never runs concurrently with itself, so State needs no locking.
//
// Data flow:
//
//	trigger (CLI, scheduler)
//	    |
//	    | loop.Post / loop.Do
//	    v
//	Coordinator action ---- Stop/Start ----> job.Registry ---> Worker goroutines
//	    ^                                                          |
//	    | Handle(ev)                                               | Publish
//	    |                                                          v
//	event.Loop <------------------ Drain ------------------- event.Channel
//
// Invariants:
//   - Each job kind has at most one live run; the Coordinator remembers its
//     id. Events of any other run are dropped, so a thumbnail or a rendered
//     image of a replaced document never reaches State.
//   - Actions which need the working directory create it (mode 0755) before
//     any job touches it.
//   - A new index replaces the installed one only when a reindex run
//     completed; a stopped or failed reindex keeps the old one.
package workflow

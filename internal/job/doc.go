// Package job implements cancellable background jobs and the registry that
// owns exactly one Job per kind.
//
// Overview
// A Job wraps a Worker (the body of the work) and runs it on its own goroutine
// each time Start is called. A Worker reports through the Run handed to it:
// Emit and Progress publish intermediate events, Finish publishes the
// terminal one, ShouldContinue polls the cancel flag.
//
// Data flow:
//
//	Registry              Job{kind}                 Worker
//	   |                     |                         |
//	   | StartExclusive ---->| Stop() (blocks)         |
//	   |                     | Start() -- goroutine -->| Do(ctx, req, run)
//	   |                     |                         | run.Emit / run.Progress
//	   |                     |<-- returns -------------| run.Finish (optional)
//	   |                     | terminal event if none  |
//	   |                     | state = Idle            |
//
// Invariants:
//   - At most one run per Job at a time; Start on a busy Job returns
//     ErrAlreadyRunning.
//   - Every run publishes exactly one terminal event, on every exit path,
//     and it is the last event of that run.
//   - Stop on a cancellable Job returns only after the run published its
//     terminal event, so no event of the stopped run can follow the next
//     run's events.
//   - Stop on a non-cancellable Job does nothing; use Wait.
//   - ErrCancelled and context cancellation caused by Stop are absorbed and
//     never reported as failures.
package job

// Package workflow implements the durable appraisal as a Temporal workflow.
//
// The workflow mirrors the interactive orchestrator: it holds the session,
// waits for an explicit "advance" signal before each stage and exposes the
// session through the "session" query. Stage work runs in activities; a
// failed stage is recorded and retried on the next signal.
//
// Workflow code must stay deterministic. Time, randomness and I/O belong in
// activities.
package workflow

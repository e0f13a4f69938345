// Package queue persists loopforge jobs in SQLite and enforces the legal
// transitions of the two per-job state machines (render and upload).
//
// Every mutation is a single SQL statement, so each individual update is
// atomic. Phase transitions are conditional updates guarded on the current
// status; a claim that affects zero rows was lost to another caller, which is
// how the workflow manager guarantees at-most-once dispatch. The job log is
// append-only and appended via SQL concatenation, so entries are never
// reordered or truncated.
//
// Writer discipline: render fields are written only by the job's render
// worker while it holds the pending->rendering claim, and upload fields only
// by the scheduler/upload worker after the waiting_schedule->uploading claim.
// The claims make single-writer-per-phase an enforced invariant rather than
// an accident of timing.
package queue

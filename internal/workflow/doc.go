// Package workflow runs the daemon's two processing lanes. The render lane
// feeds pending jobs to a bounded pool of render workers; the upload lane
// polls for rendered jobs whose scheduled time has passed and dispatches each
// at most once. Lanes claim jobs through conditional queue updates, so a
// crashed claim never double-dispatches work.
package workflow

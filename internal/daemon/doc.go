// Package daemon ties the queue store and workflow manager into a
// single-instance background process. A flock on the log directory enforces
// that only one daemon drives the queue at a time.
package daemon

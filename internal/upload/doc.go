// Package upload publishes rendered artifacts once their scheduled time has
// passed. The worker assumes the scheduler already claimed the job; it drives
// the platform client and records the terminal outcome on the queue.
package upload

// Package notifications pushes job lifecycle events to an ntfy topic. When no
// topic is configured every notification is a no-op, so callers never guard
// their calls.
package notifications

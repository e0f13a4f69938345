package logging

// Standardized attribute keys. Components attach these so log lines stay
// greppable across the daemon and CLI.
const (
	FieldComponent = "component"
	FieldJobID     = "job_id"
	FieldPhase     = "phase"
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	FieldRequestID = "request_id"
)

package logging

// Standardized attribute keys shared across components so log lines stay
// greppable regardless of which package emitted them.
const (
	FieldComponent = "component"
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	FieldTaskID    = "task_id"
	FieldUser      = "user"
	FieldMediaURL  = "media_url"
	FieldMediaID   = "media_id"
	FieldShelfID   = "shelf_id"
)

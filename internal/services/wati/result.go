package wati

// SendResult is the outcome of a send call: either Accepted or Rejected.
// The client never returns a Go error for a send, so callers switch on the
// concrete type.
type SendResult interface {
	sendResult()
}

// Accepted means the provider took the message.
type Accepted struct {
	MessageID string
}

// Rejected means the message was not accepted; Message is human readable.
type Rejected struct {
	Kind       FailureKind
	Message    string
	StatusCode int
}

func (Accepted) sendResult() {}
func (Rejected) sendResult() {}

type FailureKind string

const (
	FailureGeneric          FailureKind = "generic"
	FailureSessionExpired   FailureKind = "session_expired"
	FailureUnauthorized     FailureKind = "unauthorized"
	FailureTemplateNotFound FailureKind = "template_not_found"
)

const (
	msgSessionExpired    = "No active session found. Customer must have messaged within 24 hours, or use template messages for automated notifications."
	msgTemplateNotSynced = "Bad Request (400): Template may not be synced to API yet. After approval, templates take 15-30 minutes to sync."
	msgUnauthorized      = "Unauthorized - Check API token"
	msgTemplateNotFound  = "Template not found - Verify template name is correct"
	msgTemplateFailed    = "Failed to send template message"
	msgSessionFailed     = "Failed to send message"
)

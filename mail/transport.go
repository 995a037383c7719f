package mail

import "context"

// Attachment is a file attached to an outgoing message. Path points at
// a file on local disk; the caller owns its lifetime.
type Attachment struct {
	Filename string
	Path     string
}

// Message is one outgoing email. Rendering of TemplateName with
// TemplateData into a final body is the transport's concern.
type Message struct {
	To           string
	Subject      string
	TemplateName string
	TemplateData map[string]any
	Attachments  []Attachment
}

// Transport delivers composed messages. Implementations wrap an SMTP
// relay, a provider API, or a test double.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
}

package mail

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	gomail "github.com/wneessen/go-mail"
)

// SMTPTransport delivers messages over SMTP, rendering bodies from a
// parsed template set keyed by TemplateName.
type SMTPTransport struct {
	client    *gomail.Client
	from      string
	templates *template.Template
}

// SMTPConfig are the connection settings of the outgoing relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NewSMTPTransport connects the transport to an SMTP relay. templates
// may be nil; messages then get a plain key/value body.
func NewSMTPTransport(cfg SMTPConfig, templates *template.Template) (*SMTPTransport, error) {
	client, err := gomail.NewClient(cfg.Host,
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
	)
	if err != nil {
		return nil, fmt.Errorf("mail: smtp client: %w", err)
	}
	return &SMTPTransport{client: client, from: cfg.From, templates: templates}, nil
}

var _ Transport = (*SMTPTransport)(nil)

// Send renders and delivers one message.
func (t *SMTPTransport) Send(ctx context.Context, msg *Message) error {
	m := gomail.NewMsg()
	if err := m.From(t.from); err != nil {
		return fmt.Errorf("mail: set sender: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("mail: set recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)

	body, err := t.render(msg)
	if err != nil {
		return err
	}
	m.SetBodyString(gomail.TypeTextHTML, body)

	for _, a := range msg.Attachments {
		m.AttachFile(a.Path, gomail.WithFileName(a.Filename))
	}

	if err := t.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("mail: send to %s: %w", msg.To, err)
	}
	return nil
}

func (t *SMTPTransport) render(msg *Message) (string, error) {
	if t.templates != nil {
		if tmpl := t.templates.Lookup(msg.TemplateName); tmpl != nil {
			var b strings.Builder
			if err := tmpl.Execute(&b, msg.TemplateData); err != nil {
				return "", fmt.Errorf("mail: render template %q: %w", msg.TemplateName, err)
			}
			return b.String(), nil
		}
	}

	// No template available; fall back to a plain listing.
	var b strings.Builder
	for k, v := range msg.TemplateData {
		fmt.Fprintf(&b, "%s: %v<br>", k, v)
	}
	return b.String(), nil
}

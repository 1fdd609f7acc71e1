package authcore

import (
	"context"
	"encoding/json"
	"io"
	"sync"
)

// Template names passed to the [Notifier] by the engine's request flows.
const (
	// TemplateVerifyEmail carries a verification link for a new account or
	// a resent verification.
	TemplateVerifyEmail = "verify_email"
	// TemplateResetPassword carries a password reset link.
	TemplateResetPassword = "reset_password"
	// TemplateChangeEmail carries the confirmation link sent to a pending
	// new address.
	TemplateChangeEmail = "change_email"
	// TemplateSecurityAlert informs the current address that an email
	// change was requested.
	TemplateSecurityAlert = "security_alert"
	// TemplateReset2FA carries a two-factor reset link.
	TemplateReset2FA = "reset_2fa"
)

// Notifier delivers out-of-band messages (email) for the engine. Delivery
// is best-effort: the engine logs failures and never lets them fail the
// state mutation that preceded the send.
type Notifier interface {
	Send(ctx context.Context, template, recipient string, vars map[string]string) error
}

// NoOpNotifier drops every message.
type NoOpNotifier struct{}

// Send implements [Notifier].
func (NoOpNotifier) Send(context.Context, string, string, map[string]string) error {
	return nil
}

// JSONWriterNotifier writes one JSON object per message to an [io.Writer].
// Useful for development setups and tests.
type JSONWriterNotifier struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterNotifier creates a [JSONWriterNotifier] that writes to w.
func NewJSONWriterNotifier(w io.Writer) *JSONWriterNotifier {
	return &JSONWriterNotifier{writer: w}
}

// Send implements [Notifier].
func (n *JSONWriterNotifier) Send(_ context.Context, template, recipient string, vars map[string]string) error {
	payload := struct {
		Template  string            `json:"template"`
		Recipient string            `json:"recipient"`
		Vars      map[string]string `json:"vars,omitempty"`
	}{Template: template, Recipient: recipient, Vars: vars}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	n.mu.Lock()
	defer n.mu.Unlock()
	_, err = n.writer.Write(data)
	return err
}

// Package email is the outbound notification collaborator. Sends are
// best-effort: failures are logged and never fatal to the verification
// pipeline.
package email

import (
	"context"
	"log/slog"
)

// TemplateKind names an outbound email template.
type TemplateKind string

const (
	TemplateVerificationCompleted TemplateKind = "verification_completed"
	TemplateVerificationFailed    TemplateKind = "verification_failed"
	TemplateRetryAvailable        TemplateKind = "retry_available"
)

// Notifier sends one templated email. Implementations own template rendering
// and transport.
type Notifier interface {
	Send(ctx context.Context, recipient string, template TemplateKind, params map[string]string) error
}

// LogNotifier logs sends instead of delivering them. Default in development
// and tests; production wires a real provider behind the same interface.
type LogNotifier struct {
	logger *slog.Logger
}

var _ Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, recipient string, template TemplateKind, params map[string]string) error {
	first, last := DeriveNameFromEmail(recipient)
	n.logger.InfoContext(ctx, "email notification",
		"recipient", recipient,
		"recipient_name", first+" "+last,
		"template", string(template),
		"params", params,
	)
	return nil
}

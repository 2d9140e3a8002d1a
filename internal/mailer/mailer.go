// Package mailer turns settlement notifications into e-mail.
package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"

	"github.com/gigmatch-dev/settlement/backend/internal/domain"
	"github.com/google/uuid"
	"github.com/wneessen/go-mail"
)

// ErrDrop marks a notification that can never be delivered; the consumer
// should discard it rather than requeue it.
var ErrDrop = errors.New("undeliverable notification")

var errBadRecipient = errors.New("invalid recipient address")

type UserLookup interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetActiveUsersByRole(ctx context.Context, role domain.Role) ([]*domain.User, error)
}

type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type mailTemplate struct {
	file    string
	subject string
}

var templates = map[domain.NotificationKind]mailTemplate{
	domain.NotificationSettlementRequested: {file: "settlement_requested_email.html", subject: "Settlement requested"},
	domain.NotificationSettlementApproved:  {file: "settlement_approved_email.html", subject: "Settlement approved"},
}

type Mailer struct {
	users  UserLookup
	sender Sender
	from   string

	parsed map[domain.NotificationKind]*template.Template
}

// New parses every template up front so a missing file fails at startup.
func New(users UserLookup, sender Sender, from string, templateFS fs.FS) (*Mailer, error) {
	parsed := make(map[domain.NotificationKind]*template.Template, len(templates))
	for kind, t := range templates {
		tmpl, err := template.ParseFS(templateFS, t.file)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", t.file, err)
		}
		parsed[kind] = tmpl
	}

	return &Mailer{
		users:  users,
		sender: sender,
		from:   from,
		parsed: parsed,
	}, nil
}

// Messages resolves the recipients of n. A request goes to every active
// administrator, an approval goes to the worker.
func (m *Mailer) Messages(ctx context.Context, n domain.Notification) ([]domain.MailMessage, error) {
	if _, ok := templates[n.Kind]; !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrDrop, n.Kind)
	}

	owner, err := m.users.GetUserByID(ctx, n.Payload.OwnerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrDrop, err)
		}
		return nil, err
	}

	data := domain.SettlementMailData{
		FullName: owner.FullName,
		Amount:   n.Payload.Amount,
		Message:  n.Payload.Message,
	}

	var recipients []string
	switch n.Kind {
	case domain.NotificationSettlementRequested:
		admins, err := m.users.GetActiveUsersByRole(ctx, domain.RoleAdmin)
		if err != nil {
			return nil, err
		}
		for _, admin := range admins {
			recipients = append(recipients, admin.Email)
		}
	case domain.NotificationSettlementApproved:
		recipients = append(recipients, owner.Email)
	}

	messages := make([]domain.MailMessage, 0, len(recipients))
	for _, to := range recipients {
		messages = append(messages, domain.MailMessage{
			Type: string(n.Kind),
			To:   to,
			Data: data,
		})
	}

	return messages, nil
}

func (m *Mailer) build(message domain.MailMessage) (*mail.Msg, error) {
	kind := domain.NotificationKind(message.Type)
	tmpl, ok := m.parsed[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrDrop, kind)
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, err
	}
	if err := msg.To(message.To); err != nil {
		return nil, fmt.Errorf("%w: %w", errBadRecipient, err)
	}
	if err := msg.SetBodyHTMLTemplate(tmpl, message.Data); err != nil {
		return nil, err
	}
	msg.Subject(templates[kind].subject)

	return msg, nil
}

// Handle delivers one queue message. Errors wrapping ErrDrop are permanent.
func (m *Mailer) Handle(ctx context.Context, body []byte) error {
	var n domain.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return fmt.Errorf("%w: %w", ErrDrop, err)
	}

	messages, err := m.Messages(ctx, n)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		slog.Warn("notification has no recipients", "kind", n.Kind, "owner_id", n.Payload.OwnerID)
		return nil
	}

	msgs := make([]*mail.Msg, 0, len(messages))
	for _, message := range messages {
		msg, err := m.build(message)
		if errors.Is(err, errBadRecipient) {
			slog.Warn("skipping recipient", "kind", n.Kind, "to", message.To, "error", err)
			continue
		}
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return fmt.Errorf("%w: no valid recipient for %s", ErrDrop, n.Kind)
	}

	if err := m.sender.DialAndSendWithContext(ctx, msgs...); err != nil {
		return err
	}

	slog.Info("notification mailed", "kind", n.Kind, "owner_id", n.Payload.OwnerID, "recipients", len(msgs))
	return nil
}

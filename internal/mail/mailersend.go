package mail

import (
	"context"
	"fmt"

	"github.com/mailersend/mailersend-go"
)

type MailerSend struct {
	client   *mailersend.Mailersend
	from     string
	fromName string
}

func NewMailerSend(apiKey, from, fromName string) *MailerSend {
	return &MailerSend{
		client:   mailersend.NewMailersend(apiKey),
		from:     from,
		fromName: fromName,
	}
}

func (m *MailerSend) Send(ctx context.Context, msg Message) error {
	const op = "mail.MailerSend.Send"

	message := m.client.Email.NewMessage()
	message.SetFrom(mailersend.From{Name: m.fromName, Email: m.from})
	message.SetRecipients([]mailersend.Recipient{{Email: msg.To}})
	message.SetSubject(msg.Subject)
	message.SetHTML(msg.HTML)
	if msg.Text != "" {
		message.SetText(msg.Text)
	}

	if _, err := m.client.Email.Send(ctx, message); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

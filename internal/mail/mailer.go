package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"money": formatMoney,
	"join":  strings.Join,
}).ParseFS(templateFS, "templates/*.html"))

const (
	subjectConfirm = "Confirm Your Account"
	subjectReset   = "Password Reset OTP"
	subjectWelcome = "Welcome to Quick Tickets!"
	subjectBooking = "Your Quick Tickets booking"
)

// Mailer composes the application's emails.
type Mailer struct {
	sender Sender
}

func NewMailer(sender Sender) *Mailer {
	return &Mailer{sender: sender}
}

// SendOTP mails a one-time code. Purpose "reset" selects the password reset
// template; anything else is an account confirmation.
func (m *Mailer) SendOTP(ctx context.Context, to, purpose, code string, ttl time.Duration) error {
	name, subject := "confirm_email.html", subjectConfirm
	if purpose == "reset" {
		name, subject = "forgot_password.html", subjectReset
	}

	return m.send(ctx, to, subject, name, map[string]any{
		"OTP":     code,
		"Minutes": int(ttl.Minutes()),
	})
}

func (m *Mailer) SendWelcome(ctx context.Context, to, name string) error {
	return m.send(ctx, to, subjectWelcome, "register_success.html", map[string]any{
		"Name": name,
	})
}

type Booking struct {
	OrderID    string
	EventName  string
	SeatIDs    []string
	TotalCents int64
	Currency   string
}

func (m *Mailer) SendBookingConfirmation(ctx context.Context, to string, b Booking) error {
	return m.send(ctx, to, subjectBooking, "booking_confirmation.html", b)
}

func (m *Mailer) send(ctx context.Context, to, subject, name string, data any) error {
	const op = "mail.Mailer.send"

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("%s: render %s: %w", op, name, err)
	}

	if err := m.sender.Send(ctx, Message{To: to, Subject: subject, HTML: buf.String()}); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func formatMoney(cents int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, strings.ToUpper(currency))
}

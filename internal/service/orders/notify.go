package orders

import (
	"context"
	"fmt"

	"github.com/kirinyoku/quicktix/internal/mail"
	"github.com/kirinyoku/quicktix/internal/messaging"
)

type BookingMailer interface {
	SendBookingConfirmation(ctx context.Context, to string, b mail.Booking) error
}

// ConfirmationHandler returns the order.confirmed consumer handler. It mails
// the booking confirmation to the buyer.
func (s *Service) ConfirmationHandler(mailer BookingMailer) messaging.OrderConfirmedHandler {
	return func(ctx context.Context, msg messaging.OrderConfirmed) error {
		const op = "service.orders.ConfirmationHandler"

		user, err := s.store.Users().GetByID(ctx, msg.UserID)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		err = mailer.SendBookingConfirmation(ctx, user.Email, mail.Booking{
			OrderID:    msg.OrderID.String(),
			EventName:  msg.EventName,
			SeatIDs:    msg.SeatIDs,
			TotalCents: msg.TotalCents,
			Currency:   msg.Currency,
		})
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		return nil
	}
}

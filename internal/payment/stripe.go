package payment

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go"
	"github.com/stripe/stripe-go/client"
)

// Stripe charges through confirmed PaymentIntents.
type Stripe struct {
	api *client.API
}

func NewStripe(secretKey string) *Stripe {
	return &Stripe{api: client.New(secretKey, nil)}
}

// Charge creates and confirms a PaymentIntent in one call.
//
// Returns:
//   - Receipt: the PaymentIntent id as reference.
//   - error: payment.ErrDeclined if the intent did not succeed.
func (s *Stripe) Charge(ctx context.Context, c Charge) (Receipt, error) {
	const op = "payment.Stripe.Charge"

	pi, err := s.api.PaymentIntents.New(intentParams(ctx, c))
	if err != nil {
		return Receipt{}, fmt.Errorf("%s:%w", op, err)
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return Receipt{Ref: pi.ID}, fmt.Errorf("%s:%w: status %s", op, ErrDeclined, pi.Status)
	}

	return Receipt{Ref: pi.ID}, nil
}

// Refund returns the full amount of the PaymentIntent ref. Repeating a refund
// for the same order is a no-op on the provider side.
func (s *Stripe) Refund(ctx context.Context, orderID uuid.UUID, ref string) error {
	const op = "payment.Stripe.Refund"

	if _, err := s.api.Refunds.New(refundParams(ctx, orderID, ref)); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func refundParams(ctx context.Context, orderID uuid.UUID, ref string) *stripe.RefundParams {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(ref),
	}
	params.Context = ctx
	params.SetIdempotencyKey("refund-" + orderID.String())
	params.AddMetadata("order_id", orderID.String())

	return params
}

func intentParams(ctx context.Context, c Charge) *stripe.PaymentIntentParams {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(c.AmountCents),
		Currency:           stripe.String(c.Currency),
		PaymentMethod:      stripe.String(c.PaymentMethod),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Confirm:            stripe.Bool(true),
	}
	params.Context = ctx
	params.SetIdempotencyKey(c.OrderID.String())
	params.AddMetadata("order_id", c.OrderID.String())
	params.AddMetadata("event_id", strconv.FormatInt(c.EventID, 10))
	params.AddMetadata("user_id", strconv.FormatInt(c.UserID, 10))

	return params
}

package payment

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntentParams(t *testing.T) {
	orderID := uuid.New()
	ctx := context.Background()

	p := intentParams(ctx, Charge{
		OrderID:       orderID,
		UserID:        7,
		EventID:       42,
		AmountCents:   2500,
		Currency:      "usd",
		PaymentMethod: "pm_card_visa",
	})

	require.NotNil(t, p.IdempotencyKey)
	assert.Equal(t, orderID.String(), *p.IdempotencyKey)
	assert.Equal(t, int64(2500), *p.Amount)
	assert.Equal(t, "usd", *p.Currency)
	assert.True(t, *p.Confirm)
	assert.Equal(t, "42", p.Metadata["event_id"])
	assert.Equal(t, "7", p.Metadata["user_id"])
	assert.Equal(t, ctx, p.Context)
}

func TestRefundParams(t *testing.T) {
	orderID := uuid.New()
	ctx := context.Background()

	p := refundParams(ctx, orderID, "pi_123")

	require.NotNil(t, p.PaymentIntent)
	assert.Equal(t, "pi_123", *p.PaymentIntent)
	require.NotNil(t, p.IdempotencyKey)
	assert.Equal(t, "refund-"+orderID.String(), *p.IdempotencyKey)
	assert.NotEqual(t, orderID.String(), *p.IdempotencyKey)
	assert.Equal(t, orderID.String(), p.Metadata["order_id"])
	assert.Equal(t, ctx, p.Context)
}

func TestDisabledRejects(t *testing.T) {
	_, err := Disabled{}.Charge(context.Background(), Charge{})
	assert.ErrorIs(t, err, ErrDisabled)
	assert.ErrorIs(t, Disabled{}.Refund(context.Background(), uuid.New(), "pi_1"), ErrDisabled)
}

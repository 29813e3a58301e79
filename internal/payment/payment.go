// Package payment charges orders through an external provider.
package payment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrDeclined = errors.New("payment declined")
	ErrDisabled = errors.New("payments are not configured")
)

// Charge is one payment request. OrderID doubles as the provider
// idempotency key, so repeating a charge for the same order is safe.
type Charge struct {
	OrderID       uuid.UUID
	UserID        int64
	EventID       int64
	AmountCents   int64
	Currency      string
	PaymentMethod string
}

type Receipt struct {
	Ref string
}

// Gateway moves money for orders. Refund reverses a settled charge
// identified by its receipt ref.
type Gateway interface {
	Charge(ctx context.Context, c Charge) (Receipt, error)
	Refund(ctx context.Context, orderID uuid.UUID, ref string) error
}

// Disabled rejects every charge. It is used when no provider key is set so
// that free orders still go through.
type Disabled struct{}

func (Disabled) Charge(context.Context, Charge) (Receipt, error) {
	return Receipt{}, ErrDisabled
}

func (Disabled) Refund(context.Context, uuid.UUID, string) error {
	return ErrDisabled
}

package orders

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEventNotFound    = errors.New("event not found")
	ErrEventInactive    = errors.New("event is not active")
	ErrSeatNotHeld      = errors.New("seats are not held by this customer")
	ErrUnpricedSeat     = errors.New("seat has no price for this event")
	ErrCheckoutConflict = errors.New("seat map changed during checkout, try again")
	ErrPaymentFailed    = errors.New("payment failed")
	ErrOrderNotFound    = errors.New("order not found")
)

// SeatsNotHeldError lists the seats that blocked a checkout.
type SeatsNotHeldError struct {
	SeatIDs []string
}

func (e *SeatsNotHeldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSeatNotHeld, strings.Join(e.SeatIDs, ", "))
}

func (e *SeatsNotHeldError) Is(target error) bool {
	return target == ErrSeatNotHeld
}

package reservation

import (
	"errors"

	"github.com/kirinyoku/quicktix/internal/domain"
)

var (
	ErrEventNotFound  = errors.New("event not found")
	ErrEventInactive  = errors.New("event is not active")
	ErrSeatNotFound   = errors.New("seat not found")
	ErrSeatSold       = errors.New("seat already sold")
	ErrSeatHeld       = errors.New("seat is held by another customer")
	ErrHoldContention = errors.New("seat is contended, try again")
	ErrRateLimited    = domain.ErrRateLimited
)

type RateLimitedError = domain.RateLimitedError

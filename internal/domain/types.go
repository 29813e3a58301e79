package domain

import (
	"time"

	"github.com/google/uuid"
)

type SeatStatus string

const (
	SeatAvailable SeatStatus = "available"
	SeatHeld      SeatStatus = "held"
	SeatSold      SeatStatus = "sold"
)

// SeatState is the mutable part of a seat. A hold lives inside the state:
// HolderID and HoldExpiresAt are set only while Status is SeatHeld.
type SeatState struct {
	Status        SeatStatus `json:"status"`
	HolderID      string     `json:"holder_id,omitempty"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
}

// Seat belongs to exactly one event. Version is bumped by every state
// transition and is the token compare-and-swap operates on.
type Seat struct {
	EventID      int64  `json:"event_id"`
	ID           string `json:"seat_id"`
	TicketTypeID int64  `json:"ticket_type_id"`
	SeatState
	Version int64 `json:"version"`
}

// SeatSpec describes a seat when an event's seat map is created.
type SeatSpec struct {
	ID           string `json:"seat_id"`
	TicketTypeID int64  `json:"ticket_type_id"`
}

// HoldActive reports whether the seat carries a hold that has not expired at now.
func (s Seat) HoldActive(now time.Time) bool {
	return s.Status == SeatHeld &&
		s.HoldExpiresAt != nil &&
		now.Before(*s.HoldExpiresAt)
}

// HeldBy reports whether holderID owns an unexpired hold on the seat.
func (s Seat) HeldBy(holderID string, now time.Time) bool {
	return s.HoldActive(now) && s.HolderID == holderID
}

// Effective returns the seat as readers must see it: an expired hold is
// reported as available. Version is left untouched so the result can still
// be used as the expected state of a compare-and-swap.
func (s Seat) Effective(now time.Time) Seat {
	if s.Status == SeatHeld && !s.HoldActive(now) {
		s.SeatState = SeatState{Status: SeatAvailable}
	}
	return s
}

func Available() SeatState {
	return SeatState{Status: SeatAvailable}
}

func HeldState(holderID string, expiresAt time.Time) SeatState {
	exp := expiresAt.UTC()
	return SeatState{Status: SeatHeld, HolderID: holderID, HoldExpiresAt: &exp}
}

func Sold() SeatState {
	return SeatState{Status: SeatSold}
}

type Hold struct {
	EventID   int64     `json:"event_id"`
	SeatID    string    `json:"seat_id"`
	HolderID  string    `json:"holder_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SeatCounts struct {
	Available int64 `json:"available"`
	Held      int64 `json:"held"`
	Sold      int64 `json:"sold"`
	Total     int64 `json:"total"`
}

// CountSeats tallies effective seat states at now.
func CountSeats(seats []Seat, now time.Time) SeatCounts {
	var c SeatCounts
	for _, s := range seats {
		switch s.Effective(now).Status {
		case SeatAvailable:
			c.Available++
		case SeatHeld:
			c.Held++
		case SeatSold:
			c.Sold++
		}
	}
	c.Total = c.Available + c.Held + c.Sold
	return c
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type Order struct {
	ID            uuid.UUID     `json:"id"`
	UserID        int64         `json:"user_id"`
	EventID       int64         `json:"event_id"`
	SeatIDs       []string      `json:"seat_ids"`
	TotalCents    int64         `json:"total_cents"`
	Currency      string        `json:"currency"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	PaymentRef    string        `json:"payment_ref,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

type TicketCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type BookingHistoryEntry struct {
	OrderID       uuid.UUID     `json:"order_id"`
	EventName     string        `json:"event_name"`
	StartDateTime *time.Time    `json:"start_date_time"`
	Tickets       []TicketCount `json:"tickets"`
}

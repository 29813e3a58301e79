package domain

import "time"

type EventType string

const (
	EventMovie     EventType = "movie"
	EventDrama     EventType = "drama"
	EventConcert   EventType = "concert"
	EventGaming    EventType = "gaming"
	EventFestival  EventType = "festival"
	EventWorkshop  EventType = "workshop"
	EventSeminar   EventType = "seminar"
	EventYacht     EventType = "yacht"
	EventSport     EventType = "sport"
	EventComedy    EventType = "comedy"
	EventSpiritual EventType = "spiritual"
	EventWebinar   EventType = "webinar"
	EventPrivate   EventType = "private"
)

type EventStatus string

const (
	EventActive   EventStatus = "active"
	EventInactive EventStatus = "inactive"
)

// TicketLine prices one ticket type for an event.
type TicketLine struct {
	TicketTypeID int64 `json:"ticket_type_id"`
	PriceCents   int64 `json:"price_cents"`
	Quantity     int   `json:"quantity"`
}

type Event struct {
	ID            int64        `json:"id"`
	UserID        int64        `json:"user_id"`
	Type          EventType    `json:"event_type"`
	Name          string       `json:"name"`
	Slug          string       `json:"slug"`
	Description   string       `json:"description,omitempty"`
	FeaturedImage string       `json:"featured_image,omitempty"`
	Location      string       `json:"location,omitempty"`
	StartsAt      *time.Time   `json:"start_date_time,omitempty"`
	EndsAt        *time.Time   `json:"end_date_time,omitempty"`
	Status        EventStatus  `json:"status"`
	ArtistIDs     []int64      `json:"artist_ids,omitempty"`
	PerformerIDs  []int64      `json:"performer_ids,omitempty"`
	InstructorIDs []int64      `json:"instructor_ids,omitempty"`
	SpeakerIDs    []int64      `json:"speaker_ids,omitempty"`
	TrailerLinks  []string     `json:"trailer_links,omitempty"`
	Showtimes     []time.Time  `json:"showtimes,omitempty"`
	TicketDetails []TicketLine `json:"ticket_details"`
	CreatedAt     time.Time    `json:"created_at"`
}

func (e Event) IsActive() bool {
	return e.Status == EventActive
}

// PriceFor returns the price of ticketTypeID on this event.
func (e Event) PriceFor(ticketTypeID int64) (int64, bool) {
	for _, t := range e.TicketDetails {
		if t.TicketTypeID == ticketTypeID {
			return t.PriceCents, true
		}
	}
	return 0, false
}

// EventFilter narrows the active-event listing. Zero values disable a criterion.
type EventFilter struct {
	From        *time.Time
	To          *time.Time
	StartsAfter *time.Time
	Location    string
	ArtistIDs   []int64
	MinPrice    *int64
	MaxPrice    *int64
}

type Artist struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

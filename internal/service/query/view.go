package query

import (
	"time"

	"github.com/kirinyoku/quicktix/internal/domain"
)

const unknownName = "Unknown"

type ArtistRef struct {
	ArtistID   int64  `json:"artist_id"`
	ArtistName string `json:"artist_name"`
}

type TicketView struct {
	domain.TicketLine
	TicketTypeName string `json:"ticket_type_name"`
}

// EventView is an event with its artist and ticket type ids resolved to
// names. Its artist_details and ticket_details replace the raw id lists.
type EventView struct {
	domain.Event
	Artists []ArtistRef  `json:"artist_details"`
	Tickets []TicketView `json:"ticket_details"`
}

// SeatMap is the public seat map of an event. Holder ids are not exposed.
type SeatMap struct {
	EventID int64             `json:"event_id"`
	Seats   []domain.Seat     `json:"seats"`
	Counts  domain.SeatCounts `json:"counts"`
	AsOf    time.Time         `json:"as_of"`
}

func buildSeatMap(eventID int64, raw []domain.Seat, now time.Time) SeatMap {
	seats := make([]domain.Seat, len(raw))
	for i, s := range raw {
		s = s.Effective(now)
		s.HolderID = ""
		seats[i] = s
	}

	return SeatMap{
		EventID: eventID,
		Seats:   seats,
		Counts:  domain.CountSeats(raw, now),
		AsOf:    now,
	}
}

func enrich(ev domain.Event, artists map[int64]string, ticketTypes map[int64]string) EventView {
	view := EventView{
		Event:   ev,
		Artists: make([]ArtistRef, 0, len(ev.ArtistIDs)),
		Tickets: make([]TicketView, 0, len(ev.TicketDetails)),
	}

	for _, id := range ev.ArtistIDs {
		name, ok := artists[id]
		if !ok || name == "" {
			name = unknownName
		}
		view.Artists = append(view.Artists, ArtistRef{ArtistID: id, ArtistName: name})
	}

	for _, line := range ev.TicketDetails {
		name, ok := ticketTypes[line.TicketTypeID]
		if !ok || name == "" {
			name = unknownName
		}
		view.Tickets = append(view.Tickets, TicketView{TicketLine: line, TicketTypeName: name})
	}

	return view
}

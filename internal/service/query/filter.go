package query

import (
	"sort"
	"time"

	"github.com/kirinyoku/quicktix/internal/domain"
)

// listCap bounds the trending and upcoming listings.
const listCap = 8

// FilterByArtists keeps events featuring at least one of artistIDs. An empty
// artistIDs keeps everything.
func FilterByArtists(events []domain.Event, artistIDs []int64) []domain.Event {
	if len(artistIDs) == 0 {
		return events
	}

	want := make(map[int64]struct{}, len(artistIDs))
	for _, id := range artistIDs {
		want[id] = struct{}{}
	}

	out := make([]domain.Event, 0, len(events))
	for _, ev := range events {
		for _, id := range ev.ArtistIDs {
			if _, ok := want[id]; ok {
				out = append(out, ev)
				break
			}
		}
	}

	return out
}

// FilterByPrice keeps events with at least one ticket line priced inside
// [min, max]. A nil bound is open.
func FilterByPrice(events []domain.Event, min, max *int64) []domain.Event {
	if min == nil && max == nil {
		return events
	}

	out := make([]domain.Event, 0, len(events))
	for _, ev := range events {
		for _, line := range ev.TicketDetails {
			if min != nil && line.PriceCents < *min {
				continue
			}
			if max != nil && line.PriceCents > *max {
				continue
			}
			out = append(out, ev)
			break
		}
	}

	return out
}

// RankTrending orders events by paid order count, highest first. Events with
// equal counts keep their input order. At most eight events are returned.
func RankTrending(events []domain.Event, orderCounts map[int64]int64) []domain.Event {
	ranked := make([]domain.Event, len(events))
	copy(ranked, events)

	sort.SliceStable(ranked, func(i, j int) bool {
		return orderCounts[ranked[i].ID] > orderCounts[ranked[j].ID]
	})

	if len(ranked) > listCap {
		ranked = ranked[:listCap]
	}

	return ranked
}

// Upcoming returns events starting strictly after now, soonest first, at
// most eight. Events without a start time are skipped.
func Upcoming(events []domain.Event, now time.Time) []domain.Event {
	out := make([]domain.Event, 0, len(events))
	for _, ev := range events {
		if ev.StartsAt != nil && ev.StartsAt.After(now) {
			out = append(out, ev)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartsAt.Before(*out[j].StartsAt)
	})

	if len(out) > listCap {
		out = out[:listCap]
	}

	return out
}

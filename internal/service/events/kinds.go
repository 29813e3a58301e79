package events

import "github.com/kirinyoku/quicktix/internal/domain"

// relation is an optional part of an event payload.
type relation string

const (
	relArtists     relation = "artist_ids"
	relPerformers  relation = "performer_ids"
	relInstructors relation = "instructor_ids"
	relSpeakers    relation = "speaker_ids"
	relShowtimes   relation = "showtimes"
	relTrailers    relation = "trailer_links"
	relLocation    relation = "location"
	relDates       relation = "start_date_time"
)

type kindSpec struct {
	required []relation
	optional []relation
}

// kinds declares, per event type, which relations must be present and which
// may be. Anything not listed is rejected. Ticket lines are allowed for all.
var kinds = map[domain.EventType]kindSpec{
	domain.EventMovie: {
		optional: []relation{relTrailers, relShowtimes, relLocation, relDates},
	},
	domain.EventDrama: {
		required: []relation{relLocation, relDates},
		optional: []relation{relPerformers, relShowtimes, relTrailers},
	},
	domain.EventConcert: {
		required: []relation{relArtists, relLocation, relDates},
		optional: []relation{relPerformers, relTrailers},
	},
	domain.EventGaming: {
		required: []relation{relLocation, relDates},
	},
	domain.EventFestival: {
		required: []relation{relLocation, relDates},
		optional: []relation{relArtists, relPerformers, relTrailers},
	},
	domain.EventWorkshop: {
		required: []relation{relInstructors, relDates},
		optional: []relation{relLocation},
	},
	domain.EventSeminar: {
		required: []relation{relSpeakers, relDates},
		optional: []relation{relLocation},
	},
	domain.EventYacht: {
		required: []relation{relLocation, relDates},
		optional: []relation{relArtists},
	},
	domain.EventSport: {
		required: []relation{relLocation, relDates},
	},
	domain.EventComedy: {
		required: []relation{relPerformers, relLocation, relDates},
		optional: []relation{relTrailers},
	},
	domain.EventSpiritual: {
		required: []relation{relDates},
		optional: []relation{relSpeakers, relLocation},
	},
	domain.EventWebinar: {
		required: []relation{relSpeakers, relDates},
	},
	domain.EventPrivate: {
		required: []relation{relLocation, relDates},
		optional: []relation{relArtists, relPerformers},
	},
}

func (in CreateEventInput) present() map[relation]bool {
	return map[relation]bool{
		relArtists:     len(in.ArtistIDs) > 0,
		relPerformers:  len(in.PerformerIDs) > 0,
		relInstructors: len(in.InstructorIDs) > 0,
		relSpeakers:    len(in.SpeakerIDs) > 0,
		relShowtimes:   len(in.Showtimes) > 0,
		relTrailers:    len(in.TrailerLinks) > 0,
		relLocation:    in.Location != "",
		relDates:       in.StartsAt != nil,
	}
}

func checkKind(in CreateEventInput, ve *domain.ValidationError) {
	rules, ok := kinds[in.Type]
	if !ok {
		ve.Add("event_type", "is not supported")
		return
	}

	present := in.present()
	allowed := make(map[relation]bool, len(rules.required)+len(rules.optional))

	for _, r := range rules.required {
		allowed[r] = true
		if !present[r] {
			ve.Add(string(r), "is required for "+string(in.Type)+" events")
		}
	}
	for _, r := range rules.optional {
		allowed[r] = true
	}

	for r, ok := range present {
		if ok && !allowed[r] {
			ve.Add(string(r), "is not allowed for "+string(in.Type)+" events")
		}
	}
}

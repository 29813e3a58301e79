package httpgin

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/service"
	"github.com/kirinyoku/quicktix/internal/service/events"
)

// @Summary  List active events
// @Param    from          query  string  false  "RFC3339 lower bound of start_date_time"
// @Param    to            query  string  false  "RFC3339 upper bound of start_date_time"
// @Param    starts_after  query  string  false  "RFC3339, events starting strictly after"
// @Param    location      query  string  false  "exact location"
// @Param    artist_ids    query  string  false  "comma separated artist ids"
// @Param    min_price     query  int     false  "minimum ticket price in cents"
// @Param    max_price     query  int     false  "maximum ticket price in cents"
// @Success  200  {array}   query.EventView
// @Failure  400  {object}  ErrorResponse
// @Router   /events [get]
func handleListEvents(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := parseEventFilter(c)
		if err != nil {
			respondErr(c, err)
			return
		}

		list, err := svcs.Query.ListEvents(c.Request.Context(), filter)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, list, cacheLists)
	}
}

// @Summary  Trending events, most booked first
// @Success  200  {array}  query.EventView
// @Router   /events/trending [get]
func handleTrending(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svcs.Query.Trending(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, list, cacheLists)
	}
}

// @Summary  Upcoming events, soonest first
// @Success  200  {array}  query.EventView
// @Router   /events/upcoming [get]
func handleUpcoming(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svcs.Query.Upcoming(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, list, cacheLists)
	}
}

// @Summary  Event details
// @Param    event  path  string  true  "Event slug"
// @Success  200  {object}  query.EventView
// @Failure  404  {object}  ErrorResponse
// @Router   /events/{event} [get]
func handleEventDetails(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ev, err := svcs.Query.EventDetails(c.Request.Context(), c.Param("event"))
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, ev, cacheDetails)
	}
}

// @Summary  Seat map of an event
// @Param    event  path  string  true  "Event slug"
// @Success  200  {object}  query.SeatMap
// @Failure  404  {object}  ErrorResponse
// @Router   /events/{event}/seats [get]
func handleEventSeats(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, err := svcs.Query.EventSeats(c.Request.Context(), c.Param("event"))
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, m, cacheSeats)
	}
}

// @Summary  Event locations
// @Success  200  {array}  string
// @Router   /locations [get]
func handleLocations(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		locs, err := svcs.Query.Locations(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, locs, cacheDetails)
	}
}

// @Summary  Active artists
// @Success  200  {array}  domain.Artist
// @Router   /artists [get]
func handleArtists(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		artists, err := svcs.Query.Artists(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, artists, cacheDetails)
	}
}

// @Summary  Create event
// @Accept   multipart/form-data
// @Param    data            formData  string  true  "CreateEventRequest as JSON"
// @Param    featured_image  formData  file    true  "featured image"
// @Success  201  {object}  domain.Event
// @Failure  400  {object}  ErrorResponse
// @Failure  500  {object}  ErrorResponse "upload failed"
// @Security BearerAuth
// @Router   /events [post]
func handleCreateEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := identity(c)

		var req CreateEventRequest
		if err := json.Unmarshal([]byte(c.PostForm("data")), &req); err != nil {
			respondErr(c, domain.Invalid("data", "must be a JSON event document"))
			return
		}

		in := events.CreateEventInput{
			UserID:        id.UserID,
			Type:          req.EventType,
			Name:          req.Name,
			Description:   req.Description,
			Location:      req.Location,
			StartsAt:      req.StartsAt,
			EndsAt:        req.EndsAt,
			ArtistIDs:     req.ArtistIDs,
			PerformerIDs:  req.PerformerIDs,
			InstructorIDs: req.InstructorIDs,
			SpeakerIDs:    req.SpeakerIDs,
			TrailerLinks:  req.TrailerLinks,
			Showtimes:     req.Showtimes,
			Tickets:       req.TicketDetails,
			Seats:         req.Seats,
		}

		if fh, err := c.FormFile("featured_image"); err == nil {
			f, err := fh.Open()
			if err != nil {
				respondErr(c, err)
				return
			}
			defer f.Close()

			in.Image = &events.Image{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Body:        f,
			}
		}

		ev, err := svcs.Events.CreateEvent(c.Request.Context(), in)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, ev)
	}
}

func parseEventFilter(c *gin.Context) (domain.EventFilter, error) {
	var f domain.EventFilter
	ve := &domain.ValidationError{}

	parseTime := func(name string) *time.Time {
		raw := c.Query(name)
		if raw == "" {
			return nil
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			ve.Add(name, "must be an RFC3339 timestamp")
			return nil
		}
		return &t
	}

	parseCents := func(name string) *int64 {
		raw := c.Query(name)
		if raw == "" {
			return nil
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			ve.Add(name, "must be a non-negative integer")
			return nil
		}
		return &v
	}

	f.From = parseTime("from")
	f.To = parseTime("to")
	f.StartsAfter = parseTime("starts_after")
	f.Location = strings.TrimSpace(c.Query("location"))
	f.MinPrice = parseCents("min_price")
	f.MaxPrice = parseCents("max_price")

	if raw := c.Query("artist_ids"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				ve.Add("artist_ids", "must be comma separated ids")
				break
			}
			f.ArtistIDs = append(f.ArtistIDs, id)
		}
	}

	return f, ve.Err()
}

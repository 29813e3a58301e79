package httpgin

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	redisx "github.com/kirinyoku/quicktix/internal/redis"
	"github.com/kirinyoku/quicktix/internal/service"
)

// streamRefresh also re-sends the seat map without a change notification,
// so holds that lapse on their own show up as available.
const streamRefresh = 15 * time.Second

// SeatHub fans seat change notifications out to open seat-map streams. One
// broker subscription serves every stream of the process.
type SeatHub struct {
	mu   sync.Mutex
	subs map[int64]map[chan struct{}]struct{}
}

func NewSeatHub() *SeatHub {
	return &SeatHub{subs: make(map[int64]map[chan struct{}]struct{})}
}

// Subscribe returns a channel that is signalled whenever eventID changes and
// a function that ends the subscription.
func (h *SeatHub) Subscribe(eventID int64) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	if h.subs[eventID] == nil {
		h.subs[eventID] = make(map[chan struct{}]struct{})
	}
	h.subs[eventID][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[eventID], ch)
		if len(h.subs[eventID]) == 0 {
			delete(h.subs, eventID)
		}
	}
}

// Notify signals every subscriber of eventID. Signals coalesce: a
// subscriber that has not caught up receives one pending signal.
func (h *SeatHub) Notify(eventID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[eventID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Run feeds the hub from a change subscription until ctx is done.
func (h *SeatHub) Run(
	ctx context.Context,
	subscribe func(ctx context.Context, handler func(ctx context.Context, ch redisx.EventChange)) error,
) error {
	return subscribe(ctx, func(_ context.Context, ch redisx.EventChange) {
		h.Notify(ch.EventID)
	})
}

// @Summary  Live seat map (server-sent events)
// @Produce  text/event-stream
// @Param    event  path  string  true  "Event slug"
// @Success  200  {object}  query.SeatMap  "one 'seats' event per change"
// @Failure  404  {object}  ErrorResponse
// @Router   /events/{event}/seats/stream [get]
func handleSeatStream(svcs *service.Services, hub *SeatHub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		first, err := svcs.Query.EventSeats(ctx, c.Param("event"))
		if err != nil {
			respondErr(c, err)
			return
		}
		eventID := first.EventID

		var changes <-chan struct{}
		if hub != nil {
			ch, cancel := hub.Subscribe(eventID)
			defer cancel()
			changes = ch
		}

		ticker := time.NewTicker(streamRefresh)
		defer ticker.Stop()

		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")

		sent := false
		c.Stream(func(w io.Writer) bool {
			if !sent {
				sent = true
				c.SSEvent("seats", first)
				return true
			}

			select {
			case <-ctx.Done():
				return false
			case <-changes:
			case <-ticker.C:
			}

			m, err := svcs.Query.SeatMapByID(ctx, eventID)
			if err != nil {
				c.SSEvent("error", ErrorResponse{Error: http.StatusText(http.StatusInternalServerError)})
				return false
			}
			c.SSEvent("seats", m)
			return true
		})
	}
}

package httpgin

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/service/events"
	"github.com/kirinyoku/quicktix/internal/service/orders"
	"github.com/kirinyoku/quicktix/internal/service/reservation"
	"github.com/kirinyoku/quicktix/internal/service/users"
	"github.com/stretchr/testify/assert"
)

func TestRespondErr(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "validation",
			err:        fmt.Errorf("op: %w", domain.Invalid("seat_ids", "is required")),
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"invalid input","fields":{"seat_ids":["is required"]}}`,
		},
		{
			name:       "seat held",
			err:        fmt.Errorf("service.reservation.Acquire:%w", reservation.ErrSeatHeld),
			wantStatus: http.StatusConflict,
			wantBody:   `{"error":"seat is held by another customer"}`,
		},
		{
			name:       "seats not held",
			err:        fmt.Errorf("op:%w", &orders.SeatsNotHeldError{SeatIDs: []string{"C"}}),
			wantStatus: http.StatusConflict,
			wantBody:   `{"error":"seats are not held by this customer","seat_ids":["C"]}`,
		},
		{
			name:       "payment",
			err:        fmt.Errorf("op:%w: %w", orders.ErrPaymentFailed, errors.New("card_declined")),
			wantStatus: http.StatusPaymentRequired,
			wantBody:   `{"error":"payment failed"}`,
		},
		{
			name:       "upload",
			err:        fmt.Errorf("op:%w: %w", events.ErrUploadFailed, errors.New("bucket gone")),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"featured image upload failed"}`,
		},
		{
			name:       "credentials",
			err:        users.ErrInvalidCredentials,
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"error":"invalid email or password"}`,
		},
		{
			name:       "unknown errors hide details",
			err:        errors.New("pq: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"internal error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			respondErr(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestRespondErrRateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondErr(c, fmt.Errorf("op:%w", &reservation.RateLimitedError{RetryAfter: 2500 * time.Millisecond}))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3", w.Header().Get("Retry-After"))
}

func TestETagMatches(t *testing.T) {
	tag := etagOf([]byte(`{"a":1}`))

	assert.True(t, etagMatches(tag, tag))
	assert.True(t, etagMatches(`"x", `+tag, tag))
	assert.True(t, etagMatches(tag[2:], tag), "strong form matches weakly")
	assert.True(t, etagMatches("*", tag))
	assert.False(t, etagMatches("", tag))
	assert.False(t, etagMatches(etagOf([]byte(`{"a":2}`)), tag))
}

func TestSeatHub(t *testing.T) {
	hub := NewSeatHub()

	ch, cancel := hub.Subscribe(7)
	other, cancelOther := hub.Subscribe(8)
	defer cancelOther()

	hub.Notify(7)
	hub.Notify(7)

	select {
	case <-ch:
	default:
		t.Fatal("expected a signal for event 7")
	}

	// the second notify coalesced into the first
	select {
	case <-ch:
		t.Fatal("signals should coalesce")
	default:
	}

	select {
	case <-other:
		t.Fatal("event 8 was not notified")
	default:
	}

	cancel()
	hub.Notify(7)
	select {
	case <-ch:
		t.Fatal("cancelled subscription was signalled")
	default:
	}
}

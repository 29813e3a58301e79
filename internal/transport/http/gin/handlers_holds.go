package httpgin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/service"
)

// requireHolder answers 400 when the caller has no hold identity.
func requireHolder(c *gin.Context) (string, bool) {
	h := holderID(c)
	if h == "" {
		respondErr(c, domain.Invalid("holder_id", "send a bearer token or "+headerSessionID))
		return "", false
	}
	return h, true
}

// @Summary  Hold a seat
// @Param    event  path    int                 true  "Event ID"
// @Param    req    body    AcquireHoldRequest  true  "payload"
// @Param    X-Session-ID  header  string  false  "anonymous holder"
// @Success  201  {object}  domain.Hold
// @Failure  400  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse "seat held or sold"
// @Failure  429  {object}  ErrorResponse "rate limited"
// @Router   /events/{event}/holds [post]
func handleAcquireHold(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "event")
		if !ok {
			return
		}
		holder, ok := requireHolder(c)
		if !ok {
			return
		}

		var req AcquireHoldRequest
		if !bindJSON(c, &req) {
			return
		}

		hold, err := svcs.Reservation.Acquire(
			c.Request.Context(),
			eventID,
			req.SeatID,
			holder,
			time.Duration(req.TTLSeconds)*time.Second,
			"ip:"+c.ClientIP(),
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, hold)
	}
}

// @Summary  Release a held seat (idempotent)
// @Param    event  path  int     true  "Event ID"
// @Param    seat   path  string  true  "Seat ID"
// @Success  204
// @Failure  404  {object}  ErrorResponse
// @Router   /events/{event}/holds/{seat} [delete]
func handleReleaseHold(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "event")
		if !ok {
			return
		}
		holder, ok := requireHolder(c)
		if !ok {
			return
		}

		if err := svcs.Reservation.Release(c.Request.Context(), eventID, c.Param("seat"), holder); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Release every seat the caller holds on an event
// @Param    event  path  int  true  "Event ID"
// @Success  200  {object}  ReleaseAllResponse
// @Router   /events/{event}/holds [delete]
func handleReleaseAll(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "event")
		if !ok {
			return
		}
		holder, ok := requireHolder(c)
		if !ok {
			return
		}

		n, err := svcs.Reservation.ReleaseAll(c.Request.Context(), eventID, holder)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, ReleaseAllResponse{Released: n})
	}
}

// @Summary  Active holds of the caller on an event
// @Param    event  path  int  true  "Event ID"
// @Success  200  {array}  domain.Hold
// @Router   /events/{event}/holds [get]
func handleListHolds(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "event")
		if !ok {
			return
		}
		holder, ok := requireHolder(c)
		if !ok {
			return
		}

		holds, err := svcs.Reservation.Holds(c.Request.Context(), eventID, holder)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, holds)
	}
}

package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/quicktix/internal/service"
)

// @Summary  Activate or deactivate an event
// @Param    id  path  int  true  "Event ID"
// @Success  204
// @Failure  404  {object}  ErrorResponse
// @Security BearerAuth
// @Router   /admin/events/{id}/activate [post]
// @Router   /admin/events/{id}/deactivate [post]
func handleSetEventStatus(svcs *service.Services, active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		set := svcs.Admin.DeactivateEvent
		if active {
			set = svcs.Admin.ActivateEvent
		}

		if err := set(c.Request.Context(), eventID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Free expired holds now
// @Success  200  {object}  ReclaimResponse
// @Security BearerAuth
// @Router   /admin/holds/reclaim [post]
func handleReclaim(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := svcs.Admin.ReclaimHolds(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, ReclaimResponse{EventsChanged: n})
	}
}

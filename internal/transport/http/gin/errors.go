package httpgin

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/kirinyoku/quicktix/internal/auth"
	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/service/admin"
	"github.com/kirinyoku/quicktix/internal/service/catalog"
	"github.com/kirinyoku/quicktix/internal/service/community"
	"github.com/kirinyoku/quicktix/internal/service/events"
	"github.com/kirinyoku/quicktix/internal/service/orders"
	"github.com/kirinyoku/quicktix/internal/service/query"
	"github.com/kirinyoku/quicktix/internal/service/reservation"
	"github.com/kirinyoku/quicktix/internal/service/users"
	"github.com/kirinyoku/quicktix/internal/validate"
)

var errForbidden = errors.New("forbidden")

// errorStatuses maps service errors to HTTP statuses. The matched sentinel's
// text is what the client sees.
var errorStatuses = []struct {
	target error
	status int
}{
	// 404
	{reservation.ErrEventNotFound, http.StatusNotFound},
	{reservation.ErrSeatNotFound, http.StatusNotFound},
	{orders.ErrEventNotFound, http.StatusNotFound},
	{orders.ErrOrderNotFound, http.StatusNotFound},
	{query.ErrEventNotFound, http.StatusNotFound},
	{admin.ErrEventNotFound, http.StatusNotFound},
	{users.ErrUserNotFound, http.StatusNotFound},
	{catalog.ErrItemNotFound, http.StatusNotFound},
	{catalog.ErrUnknownKind, http.StatusNotFound},
	{community.ErrUserNotFound, http.StatusNotFound},
	{community.ErrOrganizationNotFound, http.StatusNotFound},
	{community.ErrNotFollowing, http.StatusNotFound},

	// 409
	{reservation.ErrSeatSold, http.StatusConflict},
	{reservation.ErrSeatHeld, http.StatusConflict},
	{reservation.ErrHoldContention, http.StatusConflict},
	{reservation.ErrEventInactive, http.StatusConflict},
	{orders.ErrEventInactive, http.StatusConflict},
	{orders.ErrCheckoutConflict, http.StatusConflict},
	{orders.ErrUnpricedSeat, http.StatusConflict},
	{users.ErrEmailTaken, http.StatusConflict},
	{community.ErrAlreadyFollowing, http.StatusConflict},
	{events.ErrSlugExhausted, http.StatusConflict},

	// 400
	{users.ErrInvalidOTP, http.StatusBadRequest},
	{users.ErrUnsupportedRole, http.StatusBadRequest},

	// 401 / 403
	{users.ErrInvalidCredentials, http.StatusUnauthorized},
	{auth.ErrInvalidToken, http.StatusUnauthorized},
	{users.ErrNotVerified, http.StatusForbidden},
	{catalog.ErrForbidden, http.StatusForbidden},
	{errForbidden, http.StatusForbidden},

	// external services; state was rolled back
	{orders.ErrPaymentFailed, http.StatusPaymentRequired},
	{events.ErrUploadFailed, http.StatusInternalServerError},
	{users.ErrUploadFailed, http.StatusInternalServerError},
	{users.ErrMailFailed, http.StatusInternalServerError},
	{users.ErrGoogleDisabled, http.StatusServiceUnavailable},
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: domain.ErrValidation.Error(), Fields: ve.Fields})
		return
	}

	var rl *domain.RateLimitedError
	if errors.As(err, &rl) {
		secs := int(math.Ceil(rl.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: domain.ErrRateLimited.Error()})
		return
	}

	var notHeld *orders.SeatsNotHeldError
	if errors.As(err, &notHeld) {
		c.JSON(http.StatusConflict, ErrorResponse{Error: orders.ErrSeatNotHeld.Error(), SeatIDs: notHeld.SeatIDs})
		return
	}

	for _, m := range errorStatuses {
		if errors.Is(err, m.target) {
			if m.status >= http.StatusInternalServerError {
				_ = c.Error(err)
			}
			c.JSON(m.status, ErrorResponse{Error: m.target.Error()})
			return
		}
	}

	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// bindJSON decodes the request body into dst and answers 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondBindErr(c, err)
		return false
	}
	return true
}

func respondBindErr(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		respondErr(c, validate.Fields(err))
		return
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "malformed request body"})
}

package httpgin

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/quicktix/internal/domain"
	redisx "github.com/kirinyoku/quicktix/internal/redis"
	redisrepo "github.com/kirinyoku/quicktix/internal/repository/redis"
	"github.com/kirinyoku/quicktix/internal/service"
	"github.com/kirinyoku/quicktix/internal/service/orders"
)

const idemLockTTL = 60 * time.Second

// @Summary  Checkout held seats (idempotent)
// @Param    req  body    CheckoutRequest  true   "payload"
// @Param    Idempotency-Key  header  string  false  "replays the first response"
// @Param    X-Session-ID     header  string  false  "holder of anonymous holds"
// @Header   201  {string}  Idempotency-Key  "echo"
// @Success  201  {object}  domain.Order
// @Failure  400  {object}  ErrorResponse
// @Failure  402  {object}  ErrorResponse "payment failed"
// @Failure  409  {object}  ErrorResponse "seats not held / key in progress"
// @Security BearerAuth
// @Router   /checkout [post]
func handleCheckout(svcs *service.Services, idem IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := identity(c)
		ctx := c.Request.Context()

		var req CheckoutRequest
		if !bindJSON(c, &req) {
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var (
			storageKey string
			claim      redisrepo.Claim
		)
		if idem != nil && idemKey != "" {
			storageKey = redisx.KeyIdem("checkout", strconv.FormatInt(id.UserID, 10), idemKey)

			var err error
			claim, err = idem.Claim(ctx, storageKey, idemLockTTL)
			if err != nil {
				respondErr(c, err)
				return
			}

			switch claim.State {
			case redisrepo.IdemDone:
				replay(c, idemKey, claim.Response)
				return
			case redisrepo.IdemInProgress:
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
				return
			}
		}

		order, err := svcs.Orders.Checkout(ctx, orders.CheckoutRequest{
			HolderID:      holderID(c),
			UserID:        id.UserID,
			EventID:       req.EventID,
			SeatIDs:       req.SeatIDs,
			PaymentMethod: req.PaymentMethod,
		})
		if err != nil {
			// failed checkouts roll back, so the key may be retried
			if claim.Token != "" {
				if err := idem.Abandon(context.WithoutCancel(ctx), storageKey, claim.Token); err != nil {
					c.Error(err)
				}
			}
			respondErr(c, err)
			return
		}

		body, err := json.Marshal(order)
		if err != nil {
			// the order is paid; answer without storing a replay
			c.Error(err)
			c.JSON(http.StatusCreated, order)
			return
		}

		if claim.Token != "" {
			resp := redisrepo.StoredResponse{Status: http.StatusCreated, Body: body}
			if err := idem.Complete(context.WithoutCancel(ctx), storageKey, claim.Token, resp); err != nil {
				c.Error(err)
			}
			c.Header("Idempotency-Key", idemKey)
		}

		c.Data(http.StatusCreated, contentTypeJSON, body)
	}
}

func replay(c *gin.Context, idemKey string, resp redisrepo.StoredResponse) {
	c.Header("Idempotency-Key", idemKey)
	c.Data(resp.Status, contentTypeJSON, resp.Body)
}

// @Summary  Get order
// @Param    id  path  string  true  "Order ID (uuid)"
// @Success  200  {object}  domain.Order
// @Failure  404  {object}  ErrorResponse
// @Security BearerAuth
// @Router   /orders/{id} [get]
func handleGetOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := identity(c)

		orderID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			badRequest(c, "invalid id")
			return
		}

		o, err := svcs.Orders.GetOrder(c.Request.Context(), orderID, id.UserID, id.Role == domain.RoleAdmin)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

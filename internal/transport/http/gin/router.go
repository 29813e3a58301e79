package httpgin

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/kirinyoku/quicktix/internal/domain"
	redisrepo "github.com/kirinyoku/quicktix/internal/repository/redis"
	"github.com/kirinyoku/quicktix/internal/service"
	"github.com/kirinyoku/quicktix/internal/validate"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// IdempotencyStore remembers checkout responses by Idempotency-Key.
type IdempotencyStore interface {
	Claim(ctx context.Context, key string, lockTTL time.Duration) (redisrepo.Claim, error)
	Complete(ctx context.Context, key, token string, resp redisrepo.StoredResponse) error
	Abandon(ctx context.Context, key, token string) error
}

// Options carries the optional collaborators of the router.
type Options struct {
	Tokens TokenParser
	Idem   IdempotencyStore
	Hub    *SeatHub
}

func NewRouter(
	svcs *service.Services,
	opts Options,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		validate.Configure(v)
	}

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20

	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggingMiddleware(logger), CORS(), Authenticate(opts.Tokens))
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Accounts
	for _, role := range []domain.Role{
		domain.RoleCustomer,
		domain.RoleOrganization,
		domain.RoleVenue,
		domain.RoleMarketing,
		domain.RoleArtist,
	} {
		r.POST("/"+string(role)+"-register", handleRegister(svcs, role))
	}
	r.POST("/login", handleLogin(svcs))
	r.POST("/auth/google", handleGoogleSignIn(svcs))
	r.POST("/validate-otp", handleValidateOTP(svcs))
	r.POST("/resend-otp", handleResendOTP(svcs))
	r.POST("/forgot-password", handleForgotPassword(svcs))
	r.POST("/reset-password", handleResetPassword(svcs))

	// Read models
	r.GET("/events", handleListEvents(svcs))
	r.GET("/events/trending", handleTrending(svcs))
	r.GET("/events/upcoming", handleUpcoming(svcs))
	r.GET("/events/:event", handleEventDetails(svcs))
	r.GET("/events/:event/seats", handleEventSeats(svcs))
	r.GET("/events/:event/seats/stream", handleSeatStream(svcs, opts.Hub))
	r.GET("/locations", handleLocations(svcs))
	r.GET("/artists", handleArtists(svcs))

	// Holds: anonymous callers identify with X-Session-ID
	r.GET("/events/:event/holds", handleListHolds(svcs))
	r.POST("/events/:event/holds", handleAcquireHold(svcs))
	r.DELETE("/events/:event/holds", handleReleaseAll(svcs))
	r.DELETE("/events/:event/holds/:seat", handleReleaseHold(svcs))

	r.POST("/inquiries", handleCreateInquiry(svcs))

	authed := r.Group("/", RequireAuth())
	{
		authed.POST("/checkout", handleCheckout(svcs, opts.Idem))
		authed.GET("/orders/:id", handleGetOrder(svcs))

		authed.POST("/events",
			RequireRole(domain.RoleOrganization, domain.RoleVenue, domain.RoleAdmin),
			handleCreateEvent(svcs),
		)

		account := authed.Group("/users/:id")
		account.GET("", selfOrAdmin(), handleUserDetails(svcs))
		account.PUT("/profile", selfOrAdmin(), handleUpdateProfile(svcs))
		account.PUT("/organization-profile", selfOrAdmin(), handleUpdateOrganizationProfile(svcs))
		account.PUT("/security", selfOrAdmin(), handleUpdateSecurity(svcs))
		account.GET("/booking-history", selfOrAdmin(), handleBookingHistory(svcs))
		account.GET("/payment-history", selfOrAdmin(), handlePaymentHistory(svcs))
		account.POST("/follow", handleFollow(svcs))
		account.DELETE("/follow", handleUnfollow(svcs))

		cat := authed.Group("/catalog/:kind")
		cat.GET("", handleListCatalog(svcs))
		cat.POST("", handleCreateCatalog(svcs))
		cat.GET("/:id", handleGetCatalog(svcs))
		cat.PUT("/:id", handleUpdateCatalog(svcs))
		cat.POST("/:id/activate", handleSetCatalogStatus(svcs, true))
		cat.POST("/:id/deactivate", handleSetCatalogStatus(svcs, false))
	}

	adm := r.Group("/admin", RequireRole(domain.RoleAdmin))
	{
		adm.POST("/events/:id/activate", handleSetEventStatus(svcs, true))
		adm.POST("/events/:id/deactivate", handleSetEventStatus(svcs, false))
		adm.POST("/holds/reclaim", handleReclaim(svcs))
	}

	return r
}

// selfOrAdmin restricts /users/:id routes to that user and to admins.
func selfOrAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := identity(c)
		target, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			abort(c, http.StatusBadRequest, "invalid id")
			return
		}
		if id.UserID != target && id.Role != domain.RoleAdmin {
			respondErr(c, errForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

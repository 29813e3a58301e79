package service

import (
	"log/slog"

	"github.com/kirinyoku/quicktix/internal/auth"
	"github.com/kirinyoku/quicktix/internal/clock"
	"github.com/kirinyoku/quicktix/internal/mail"
	"github.com/kirinyoku/quicktix/internal/messaging"
	"github.com/kirinyoku/quicktix/internal/payment"
	redisx "github.com/kirinyoku/quicktix/internal/redis"
	"github.com/kirinyoku/quicktix/internal/repository"
	redisrepo "github.com/kirinyoku/quicktix/internal/repository/redis"
	"github.com/kirinyoku/quicktix/internal/service/admin"
	"github.com/kirinyoku/quicktix/internal/service/catalog"
	"github.com/kirinyoku/quicktix/internal/service/community"
	"github.com/kirinyoku/quicktix/internal/service/events"
	"github.com/kirinyoku/quicktix/internal/service/orders"
	"github.com/kirinyoku/quicktix/internal/service/query"
	"github.com/kirinyoku/quicktix/internal/service/reservation"
	"github.com/kirinyoku/quicktix/internal/service/users"
)

type Services struct {
	Reservation *reservation.Service
	Query       *query.Service
	Admin       *admin.Service
	Orders      *orders.Service
	Events      *events.Service
	Users       *users.Service
	Catalog     *catalog.Service
	Community   *community.Service
}

type Config struct {
	Reservation reservation.Config
	Query       query.Config
	Orders      orders.Config
	Users       users.Config
}

// Deps are the infrastructure handles the services are built from.
// Google, Uploader and Publisher are optional.
type Deps struct {
	Store     repository.Transactor
	Cache     *redisrepo.Cache
	PubSub    *redisx.EventsPubSub
	Limiter   *redisrepo.SlidingWindowLimiter
	OTPs      *redisrepo.OTPStore
	OTPGuards *redisrepo.SlidingWindowLimiter
	Gateway   payment.Gateway
	Publisher *messaging.Publisher
	Mailer    *mail.Mailer
	Tokens    *auth.Tokens
	Google    *auth.GoogleVerifier
	Uploader  events.Uploader
	Clock     clock.Clock
	Logger    *slog.Logger
}

func NewServices(d Deps, cfg Config) *Services {
	var google users.GoogleVerifier
	if d.Google != nil {
		google = d.Google
	}

	var otpGuards users.Limiter
	if d.OTPGuards != nil {
		otpGuards = d.OTPGuards
	}

	var uploader users.Uploader
	if d.Uploader != nil {
		uploader = d.Uploader
	}

	var publisher orders.Publisher
	if d.Publisher != nil {
		publisher = d.Publisher
	}

	reservations := reservation.New(d.Store, d.Cache, d.PubSub, d.Limiter, d.Clock, d.Logger, cfg.Reservation)

	return &Services{
		Reservation: reservations,
		Query:       query.New(d.Store, d.Cache, d.Clock, cfg.Query),
		Admin:       admin.New(d.Store, d.Cache, d.PubSub, reservations, d.Logger),
		Orders:      orders.New(d.Store, d.Gateway, d.Cache, d.PubSub, publisher, d.Clock, d.Logger, cfg.Orders),
		Events:      events.New(d.Store, d.Uploader, d.Cache, d.PubSub, d.Logger),
		Users:       users.New(d.Store, d.OTPs, otpGuards, d.Mailer, d.Tokens, google, uploader, d.Cache, d.Clock, d.Logger, cfg.Users),
		Catalog:     catalog.New(d.Store, d.Logger),
		Community:   community.New(d.Store, d.Logger),
	}
}

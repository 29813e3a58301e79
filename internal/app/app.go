package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/quicktix/internal/auth"
	"github.com/kirinyoku/quicktix/internal/clock"
	"github.com/kirinyoku/quicktix/internal/config"
	"github.com/kirinyoku/quicktix/internal/mail"
	"github.com/kirinyoku/quicktix/internal/messaging"
	"github.com/kirinyoku/quicktix/internal/payment"
	"github.com/kirinyoku/quicktix/internal/postgres"
	redisx "github.com/kirinyoku/quicktix/internal/redis"
	postgresrepo "github.com/kirinyoku/quicktix/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/quicktix/internal/repository/redis"
	"github.com/kirinyoku/quicktix/internal/service"
	"github.com/kirinyoku/quicktix/internal/service/orders"
	"github.com/kirinyoku/quicktix/internal/service/query"
	"github.com/kirinyoku/quicktix/internal/service/reservation"
	"github.com/kirinyoku/quicktix/internal/service/users"
	"github.com/kirinyoku/quicktix/internal/storage"
	httpgin "github.com/kirinyoku/quicktix/internal/transport/http/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	services   *service.Services
	pool       *pgxpool.Pool
	rdb        *redis.Client
	pubsub     *redisx.EventsPubSub
	hub        *httpgin.SeatHub
	publisher  *messaging.Publisher
	consumer   *messaging.Consumer
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx := context.Background()

	pool, err := postgres.New(ctx, postgres.Config{DSN: cfg.Postgres.DSN(), MaxConns: cfg.Postgres.MaxConns})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	rdb, err := redisx.New(ctx, redisx.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	clk := clock.Real()

	// Repositories
	store := postgresrepo.NewStore(pool)
	cache := redisrepo.New(rdb)
	pubsub := redisx.NewEventsPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, "holds", cfg.Limits.Requests, cfg.Limits.Window)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, cfg.Limits.IdempotencyTTL)
	otps := redisrepo.NewOTPStore(rdb, cfg.Auth.OTPTTL, cfg.Auth.OTPMaxAttempts)
	otpLimiter := redisrepo.NewSlidingWindowLimiter(rdb, "otp", cfg.Auth.OTPMaxAttempts, cfg.Auth.OTPTTL)

	// External providers
	var gateway payment.Gateway = payment.Disabled{}
	if cfg.Stripe.SecretKey != "" {
		gateway = payment.NewStripe(cfg.Stripe.SecretKey)
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, only free orders can be checked out")
	}

	var sender mail.Sender = mail.LogSender{Logger: logger}
	if cfg.Mail.APIKey != "" {
		sender = mail.NewMailerSend(cfg.Mail.APIKey, cfg.Mail.From, cfg.Mail.FromName)
	} else {
		logger.Warn("MAILERSEND_API_KEY not set, emails are logged only")
	}
	mailer := mail.NewMailer(sender)

	deps := service.Deps{
		Store:     store,
		Cache:     cache,
		PubSub:    pubsub,
		Limiter:   limiter,
		OTPs:      otps,
		OTPGuards: otpLimiter,
		Gateway:   gateway,
		Publisher: messaging.NewPublisher(cfg.AMQP.URL, logger),
		Mailer:    mailer,
		Tokens:    auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL, clk),
		Clock:     clk,
		Logger:    logger,
	}

	if cfg.Firebase.CredentialsFile != "" {
		fb, err := firebase.NewApp(ctx,
			&firebase.Config{StorageBucket: cfg.Firebase.Bucket},
			option.WithCredentialsFile(cfg.Firebase.CredentialsFile),
		)
		if err != nil {
			pool.Close()
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to initialize firebase: %w", err)
		}

		deps.Google, err = auth.NewGoogleVerifier(ctx, fb)
		if err != nil {
			pool.Close()
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to initialize firebase auth: %w", err)
		}
		deps.Uploader = storage.NewFirebase(fb, cfg.Firebase.Bucket)
	} else {
		logger.Warn("FIREBASE_CREDENTIALS_FILE not set, google sign-in and event images are disabled")
	}

	// Services
	services := service.NewServices(deps, service.Config{
		Reservation: reservation.Config{
			MinHoldTTL:     cfg.Holds.MinTTL,
			MaxHoldTTL:     cfg.Holds.MaxTTL,
			DefaultHoldTTL: cfg.Holds.DefaultTTL,
			MaxAttempts:    cfg.Holds.MaxAttempts,
		},
		Query:  query.Config{},
		Orders: orders.Config{Currency: cfg.Stripe.Currency},
		Users:  users.Config{OTPTTL: cfg.Auth.OTPTTL},
	})

	hub := httpgin.NewSeatHub()

	// Gin router
	router := httpgin.NewRouter(services, httpgin.Options{
		Tokens: deps.Tokens,
		Idem:   idempotencyStore,
		Hub:    hub,
	}, logger)

	return &App{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		services:  services,
		pool:      pool,
		rdb:       rdb,
		pubsub:    pubsub,
		hub:       hub,
		publisher: deps.Publisher,
		consumer:  messaging.NewConsumer(cfg.AMQP.URL, services.Orders.ConfirmationHandler(mailer), logger),
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer a.close()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Live seat map fan-out
	g.Go(func() error {
		err := a.hub.Run(gCtx, a.pubsub.Subscribe)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("seat change subscription: %w", err)
		}
		return nil
	})

	// Order event delivery
	g.Go(func() error {
		return a.publisher.Run(gCtx)
	})

	// Booking confirmation emails
	g.Go(func() error {
		return a.consumer.Run(gCtx)
	})

	// Expired hold sweep
	if a.cfg.Holds.ReclaimInterval > 0 {
		g.Go(func() error {
			a.reclaimLoop(gCtx, a.cfg.Holds.ReclaimInterval)
			return nil
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}

func (a *App) reclaimLoop(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := a.services.Reservation.Reclaim(ctx)
			if err != nil {
				a.logger.Warn("hold reclaim failed", "error", err)
				continue
			}
			if n > 0 {
				a.logger.Debug("expired holds reclaimed", "events", n)
			}
		}
	}
}

func (a *App) close() {
	if err := a.publisher.Close(); err != nil {
		a.logger.Warn("closing amqp publisher", "error", err)
	}
	if err := a.rdb.Close(); err != nil {
		a.logger.Warn("closing redis", "error", err)
	}
	a.pool.Close()
}

package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/kirinyoku/quicktix/internal/clock"
	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/messaging"
	"github.com/kirinyoku/quicktix/internal/payment"
	"github.com/kirinyoku/quicktix/internal/repository"
	"github.com/kirinyoku/quicktix/internal/uow"
)

type Config struct {
	Currency string
}

type Cache interface {
	InvalidateEvent(ctx context.Context, eventID int64, slug string) error
}

type Notifier interface {
	PublishSeatsChanged(ctx context.Context, eventID int64) error
}

type Publisher interface {
	PublishOrderConfirmed(ctx context.Context, msg messaging.OrderConfirmed) error
}

// Service is the checkout coordinator and the order read side.
type Service struct {
	store     repository.Transactor
	uow       *uow.UoW
	gateway   payment.Gateway
	cache     Cache
	notifier  Notifier
	publisher Publisher
	clock     clock.Clock
	logger    *slog.Logger
	cfg       Config
}

func New(
	store repository.Transactor,
	gateway payment.Gateway,
	cache Cache,
	notifier Notifier,
	publisher Publisher,
	clk clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}

	if gateway == nil {
		gateway = payment.Disabled{}
	}

	if clk == nil {
		clk = clock.Real()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:     store,
		uow:       uow.NewUoW(store),
		gateway:   gateway,
		cache:     cache,
		notifier:  notifier,
		publisher: publisher,
		clock:     clk,
		logger:    logger,
		cfg:       cfg,
	}
}

type CheckoutRequest struct {
	// HolderID owns the holds being converted.
	HolderID string
	// UserID is the buyer the order is recorded for.
	UserID        int64
	EventID       int64
	SeatIDs       []string
	PaymentMethod string
}

// Checkout converts the caller's holds into a paid order.
//
// The precondition check, the held to sold transitions, the order insert and
// the payment run in one transaction. Any failure rolls every step back, so
// seats the caller held stay held and no order is left behind. A charge that
// settled before the failure is refunded.
//
// Returns:
//   - domain.Order: the paid order.
//   - error: orders.ErrEventNotFound / orders.ErrEventInactive.
//   - error: orders.ErrSeatNotHeld (a *SeatsNotHeldError naming the seats)
//     if any seat is not actively held by the caller.
//   - error: orders.ErrUnpricedSeat if the event has no price for a seat.
//   - error: orders.ErrCheckoutConflict if a seat changed underneath.
//   - error: orders.ErrPaymentFailed if the charge was not accepted.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (domain.Order, error) {
	const op = "service.orders.Checkout"

	seatIDs := dedupe(req.SeatIDs)

	ve := &domain.ValidationError{}
	if len(seatIDs) == 0 {
		ve.Add("seat_ids", "must not be empty")
	}
	if req.HolderID == "" {
		ve.Add("holder_id", "is required")
	}
	if req.UserID <= 0 {
		ve.Add("user_id", "is required")
	}
	if err := ve.Err(); err != nil {
		return domain.Order{}, fmt.Errorf("%s:%w", op, err)
	}

	orderID := uuid.New()

	var (
		order   domain.Order
		settled string
	)

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Repos,
		after func(uow.AfterCommit),
	) error {
		ev, err := tx.Events().Get(ctx, req.EventID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrEventNotFound
			}
			return err
		}

		if !ev.IsActive() {
			return ErrEventInactive
		}

		seats, err := s.heldSeats(ctx, tx, req.EventID, seatIDs, req.HolderID)
		if err != nil {
			return err
		}

		var total int64
		for _, seat := range seats {
			price, ok := ev.PriceFor(seat.TicketTypeID)
			if !ok {
				return fmt.Errorf("%w: %s", ErrUnpricedSeat, seat.ID)
			}
			total += price
		}

		if total > 0 && req.PaymentMethod == "" {
			return domain.Invalid("payment_method", "is required")
		}

		for _, seat := range seats {
			_, err := tx.Seats().CompareAndSwap(ctx, req.EventID, seat.ID, seat.Version, domain.Sold())
			if err != nil {
				if errors.Is(err, repository.ErrStaleState) {
					return ErrCheckoutConflict
				}
				return err
			}
		}

		order = domain.Order{
			ID:            orderID,
			UserID:        req.UserID,
			EventID:       req.EventID,
			SeatIDs:       seatIDs,
			TotalCents:    total,
			Currency:      s.cfg.Currency,
			PaymentStatus: domain.PaymentPending,
		}

		if err := tx.Orders().Create(ctx, &order); err != nil {
			return err
		}

		ref, err := s.charge(ctx, order, req.PaymentMethod)
		if err != nil {
			return err
		}
		if order.TotalCents > 0 {
			settled = ref
		}

		if err := tx.Orders().SetPaymentStatus(ctx, order.ID, domain.PaymentPaid, ref); err != nil {
			return err
		}

		order.PaymentStatus = domain.PaymentPaid
		order.PaymentRef = ref

		after(func(ctx context.Context) {
			s.confirmed(ctx, ev, order)
		})

		return nil
	})
	if err != nil {
		if settled != "" {
			s.refund(context.WithoutCancel(ctx), orderID, settled, err)
		}
		return domain.Order{}, fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("order paid",
		"order_id", order.ID,
		"event_id", order.EventID,
		"seats", len(order.SeatIDs),
		"total_cents", order.TotalCents,
	)

	return order, nil
}

// heldSeats loads every requested seat and checks that holderID holds it.
// All failing seats are reported together.
func (s *Service) heldSeats(
	ctx context.Context,
	tx repository.Repos,
	eventID int64,
	seatIDs []string,
	holderID string,
) ([]domain.Seat, error) {
	now := s.clock.Now()

	seats := make([]domain.Seat, 0, len(seatIDs))
	var missing []string

	for _, id := range seatIDs {
		seat, err := tx.Seats().GetSeat(ctx, eventID, id)
		if errors.Is(err, repository.ErrNotFound) {
			missing = append(missing, id)
			continue
		}
		if err != nil {
			return nil, err
		}

		if !seat.HeldBy(holderID, now) {
			missing = append(missing, id)
			continue
		}

		seats = append(seats, seat)
	}

	if len(missing) > 0 {
		return nil, &SeatsNotHeldError{SeatIDs: missing}
	}

	return seats, nil
}

func (s *Service) charge(ctx context.Context, order domain.Order, method string) (string, error) {
	if order.TotalCents == 0 {
		return "free", nil
	}

	receipt, err := s.gateway.Charge(ctx, payment.Charge{
		OrderID:       order.ID,
		UserID:        order.UserID,
		EventID:       order.EventID,
		AmountCents:   order.TotalCents,
		Currency:      order.Currency,
		PaymentMethod: method,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}

	return receipt.Ref, nil
}

// refund reverses a charge whose order did not commit. A failed refund leaves
// money taken for seats that were never sold, so it is logged at error level
// with everything needed to settle it by hand.
func (s *Service) refund(ctx context.Context, orderID uuid.UUID, ref string, cause error) {
	if err := s.gateway.Refund(ctx, orderID, ref); err != nil {
		s.logger.Error("refund after failed checkout failed",
			"order_id", orderID,
			"payment_ref", ref,
			"cause", cause,
			"error", err,
		)
		return
	}

	s.logger.Warn("checkout failed after charge, refunded",
		"order_id", orderID,
		"payment_ref", ref,
		"cause", cause,
	)
}

// confirmed runs once the order is committed. Every step is best effort.
func (s *Service) confirmed(ctx context.Context, ev domain.Event, order domain.Order) {
	if s.cache != nil {
		if err := s.cache.InvalidateEvent(ctx, ev.ID, ev.Slug); err != nil {
			s.logger.Warn("event cache invalidation failed", "event_id", ev.ID, "error", err)
		}
	}

	if s.notifier != nil {
		if err := s.notifier.PublishSeatsChanged(ctx, ev.ID); err != nil {
			s.logger.Warn("seat change publish failed", "event_id", ev.ID, "error", err)
		}
	}

	if s.publisher != nil {
		err := s.publisher.PublishOrderConfirmed(ctx, messaging.OrderConfirmed{
			OrderID:     order.ID,
			UserID:      order.UserID,
			EventID:     ev.ID,
			EventName:   ev.Name,
			SeatIDs:     order.SeatIDs,
			TotalCents:  order.TotalCents,
			Currency:    order.Currency,
			ConfirmedAt: s.clock.Now(),
		})
		if err != nil {
			s.logger.Warn("order confirmation publish failed", "order_id", order.ID, "error", err)
		}
	}
}

// GetOrder returns an order to its buyer or to an admin. Other callers get
// ErrOrderNotFound, so order ids of other users are not disclosed.
func (s *Service) GetOrder(ctx context.Context, orderID uuid.UUID, callerID int64, admin bool) (domain.Order, error) {
	const op = "service.orders.GetOrder"

	o, err := s.store.Orders().Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Order{}, fmt.Errorf("%s:%w", op, ErrOrderNotFound)
		}
		return domain.Order{}, fmt.Errorf("%s:%w", op, err)
	}

	if !admin && o.UserID != callerID {
		return domain.Order{}, fmt.Errorf("%s:%w", op, ErrOrderNotFound)
	}

	return o, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

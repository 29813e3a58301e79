package orders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/quicktix/internal/clock"
	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/mail"
	"github.com/kirinyoku/quicktix/internal/messaging"
	"github.com/kirinyoku/quicktix/internal/payment"
	"github.com/kirinyoku/quicktix/internal/repository"
	"github.com/kirinyoku/quicktix/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

type gatewayStub struct {
	mu        sync.Mutex
	charges   []payment.Charge
	refunds   []refundCall
	err       error
	refundErr error
}

type refundCall struct {
	orderID uuid.UUID
	ref     string
}

func (g *gatewayStub) Refund(_ context.Context, orderID uuid.UUID, ref string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, refundCall{orderID: orderID, ref: ref})
	return g.refundErr
}

func (g *gatewayStub) Charge(_ context.Context, c payment.Charge) (payment.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges = append(g.charges, c)
	if g.err != nil {
		return payment.Receipt{}, g.err
	}
	return payment.Receipt{Ref: "pi_" + c.OrderID.String()[:8]}, nil
}

type publisherMock struct {
	mock.Mock
}

func (m *publisherMock) PublishOrderConfirmed(ctx context.Context, msg messaging.OrderConfirmed) error {
	return m.Called(ctx, msg).Error(0)
}

type cacheSpy struct {
	events []int64
	slugs  []string
}

func (c *cacheSpy) InvalidateEvent(_ context.Context, eventID int64, slug string) error {
	c.events = append(c.events, eventID)
	c.slugs = append(c.slugs, slug)
	return nil
}

type fixture struct {
	svc       *Service
	store     *memory.Store
	clock     *clock.FakeClock
	gateway   *gatewayStub
	publisher *publisherMock
	cache     *cacheSpy
	userID    int64
	eventID   int64
	vipID     int64
}

const holder = "sess-1"

func newFixture(t *testing.T, prices map[string]int64) *fixture {
	t.Helper()

	ctx := context.Background()
	store := memory.New()

	userID, err := store.Users().Create(ctx, &domain.User{
		Email: "buyer@example.com", Role: domain.RoleCustomer, IsVerified: true,
	})
	require.NoError(t, err)

	vipID, err := store.Catalog().Create(ctx, &domain.CatalogItem{
		Kind: domain.KindTicketType, UserID: userID, Name: "VIP",
	})
	require.NoError(t, err)

	const looseTypeID = 9999

	eventID, err := store.Events().Create(ctx, &domain.Event{
		Name:   "Rock Night",
		Slug:   "rock-night",
		Status: domain.EventActive,
		TicketDetails: []domain.TicketLine{
			{TicketTypeID: vipID, PriceCents: prices["vip"], Quantity: 2},
			{TicketTypeID: looseTypeID, PriceCents: prices["loose"], Quantity: 1},
		},
	})
	require.NoError(t, err)

	require.NoError(t, store.Seats().InitSeats(ctx, eventID, []domain.SeatSpec{
		{ID: "A", TicketTypeID: vipID},
		{ID: "B", TicketTypeID: vipID},
		{ID: "C", TicketTypeID: looseTypeID},
	}))

	gw := &gatewayStub{}
	pub := &publisherMock{}
	cache := &cacheSpy{}
	clk := clock.Fake(t0)

	svc := New(store, gw, cache, nil, pub, clk,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config{Currency: "usd"},
	)

	return &fixture{
		svc: svc, store: store, clock: clk, gateway: gw, publisher: pub, cache: cache,
		userID: userID, eventID: eventID, vipID: vipID,
	}
}

func (f *fixture) hold(t *testing.T, seatID string, ttl time.Duration) {
	t.Helper()

	ctx := context.Background()
	seat, err := f.store.Seats().GetSeat(ctx, f.eventID, seatID)
	require.NoError(t, err)
	_, err = f.store.Seats().CompareAndSwap(ctx, f.eventID, seatID, seat.Version,
		domain.HeldState(holder, f.clock.Now().Add(ttl)))
	require.NoError(t, err)
}

func (f *fixture) request(seats ...string) CheckoutRequest {
	return CheckoutRequest{
		HolderID:      holder,
		UserID:        f.userID,
		EventID:       f.eventID,
		SeatIDs:       seats,
		PaymentMethod: "pm_card_visa",
	}
}

func TestCheckoutSuccess(t *testing.T) {
	f := newFixture(t, map[string]int64{"vip": 2500, "loose": 1000})
	ctx := context.Background()

	f.hold(t, "A", 5*time.Minute)
	f.hold(t, "B", 5*time.Minute)
	f.publisher.On("PublishOrderConfirmed", mock.Anything, mock.MatchedBy(func(m messaging.OrderConfirmed) bool {
		return m.EventName == "Rock Night" && m.TotalCents == 5000 && len(m.SeatIDs) == 2
	})).Return(nil).Once()

	order, err := f.svc.Checkout(ctx, f.request("A", "B", "A"))
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, int64(5000), order.TotalCents)
	assert.Equal(t, []string{"A", "B"}, order.SeatIDs)
	assert.NotEmpty(t, order.PaymentRef)

	require.Len(t, f.gateway.charges, 1)
	assert.Equal(t, order.ID, f.gateway.charges[0].OrderID)
	assert.Equal(t, int64(5000), f.gateway.charges[0].AmountCents)

	for _, id := range []string{"A", "B"} {
		seat, err := f.store.Seats().GetSeat(ctx, f.eventID, id)
		require.NoError(t, err)
		assert.Equal(t, domain.SeatSold, seat.Status)
		assert.Empty(t, seat.HolderID)
	}

	stored, err := f.store.Orders().Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, stored.PaymentStatus)

	assert.Equal(t, []string{"rock-night"}, f.cache.slugs)
	f.publisher.AssertExpectations(t)
}

func TestCheckoutAllOrNothingOnExpiredSeat(t *testing.T) {
	f := newFixture(t, map[string]int64{"vip": 2500, "loose": 1000})
	ctx := context.Background()

	f.hold(t, "A", 5*time.Minute)
	f.hold(t, "B", 5*time.Minute)
	f.hold(t, "C", time.Minute)

	f.clock.Advance(2 * time.Minute)

	_, err := f.svc.Checkout(ctx, f.request("A", "B", "C"))
	require.ErrorIs(t, err, ErrSeatNotHeld)

	var notHeld *SeatsNotHeldError
	require.ErrorAs(t, err, &notHeld)
	assert.Equal(t, []string{"C"}, notHeld.SeatIDs)

	for _, id := range []string{"A", "B"} {
		seat, err := f.store.Seats().GetSeat(ctx, f.eventID, id)
		require.NoError(t, err)
		assert.True(t, seat.HeldBy(holder, f.clock.Now()), id)
	}

	orders, err := f.svc.PaymentHistory(ctx, f.userID)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Empty(t, f.gateway.charges)
	f.publisher.AssertNotCalled(t, "PublishOrderConfirmed", mock.Anything, mock.Anything)
}

func TestCheckoutPaymentFailureRollsBack(t *testing.T) {
	f := newFixture(t, map[string]int64{"vip": 2500})
	ctx := context.Background()

	f.hold(t, "A", 5*time.Minute)
	f.hold(t, "B", 5*time.Minute)
	f.gateway.err = errors.New("card declined")

	_, err := f.svc.Checkout(ctx, f.request("A", "B"))
	require.ErrorIs(t, err, ErrPaymentFailed)
	assert.ErrorContains(t, err, "card declined")

	for _, id := range []string{"A", "B"} {
		seat, err := f.store.Seats().GetSeat(ctx, f.eventID, id)
		require.NoError(t, err)
		assert.Equal(t, domain.SeatHeld, seat.Status)
		assert.Equal(t, int64(1), seat.Version)
	}

	orders, err := f.svc.PaymentHistory(ctx, f.userID)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Empty(t, f.cache.events)
}

// lostPaymentStatus fails every payment status write, the way a dropped
// connection would after the provider has already charged.
type lostPaymentStatus struct {
	repository.Transactor
}

func (l lostPaymentStatus) RunTx(ctx context.Context, fn func(ctx context.Context, tx repository.Repos) error) error {
	return l.Transactor.RunTx(ctx, func(ctx context.Context, tx repository.Repos) error {
		return fn(ctx, lostPaymentStatusRepos{Repos: tx})
	})
}

type lostPaymentStatusRepos struct {
	repository.Repos
}

func (r lostPaymentStatusRepos) Orders() repository.OrderRepository {
	return lostPaymentStatusOrders{OrderRepository: r.Repos.Orders()}
}

type lostPaymentStatusOrders struct {
	repository.OrderRepository
}

func (lostPaymentStatusOrders) SetPaymentStatus(context.Context, uuid.UUID, domain.PaymentStatus, string) error {
	return errors.New("connection reset")
}

func TestCheckoutRefundsWhenCommitFailsAfterCharge(t *testing.T) {
	f := newFixture(t, map[string]int64{"vip": 2500})
	ctx := context.Background()

	f.hold(t, "A", 5*time.Minute)

	svc := New(lostPaymentStatus{Transactor: f.store}, f.gateway, f.cache, nil, f.publisher, f.clock,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config{Currency: "usd"},
	)

	_, err := svc.Checkout(ctx, f.request("A"))
	require.ErrorContains(t, err, "connection reset")

	require.Len(t, f.gateway.charges, 1)
	require.Len(t, f.gateway.refunds, 1)
	assert.Equal(t, f.gateway.charges[0].OrderID, f.gateway.refunds[0].orderID)
	assert.Equal(t, "pi_"+f.gateway.charges[0].OrderID.String()[:8], f.gateway.refunds[0].ref)

	seat, err := f.store.Seats().GetSeat(ctx, f.eventID, "A")
	require.NoError(t, err)
	assert.Equal(t, domain.SeatHeld, seat.Status)

	orders, err := f.svc.PaymentHistory(ctx, f.userID)
	require.NoError(t, err)
	assert.Empty(t, orders)
	f.publisher.AssertNotCalled(t, "PublishOrderConfirmed", mock.Anything, mock.Anything)
}

func TestCheckoutRefundFailureStillReportsCheckoutError(t *testing.T) {
	f := newFixture(t, map[string]int64{"vip": 2500})
	ctx := context.Background()

	f.hold(t, "A", 5*time.Minute)
	f.gateway.refundErr = errors.New("provider unavailable")

	svc := New(lostPaymentStatus{Transactor: f.store}, f.gateway, f.cache, nil, f.publisher, f.clock,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config{Currency: "usd"},
	)

	_, err := svc.Checkout(ctx, f.request("A"))
	require.ErrorContains(t, err, "connection reset")
	assert.Len(t, f.gateway.refunds, 1)
}

func TestCheckoutDeclineIsNotRefunded(t *testing.T) {
	f := newFixture(t, map[string]int64{"vip": 2500})

	f.hold(t, "A", 5*time.Minute)
	f.gateway.err = errors.New("card declined")

	_, err := f.svc.Checkout(context.Background(), f.request("A"))
	require.ErrorIs(t, err, ErrPaymentFailed)
	assert.Empty(t, f.gateway.refunds)
}

func TestCheckoutFreeSeatsSkipPayment(t *testing.T) {
	f := newFixture(t, map[string]int64{"vip": 0})
	f.publisher.On("PublishOrderConfirmed", mock.Anything, mock.Anything).Return(nil)

	f.hold(t, "A", time.Minute)

	req := f.request("A")
	req.PaymentMethod = ""

	order, err := f.svc.Checkout(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "free", order.PaymentRef)
	assert.Empty(t, f.gateway.charges)
}

func TestCheckoutRequiresPaymentMethod(t *testing.T) {
	f := newFixture(t, map[string]int64{"vip": 2500})
	f.hold(t, "A", time.Minute)

	req := f.request("A")
	req.PaymentMethod = ""

	_, err := f.svc.Checkout(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCheckoutValidation(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Checkout(context.Background(), f.request())
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Checkout(context.Background(), f.request(" ", ""))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCheckoutRejectsOtherHolderAndUnknownSeat(t *testing.T) {
	f := newFixture(t, map[string]int64{"vip": 2500})
	f.hold(t, "A", time.Minute)

	req := f.request("A", "Z")
	req.HolderID = "someone-else"

	_, err := f.svc.Checkout(context.Background(), req)

	var notHeld *SeatsNotHeldError
	require.ErrorAs(t, err, &notHeld)
	assert.Equal(t, []string{"A", "Z"}, notHeld.SeatIDs)
}

func TestCheckoutInactiveEvent(t *testing.T) {
	f := newFixture(t, map[string]int64{"vip": 2500})
	f.hold(t, "A", time.Minute)
	require.NoError(t, f.store.Events().SetStatus(context.Background(), f.eventID, domain.EventInactive))

	_, err := f.svc.Checkout(context.Background(), f.request("A"))
	assert.ErrorIs(t, err, ErrEventInactive)

	req := f.request("A")
	req.EventID = 12345
	_, err = f.svc.Checkout(context.Background(), req)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestCheckoutUnpricedSeat(t *testing.T) {
	f := newFixture(t, map[string]int64{"vip": 2500})
	ctx := context.Background()

	ev, err := f.store.Events().Get(ctx, f.eventID)
	require.NoError(t, err)

	// a second event reusing the seat map shape without any price lines
	id, err := f.store.Events().Create(ctx, &domain.Event{Name: ev.Name, Slug: "rock-night-1", Status: domain.EventActive})
	require.NoError(t, err)
	require.NoError(t, f.store.Seats().InitSeats(ctx, id, []domain.SeatSpec{{ID: "A", TicketTypeID: f.vipID}}))
	_, err = f.store.Seats().CompareAndSwap(ctx, id, "A", 0, domain.HeldState(holder, t0.Add(time.Minute)))
	require.NoError(t, err)

	req := f.request("A")
	req.EventID = id
	_, err = f.svc.Checkout(ctx, req)
	assert.ErrorIs(t, err, ErrUnpricedSeat)
}

func TestGetOrderVisibility(t *testing.T) {
	f := newFixture(t, map[string]int64{"vip": 2500})
	f.publisher.On("PublishOrderConfirmed", mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	f.hold(t, "A", time.Minute)
	order, err := f.svc.Checkout(ctx, f.request("A"))
	require.NoError(t, err)

	got, err := f.svc.GetOrder(ctx, order.ID, f.userID, false)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = f.svc.GetOrder(ctx, order.ID, f.userID+1, false)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = f.svc.GetOrder(ctx, order.ID, f.userID+1, true)
	assert.NoError(t, err)
}

func TestBookingHistory(t *testing.T) {
	f := newFixture(t, map[string]int64{"vip": 2500, "loose": 1000})
	f.publisher.On("PublishOrderConfirmed", mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	for _, id := range []string{"A", "B", "C"} {
		f.hold(t, id, time.Minute)
	}
	order, err := f.svc.Checkout(ctx, f.request("A", "B", "C"))
	require.NoError(t, err)

	history, err := f.svc.BookingHistory(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, history, 1)

	assert.Equal(t, order.ID, history[0].OrderID)
	assert.Equal(t, "Rock Night", history[0].EventName)
	assert.Equal(t, []domain.TicketCount{
		{Type: "Unknown", Count: 1},
		{Type: "VIP", Count: 2},
	}, history[0].Tickets)
}

type bookingMailerMock struct {
	mock.Mock
}

func (m *bookingMailerMock) SendBookingConfirmation(ctx context.Context, to string, b mail.Booking) error {
	return m.Called(ctx, to, b).Error(0)
}

func TestConfirmationHandlerMailsBuyer(t *testing.T) {
	f := newFixture(t, nil)

	mailer := &bookingMailerMock{}
	mailer.On("SendBookingConfirmation", mock.Anything, "buyer@example.com", mock.MatchedBy(func(b mail.Booking) bool {
		return b.EventName == "Rock Night" && b.TotalCents == 2500
	})).Return(nil)

	handler := f.svc.ConfirmationHandler(mailer)
	err := handler(context.Background(), messaging.OrderConfirmed{
		UserID:     f.userID,
		EventName:  "Rock Night",
		SeatIDs:    []string{"A"},
		TotalCents: 2500,
		Currency:   "usd",
	})
	require.NoError(t, err)
	mailer.AssertExpectations(t)
}

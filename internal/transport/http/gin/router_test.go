package httpgin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/quicktix/internal/auth"
	"github.com/kirinyoku/quicktix/internal/clock"
	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/mail"
	"github.com/kirinyoku/quicktix/internal/payment"
	"github.com/kirinyoku/quicktix/internal/repository/memory"
	redisrepo "github.com/kirinyoku/quicktix/internal/repository/redis"
	"github.com/kirinyoku/quicktix/internal/service"
	"github.com/kirinyoku/quicktix/internal/service/admin"
	"github.com/kirinyoku/quicktix/internal/service/catalog"
	"github.com/kirinyoku/quicktix/internal/service/community"
	"github.com/kirinyoku/quicktix/internal/service/events"
	"github.com/kirinyoku/quicktix/internal/service/orders"
	"github.com/kirinyoku/quicktix/internal/service/query"
	"github.com/kirinyoku/quicktix/internal/service/reservation"
	"github.com/kirinyoku/quicktix/internal/service/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type otpMap struct {
	mu    sync.Mutex
	codes map[string]string
}

func (o *otpMap) Save(_ context.Context, purpose, email, code string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.codes[purpose+":"+email] = code
	return nil
}

func (o *otpMap) Consume(_ context.Context, purpose, email, code string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.codes[purpose+":"+email] == code {
		delete(o.codes, purpose+":"+email)
		return true, nil
	}
	return false, nil
}

type idemMap struct {
	mu      sync.Mutex
	locks   map[string]string
	results map[string]redisrepo.StoredResponse
	n       int
}

func newIdemMap() *idemMap {
	return &idemMap{locks: map[string]string{}, results: map[string]redisrepo.StoredResponse{}}
}

func (m *idemMap) Claim(_ context.Context, key string, _ time.Duration) (redisrepo.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.results[key]; ok {
		return redisrepo.Claim{State: redisrepo.IdemDone, Response: r}, nil
	}
	if _, ok := m.locks[key]; ok {
		return redisrepo.Claim{State: redisrepo.IdemInProgress}, nil
	}
	m.n++
	tok := "t" + strconv.Itoa(m.n)
	m.locks[key] = tok
	return redisrepo.Claim{State: redisrepo.IdemClaimed, Token: tok}, nil
}

func (m *idemMap) Complete(_ context.Context, key, token string, resp redisrepo.StoredResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[key] == token {
		delete(m.locks, key)
		m.results[key] = resp
	}
	return nil
}

func (m *idemMap) Abandon(_ context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[key] == token {
		delete(m.locks, key)
	}
	return nil
}

type approveAll struct{ charges int }

func (g *approveAll) Charge(_ context.Context, c payment.Charge) (payment.Receipt, error) {
	g.charges++
	return payment.Receipt{Ref: "pi_" + c.OrderID.String()[:8]}, nil
}

func (g *approveAll) Refund(context.Context, uuid.UUID, string) error {
	return nil
}

type outbox struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (o *outbox) Send(_ context.Context, msg mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

type bucketStub struct {
	mu    sync.Mutex
	paths []string
}

func (b *bucketStub) Upload(_ context.Context, dir, filename, _ string, r io.Reader) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paths = append(b.paths, dir+"/"+filename)
	return "https://cdn.example.com/" + dir + "/" + filename, nil
}

type testServer struct {
	t       *testing.T
	router  *gin.Engine
	store   *memory.Store
	tokens  *auth.Tokens
	otps    *otpMap
	gateway *approveAll
	bucket  *bucketStub
	svcs    *service.Services
	eventID int64
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clk := clock.Fake(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ts := &testServer{
		t:       t,
		store:   store,
		tokens:  auth.NewTokens("router-secret", time.Hour, clk),
		otps:    &otpMap{codes: map[string]string{}},
		gateway: &approveAll{},
		bucket:  &bucketStub{},
	}

	resv := reservation.New(store, nil, nil, nil, clk, logger, reservation.Config{})
	svcs := &service.Services{
		Reservation: resv,
		Query:       query.New(store, nil, clk, query.Config{}),
		Admin:       admin.New(store, nil, nil, resv, logger),
		Orders:      orders.New(store, ts.gateway, nil, nil, nil, clk, logger, orders.Config{Currency: "usd"}),
		Events:      events.New(store, nil, nil, nil, logger),
		Users: users.New(store, ts.otps, nil, mail.NewMailer(&outbox{}), ts.tokens, nil, ts.bucket, nil, clk, logger,
			users.Config{OTPTTL: 10 * time.Minute}),
		Catalog:   catalog.New(store, logger),
		Community: community.New(store, logger),
	}

	ts.svcs = svcs
	ts.router = NewRouter(svcs, Options{
		Tokens: ts.tokens,
		Idem:   newIdemMap(),
		Hub:    NewSeatHub(),
	}, logger)

	starts := clk.Now().Add(72 * time.Hour)
	ev := domain.Event{
		UserID:        1,
		Type:          domain.EventConcert,
		Name:          "Rock Night",
		Slug:          "rock-night",
		StartsAt:      &starts,
		TicketDetails: []domain.TicketLine{{TicketTypeID: 1, PriceCents: 2500, Quantity: 3}},
	}
	id, err := store.Events().Create(context.Background(), &ev)
	require.NoError(t, err)
	require.NoError(t, store.Seats().InitSeats(context.Background(), id, []domain.SeatSpec{
		{ID: "A1", TicketTypeID: 1},
		{ID: "A2", TicketTypeID: 1},
		{ID: "A3", TicketTypeID: 1},
	}))
	ts.eventID = id

	return ts
}

func (ts *testServer) user(email string, role domain.Role) (int64, string) {
	ts.t.Helper()

	u := domain.User{Email: email, Role: role, IsVerified: true}
	id, err := ts.store.Users().Create(context.Background(), &u)
	require.NoError(ts.t, err)

	tok, _, err := ts.tokens.Issue(id, role)
	require.NoError(ts.t, err)

	return id, tok
}

func (ts *testServer) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	ts.t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(ts.t, err)
		r = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) holdsPath() string {
	return "/events/" + strconv.FormatInt(ts.eventID, 10) + "/holds"
}

func bearer(tok string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + tok}
}

func session(id string) map[string]string {
	return map[string]string{headerSessionID: id}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHoldLifecycle(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, ts.holdsPath(), AcquireHoldRequest{SeatID: "A1"}, session("s1"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	hold := decode[domain.Hold](t, w)
	assert.Equal(t, "A1", hold.SeatID)

	w = ts.do(http.MethodPost, ts.holdsPath(), AcquireHoldRequest{SeatID: "A1"}, session("s2"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, reservation.ErrSeatHeld.Error(), decode[ErrorResponse](t, w).Error)

	w = ts.do(http.MethodPost, ts.holdsPath(), AcquireHoldRequest{SeatID: "A1"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPost, ts.holdsPath(), AcquireHoldRequest{SeatID: "Z9"}, session("s1"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(http.MethodGet, ts.holdsPath(), nil, session("s1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.Hold](t, w), 1)

	for i := 0; i < 2; i++ {
		w = ts.do(http.MethodDelete, ts.holdsPath()+"/A1", nil, session("s1"))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}

	w = ts.do(http.MethodPost, ts.holdsPath(), AcquireHoldRequest{SeatID: "A1"}, session("s2"))
	assert.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(http.MethodDelete, ts.holdsPath(), nil, session("s2"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[ReleaseAllResponse](t, w).Released)
}

func TestCheckoutFlow(t *testing.T) {
	ts := newTestServer(t)
	buyerID, tok := ts.user("buyer@example.com", domain.RoleCustomer)
	_, otherTok := ts.user("other@example.com", domain.RoleCustomer)

	for _, seat := range []string{"A1", "A2"} {
		w := ts.do(http.MethodPost, ts.holdsPath(), AcquireHoldRequest{SeatID: seat}, bearer(tok))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	req := CheckoutRequest{EventID: ts.eventID, SeatIDs: []string{"A1", "A2"}, PaymentMethod: "pm_card_visa"}

	w := ts.do(http.MethodPost, "/checkout", req, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodPost, "/checkout", CheckoutRequest{EventID: ts.eventID, SeatIDs: []string{"A3"}, PaymentMethod: "pm"}, bearer(tok))
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, []string{"A3"}, decode[ErrorResponse](t, w).SeatIDs)

	headers := bearer(tok)
	headers["Idempotency-Key"] = "k-1"

	w = ts.do(http.MethodPost, "/checkout", req, headers)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode[domain.Order](t, w)
	assert.Equal(t, buyerID, order.UserID)
	assert.Equal(t, int64(5000), order.TotalCents)
	assert.Equal(t, domain.PaymentPaid, order.PaymentStatus)

	// a retry with the same key replays the first response
	w = ts.do(http.MethodPost, "/checkout", req, headers)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, order.ID, decode[domain.Order](t, w).ID)
	assert.Equal(t, 1, ts.gateway.charges)

	w = ts.do(http.MethodGet, "/orders/"+order.ID.String(), nil, bearer(tok))
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodGet, "/orders/"+order.ID.String(), nil, bearer(otherTok))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(http.MethodGet, "/events/rock-night/seats", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	m := decode[query.SeatMap](t, w)
	assert.Equal(t, int64(2), m.Counts.Sold)
	for _, s := range m.Seats {
		assert.Empty(t, s.HolderID)
	}
}

func TestEventDetailsETag(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/events/rock-night", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	tag := w.Header().Get("ETag")
	require.NotEmpty(t, tag)
	assert.Equal(t, cacheDetails, w.Header().Get("Cache-Control"))

	w = ts.do(http.MethodGet, "/events/rock-night", nil, map[string]string{"If-None-Match": tag})
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.Bytes())

	w = ts.do(http.MethodGet, "/events/no-such-event", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListEventsRejectsBadFilter(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/events?from=yesterday&min_price=-1", nil, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := decode[ErrorResponse](t, w).Fields
	assert.Contains(t, fields, "from")
	assert.Contains(t, fields, "min_price")

	w = ts.do(http.MethodGet, "/events?max_price=3000", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]query.EventView](t, w), 1)
}

func TestAccountFlow(t *testing.T) {
	ts := newTestServer(t)

	reg := map[string]any{
		"email":    "ann@example.com",
		"password": "secret123",
		"profile":  map[string]any{"first_name": "Ann", "last_name": "Lee", "contact_number": "0771234567"},
	}
	w := ts.do(http.MethodPost, "/customer-register", reg, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	u := decode[domain.User](t, w)
	assert.Equal(t, domain.RoleCustomer, u.Role)

	w = ts.do(http.MethodPost, "/customer-register", reg, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(http.MethodPost, "/login", LoginRequest{Email: "ann@example.com", Password: "secret123"}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	code := ts.otps.codes["register:ann@example.com"]
	w = ts.do(http.MethodPost, "/validate-otp", ValidateOTPRequest{Email: "ann@example.com", OTP: code, OTPType: "register"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(http.MethodPost, "/login", LoginRequest{Email: "ann@example.com", Password: "secret123"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sess := decode[users.Session](t, w)

	path := "/users/" + strconv.FormatInt(u.ID, 10)
	w = ts.do(http.MethodGet, path, nil, bearer(sess.Token))
	assert.Equal(t, http.StatusOK, w.Code)

	_, otherTok := ts.user("other@example.com", domain.RoleCustomer)
	w = ts.do(http.MethodGet, path, nil, bearer(otherTok))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(http.MethodGet, path+"/booking-history", nil, bearer(sess.Token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func organizationForm(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, contentType := range files {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+field+`.bin"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte("bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func TestOrganizationProfileUpload(t *testing.T) {
	ts := newTestServer(t)
	id, tok := ts.user("org@example.com", domain.RoleOrganization)
	path := "/users/" + strconv.FormatInt(id, 10) + "/organization-profile"

	send := func(tok string, fields, files map[string]string) *httptest.ResponseRecorder {
		body, contentType := organizationForm(t, fields, files)
		req := httptest.NewRequest(http.MethodPut, path, body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		ts.router.ServeHTTP(w, req)
		return w
	}

	fields := map[string]string{"organization_name": "Live Co", "contact_number": "0112223334"}

	w := send(tok, fields, map[string]string{"logo": "image/png", "banner": "application/pdf"})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Contains(t, decode[ErrorResponse](t, w).Fields, "banner")
	assert.Empty(t, ts.bucket.paths)

	w = send(tok, fields, map[string]string{"logo": "image/png", "banner": "image/jpeg"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got struct {
		Profile domain.OrganizationProfile `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "https://cdn.example.com/organizations/logo.bin", got.Profile.Logo)
	assert.Equal(t, "https://cdn.example.com/organizations/banner.bin", got.Profile.Banner)
	assert.ElementsMatch(t, []string{"organizations/logo.bin", "organizations/banner.bin"}, ts.bucket.paths)

	_, otherTok := ts.user("other@example.com", domain.RoleOrganization)
	assert.Equal(t, http.StatusForbidden, send(otherTok, fields, nil).Code)
}

type abandonFails struct {
	*idemMap
}

func (abandonFails) Abandon(context.Context, string, string) error {
	return errors.New("redis unavailable")
}

func TestCheckoutRecordsAbandonFailure(t *testing.T) {
	ts := newTestServer(t)
	uid, _ := ts.user("buyer@example.com", domain.RoleCustomer)

	var recorded []string
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ctxIdentity, auth.Identity{UserID: uid, Role: domain.RoleCustomer})
		c.Next()
		for _, e := range c.Errors {
			recorded = append(recorded, e.Error())
		}
	})
	r.POST("/checkout", handleCheckout(ts.svcs, abandonFails{newIdemMap()}))

	b, err := json.Marshal(CheckoutRequest{EventID: ts.eventID, SeatIDs: []string{"A1"}})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "k-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// nothing is held, so checkout fails and the key is released
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	assert.Equal(t, []string{"redis unavailable"}, recorded)
}

func TestBindingErrorsReportJSONFieldNames(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/login", map[string]string{"email": "nope"}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := decode[ErrorResponse](t, w).Fields
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")

	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoleGuards(t *testing.T) {
	ts := newTestServer(t)
	_, customer := ts.user("c@example.com", domain.RoleCustomer)
	_, adminTok := ts.user("root@example.com", domain.RoleAdmin)

	path := "/admin/events/" + strconv.FormatInt(ts.eventID, 10) + "/deactivate"

	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodPost, path, nil, nil).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodPost, path, nil, bearer(customer)).Code)
	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodPost, path, nil, bearer(adminTok)).Code)

	// inactive events refuse new holds
	w := ts.do(http.MethodPost, ts.holdsPath(), AcquireHoldRequest{SeatID: "A1"}, session("s1"))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(http.MethodGet, "/healthz", nil, bearer("garbage"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCatalogRoutes(t *testing.T) {
	ts := newTestServer(t)
	_, tok := ts.user("org@example.com", domain.RoleOrganization)

	w := ts.do(http.MethodPost, "/catalog/ticket-types", catalog.Input{Name: "VIP", Color: "#ff0000"}, bearer(tok))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	item := decode[domain.CatalogItem](t, w)

	w = ts.do(http.MethodGet, "/catalog/ticket-types", nil, bearer(tok))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.CatalogItem](t, w), 1)

	w = ts.do(http.MethodPost, "/catalog/ticket-types/"+strconv.FormatInt(item.ID, 10)+"/deactivate", nil, bearer(tok))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(http.MethodGet, "/catalog/widgets", nil, bearer(tok))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

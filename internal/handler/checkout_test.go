package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotpix/slot-reservation/internal/model"
	"github.com/slotpix/slot-reservation/internal/payment"
	"github.com/slotpix/slot-reservation/internal/repository"
	"github.com/slotpix/slot-reservation/internal/service"
)

// fakeStore is a single-plan in-memory service.SlotStore, enough to
// drive the handlers through the service layer.
type fakeStore struct {
	mu     sync.Mutex
	plan   model.Plan
	res    map[uint64]*model.Reservation
	nextID uint64
}

func newFakeStore(total, used uint32) *fakeStore {
	return &fakeStore{
		plan: model.Plan{
			ID:         1,
			Name:       "Family Plan",
			TotalSlots: total,
			UsedSlots:  used,
			InviteLink: "https://chat.example/invite",
			PriceCents: 990,
		},
		res: make(map[uint64]*model.Reservation),
	}
}

func (s *fakeStore) Reserve(ctx context.Context, contact model.Contact) (*model.Plan, *model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plan.UsedSlots >= s.plan.TotalSlots {
		return nil, nil, repository.ErrSlotExhausted
	}
	s.plan.UsedSlots++
	s.nextID++
	r := &model.Reservation{ID: s.nextID, PlanID: s.plan.ID, Name: contact.Name, Email: contact.Email, Phone: contact.Phone, Status: model.StatusPending}
	s.res[r.ID] = r
	p := s.plan
	return &p, r, nil
}

func (s *fakeStore) MarkPaid(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.res {
		if r.PaymentRef != nil && *r.PaymentRef == ref {
			r.Status = model.StatusPaid
			return nil
		}
	}
	return repository.ErrReservationNotFound
}

func (s *fakeStore) FindAvailablePlan(ctx context.Context) (*model.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plan.UsedSlots >= s.plan.TotalSlots {
		return nil, repository.ErrSlotExhausted
	}
	p := s.plan
	return &p, nil
}

func (s *fakeStore) AttachPaymentRef(ctx context.Context, reservationID uint64, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.res[reservationID]
	if !ok {
		return repository.ErrReservationNotFound
	}
	r.PaymentRef = &ref
	return nil
}

func (s *fakeStore) ReservationByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.res[id]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *fakeStore) ReservationByRef(ctx context.Context, ref string) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.res {
		if r.PaymentRef != nil && *r.PaymentRef == ref {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repository.ErrReservationNotFound
}

func (s *fakeStore) PlanByID(ctx context.Context, id uint64) (*model.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.plan
	return &p, nil
}

// fixedProvider always issues the same charge.
type fixedProvider struct{ status string }

func (p *fixedProvider) CreateCharge(ctx context.Context, amountCents int, description, payerEmail string) (*payment.Charge, error) {
	return &payment.Charge{TxID: "tx-1", QRCodeImage: "img", CopyPaste: "00020126..."}, nil
}

func (p *fixedProvider) ChargeStatus(ctx context.Context, txid string) (string, error) {
	if p.status == "" {
		return payment.ChargePending, nil
	}
	return p.status, nil
}

func newCheckoutEnv(store *fakeStore) (*echo.Echo, *CheckoutHandler, *StatusHandler) {
	svc := service.NewReservation(store, &fixedProvider{}, nil, nil, 990, "slot")
	return echo.New(), NewCheckoutHandler(svc), NewStatusHandler(svc)
}

func doJSON(e *echo.Echo, method, target, body string) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req, httptest.NewRecorder()
}

func TestCheckoutHandler_Checkout_Created(t *testing.T) {
	store := newFakeStore(2, 0)
	e, co, _ := newCheckoutEnv(store)

	req, rec := doJSON(e, http.MethodPost, "/v1/checkout",
		`{"name":"Alice","email":"alice@example.com","phone":"+5511999990000"}`)
	c := e.NewContext(req, rec)

	require.NoError(t, co.Checkout(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var out service.CheckoutResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, uint64(1), out.PlanID)
	assert.NotZero(t, out.ReservationID)
	require.NotNil(t, out.Payment)
	assert.Equal(t, "tx-1", out.Payment.TxID)
}

func TestCheckoutHandler_Checkout_Validation(t *testing.T) {
	store := newFakeStore(2, 0)
	e, co, _ := newCheckoutEnv(store)

	cases := []struct {
		name string
		body string
	}{
		{"missing name", `{"email":"a@b.com","phone":"+55"}`},
		{"missing email", `{"name":"Alice","phone":"+55"}`},
		{"bad email", `{"name":"Alice","email":"not-an-email","phone":"+55"}`},
		{"missing phone", `{"name":"Alice","email":"a@b.com"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, rec := doJSON(e, http.MethodPost, "/v1/checkout", tc.body)
			c := e.NewContext(req, rec)
			require.NoError(t, co.Checkout(c))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, store.res, "no reservation may be created for invalid input")
}

func TestCheckoutHandler_Checkout_SoldOut(t *testing.T) {
	store := newFakeStore(1, 1)
	e, co, _ := newCheckoutEnv(store)

	req, rec := doJSON(e, http.MethodPost, "/v1/checkout",
		`{"name":"Alice","email":"alice@example.com","phone":"+55"}`)
	c := e.NewContext(req, rec)

	require.NoError(t, co.Checkout(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "no vacancy")
}

func TestCheckoutHandler_Availability(t *testing.T) {
	store := newFakeStore(1, 0)
	e, co, _ := newCheckoutEnv(store)

	req, rec := doJSON(e, http.MethodGet, "/v1/availability", "")
	c := e.NewContext(req, rec)
	require.NoError(t, co.Availability(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"available":true`)

	store.plan.UsedSlots = 1
	req, rec = doJSON(e, http.MethodGet, "/v1/availability", "")
	c = e.NewContext(req, rec)
	require.NoError(t, co.Availability(c))
	assert.Contains(t, rec.Body.String(), `"available":false`)
}

func TestStatusHandler_Reservation_HidesInviteUntilPaid(t *testing.T) {
	store := newFakeStore(2, 0)
	e, co, st := newCheckoutEnv(store)

	req, rec := doJSON(e, http.MethodPost, "/v1/checkout",
		`{"name":"Alice","email":"alice@example.com","phone":"+55"}`)
	require.NoError(t, co.Checkout(e.NewContext(req, rec)))

	req, rec = doJSON(e, http.MethodGet, "/", "")
	c := e.NewContext(req, rec)
	c.SetPath("/v1/reservations/:id")
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, st.Reservation(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "invite")

	require.NoError(t, store.MarkPaid(context.Background(), "tx-1"))

	req, rec = doJSON(e, http.MethodGet, "/", "")
	c = e.NewContext(req, rec)
	c.SetPath("/v1/reservations/:id")
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, st.Reservation(c))
	assert.Contains(t, rec.Body.String(), "https://chat.example/invite")
}

func TestStatusHandler_Reservation_NotFound(t *testing.T) {
	store := newFakeStore(2, 0)
	e, _, st := newCheckoutEnv(store)

	req, rec := doJSON(e, http.MethodGet, "/", "")
	c := e.NewContext(req, rec)
	c.SetPath("/v1/reservations/:id")
	c.SetParamNames("id")
	c.SetParamValues("42")
	require.NoError(t, st.Reservation(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusHandler_PaymentStatus(t *testing.T) {
	store := newFakeStore(2, 0)
	e, co, st := newCheckoutEnv(store)

	req, rec := doJSON(e, http.MethodPost, "/v1/checkout",
		`{"name":"Alice","email":"alice@example.com","phone":"+55"}`)
	require.NoError(t, co.Checkout(e.NewContext(req, rec)))

	req, rec = doJSON(e, http.MethodGet, "/", "")
	c := e.NewContext(req, rec)
	c.SetPath("/v1/payments/:txid")
	c.SetParamNames("txid")
	c.SetParamValues("tx-1")
	require.NoError(t, st.PaymentStatus(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), model.StatusPending)
}

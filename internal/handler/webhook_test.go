package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotpix/slot-reservation/internal/model"
	"github.com/slotpix/slot-reservation/internal/payment"
	"github.com/slotpix/slot-reservation/internal/service"
)

const webhookSecret = "whsec"

func mpSignature(dataID string) string {
	const ts = "1700000000"
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	fmt.Fprintf(mac, "id:%s;data-id:%s;ts:%s;", dataID, dataID, ts)
	return "ts=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

// newWebhookEnv wires a fake store, an httptest Mercado Pago API that
// reports the given payment status and the webhook handler on top.
func newWebhookEnv(t *testing.T, store *fakeStore, paymentStatus string) (*echo.Echo, *WebhookHandler, func()) {
	t.Helper()
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"id": 12345, "status": %q}`, paymentStatus)
	}))
	mp := payment.NewMercadoPagoWithBase(api.URL, "token", webhookSecret)
	svc := service.NewReservation(store, mp, nil, nil, 990, "slot")
	return echo.New(), NewWebhookHandler(svc, mp), api.Close
}

func postWebhook(e *echo.Echo, body, signature string) (echo.Context, *httptest.ResponseRecorder) {
	req, rec := doJSON(e, http.MethodPost, "/v1/webhooks/mercadopago", body)
	if signature != "" {
		req.Header.Set("x-signature", signature)
	}
	return e.NewContext(req, rec), rec
}

func TestWebhookHandler_ApprovedPayment(t *testing.T) {
	store := newFakeStore(2, 0)
	_, res, err := store.Reserve(context.Background(), model.Contact{Name: "Alice", Email: "a@b.com", Phone: "+55"})
	require.NoError(t, err)
	require.NoError(t, store.AttachPaymentRef(context.Background(), res.ID, "12345"))

	e, wh, closeAPI := newWebhookEnv(t, store, "approved")
	defer closeAPI()

	c, rec := postWebhook(e, `{"type":"payment","data":{"id":"12345"}}`, mpSignature("12345"))
	require.NoError(t, wh.MercadoPago(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	got, err := store.ReservationByRef(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, got.Status)
}

func TestWebhookHandler_InvalidSignature(t *testing.T) {
	store := newFakeStore(2, 0)
	e, wh, closeAPI := newWebhookEnv(t, store, "approved")
	defer closeAPI()

	c, rec := postWebhook(e, `{"type":"payment","data":{"id":"12345"}}`, "ts=1,v1=deadbeef")
	require.NoError(t, wh.MercadoPago(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c, rec = postWebhook(e, `{"type":"payment","data":{"id":"12345"}}`, "")
	require.NoError(t, wh.MercadoPago(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookHandler_IgnoresOtherTopics(t *testing.T) {
	store := newFakeStore(2, 0)
	e, wh, closeAPI := newWebhookEnv(t, store, "approved")
	defer closeAPI()

	c, rec := postWebhook(e, `{"type":"plan","data":{"id":"12345"}}`, "")
	require.NoError(t, wh.MercadoPago(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookHandler_PendingPaymentDoesNotConfirm(t *testing.T) {
	store := newFakeStore(2, 0)
	_, res, err := store.Reserve(context.Background(), model.Contact{Name: "Alice", Email: "a@b.com", Phone: "+55"})
	require.NoError(t, err)
	require.NoError(t, store.AttachPaymentRef(context.Background(), res.ID, "12345"))

	e, wh, closeAPI := newWebhookEnv(t, store, "pending")
	defer closeAPI()

	c, rec := postWebhook(e, `{"type":"payment","data":{"id":"12345"}}`, mpSignature("12345"))
	require.NoError(t, wh.MercadoPago(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	got, err := store.ReservationByRef(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestWebhookHandler_UnknownRefIsAcknowledged(t *testing.T) {
	store := newFakeStore(2, 0)
	e, wh, closeAPI := newWebhookEnv(t, store, "approved")
	defer closeAPI()

	c, rec := postWebhook(e, `{"type":"payment","data":{"id":"12345"}}`, mpSignature("12345"))
	require.NoError(t, wh.MercadoPago(c))
	// Acknowledged so the provider stops retrying a charge we never issued.
	assert.Equal(t, http.StatusOK, rec.Code)
}

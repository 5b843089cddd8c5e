package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMercadoPago_CreateCharge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/payments", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "pix", body["payment_method_id"])
		assert.InDelta(t, 9.90, body["transaction_amount"], 0.001)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{
			"id": 12345,
			"status": "pending",
			"point_of_interaction": {
				"transaction_data": {
					"qr_code": "00020126580014br.gov.bcb.pix",
					"qr_code_base64": "aW1hZ2U="
				}
			}
		}`)
	}))
	defer srv.Close()

	mp := NewMercadoPagoWithBase(srv.URL, "test-token", "secret")
	charge, err := mp.CreateCharge(context.Background(), 990, "subscription slot", "alice@example.com")

	require.NoError(t, err)
	assert.Equal(t, "12345", charge.TxID)
	assert.Equal(t, "aW1hZ2U=", charge.QRCodeImage)
	assert.Equal(t, "00020126580014br.gov.bcb.pix", charge.CopyPaste)
}

func TestMercadoPago_CreateCharge_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	mp := NewMercadoPagoWithBase(srv.URL, "test-token", "secret")
	_, err := mp.CreateCharge(context.Background(), 990, "slot", "alice@example.com")

	require.Error(t, err)
}

func TestMercadoPago_ChargeStatus(t *testing.T) {
	status := "pending"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/payments/12345", r.URL.Path)
		fmt.Fprintf(w, `{"id": 12345, "status": %q}`, status)
	}))
	defer srv.Close()

	mp := NewMercadoPagoWithBase(srv.URL, "test-token", "secret")

	st, err := mp.ChargeStatus(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, ChargePending, st)

	status = "approved"
	st, err = mp.ChargeStatus(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, ChargeApproved, st)
}

func signMP(secret, dataID, ts string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "id:%s;data-id:%s;ts:%s;", dataID, dataID, ts)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestMercadoPago_VerifySignature(t *testing.T) {
	mp := NewMercadoPago("token", "whsec")

	v1 := signMP("whsec", "12345", "1700000000")
	header := "ts=1700000000,v1=" + v1

	assert.True(t, mp.VerifySignature(header, "12345"))
	assert.True(t, mp.VerifySignature("ts = 1700000000, v1 = "+v1, "12345"), "whitespace around pairs is tolerated")

	assert.False(t, mp.VerifySignature(header, "99999"), "different data id")
	assert.False(t, mp.VerifySignature("ts=1700000001,v1="+v1, "12345"), "tampered timestamp")
	assert.False(t, mp.VerifySignature("", "12345"), "missing header")
	assert.False(t, mp.VerifySignature("v1="+v1, "12345"), "missing ts pair")

	wrongKey := NewMercadoPago("token", "other-secret")
	assert.False(t, wrongKey.VerifySignature(header, "12345"))

	noSecret := NewMercadoPago("token", "")
	assert.False(t, noSecret.VerifySignature(header, "12345"))
}

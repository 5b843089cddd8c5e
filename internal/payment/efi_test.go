package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEfiTestServer(t *testing.T, cobStatus string, tokenCalls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/oauth/token":
			user, pass, ok := r.BasicAuth()
			require.True(t, ok)
			require.Equal(t, "cid", user)
			require.Equal(t, "csecret", pass)
			if tokenCalls != nil {
				atomic.AddInt32(tokenCalls, 1)
			}
			fmt.Fprint(w, `{"access_token":"tok","expires_in":3600}`)
		case strings.HasPrefix(r.URL.Path, "/v2/cob/") && r.Method == http.MethodPut:
			require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "minha-chave-pix", body["chave"])
			valor := body["valor"].(map[string]any)
			assert.Equal(t, "9.90", valor["original"])
			txid := strings.TrimPrefix(r.URL.Path, "/v2/cob/")
			fmt.Fprintf(w, `{"txid":%q,"status":"ATIVA","loc":{"id":77}}`, txid)
		case strings.HasPrefix(r.URL.Path, "/v2/cob/") && r.Method == http.MethodGet:
			fmt.Fprintf(w, `{"status":%q}`, cobStatus)
		case r.URL.Path == "/v2/loc/77/qrcode":
			fmt.Fprint(w, `{"qrcode":"00020126...","imagemQrcode":"data:image/png;base64,abc"}`)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestEfi_CreateCharge(t *testing.T) {
	srv := newEfiTestServer(t, "ATIVA", nil)
	defer srv.Close()

	e := NewEfiWithBase(nil, srv.URL, "cid", "csecret", "minha-chave-pix")
	charge, err := e.CreateCharge(context.Background(), 990, "subscription slot", "alice@example.com")

	require.NoError(t, err)
	assert.Len(t, charge.TxID, 32, "stripped uuid txid")
	assert.Equal(t, "00020126...", charge.CopyPaste)
	assert.Equal(t, "data:image/png;base64,abc", charge.QRCodeImage)
}

func TestEfi_ChargeStatus(t *testing.T) {
	srv := newEfiTestServer(t, "ATIVA", nil)
	defer srv.Close()

	e := NewEfiWithBase(nil, srv.URL, "cid", "csecret", "minha-chave-pix")

	st, err := e.ChargeStatus(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, ChargePending, st)
}

func TestEfi_ChargeStatus_Settled(t *testing.T) {
	srv := newEfiTestServer(t, "CONCLUIDA", nil)
	defer srv.Close()

	e := NewEfiWithBase(nil, srv.URL, "cid", "csecret", "minha-chave-pix")

	st, err := e.ChargeStatus(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, ChargeApproved, st)
}

func TestEfi_TokenIsCached(t *testing.T) {
	var tokenCalls int32
	srv := newEfiTestServer(t, "ATIVA", &tokenCalls)
	defer srv.Close()

	e := NewEfiWithBase(nil, srv.URL, "cid", "csecret", "minha-chave-pix")

	_, err := e.ChargeStatus(context.Background(), "abc123")
	require.NoError(t, err)
	_, err = e.ChargeStatus(context.Background(), "abc123")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))
}

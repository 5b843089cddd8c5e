package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// mercadoPagoBaseURL is the production API endpoint.  Tests override it
// through NewMercadoPagoWithBase.
const mercadoPagoBaseURL = "https://api.mercadopago.com"

// MercadoPago is a minimal client for the Mercado Pago payments API:
// create a PIX charge, query its status and verify the x-signature
// header of webhook notifications.  Only the fields this service reads
// are decoded from responses.
type MercadoPago struct {
	http          *http.Client
	baseURL       string
	accessToken   string
	webhookSecret string
}

// NewMercadoPago builds a client with the given credentials.
func NewMercadoPago(accessToken, webhookSecret string) *MercadoPago {
	return NewMercadoPagoWithBase(mercadoPagoBaseURL, accessToken, webhookSecret)
}

// NewMercadoPagoWithBase is like NewMercadoPago but points the client
// at a custom base URL.  Used by tests against httptest servers.
func NewMercadoPagoWithBase(baseURL, accessToken, webhookSecret string) *MercadoPago {
	return &MercadoPago{
		http:          &http.Client{Timeout: 15 * time.Second},
		baseURL:       strings.TrimRight(baseURL, "/"),
		accessToken:   accessToken,
		webhookSecret: webhookSecret,
	}
}

// mpPaymentResponse mirrors the subset of POST/GET /v1/payments we use.
type mpPaymentResponse struct {
	ID                 int64  `json:"id"`
	Status             string `json:"status"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

// CreateCharge creates a PIX payment and returns the charge artifacts.
// Amounts are sent in BRL units (the API takes a decimal), so cents
// are converted here.
func (m *MercadoPago) CreateCharge(ctx context.Context, amountCents int, description, payerEmail string) (*Charge, error) {
	body := map[string]any{
		"transaction_amount": float64(amountCents) / 100.0,
		"description":        description,
		"payment_method_id":  "pix",
		"payer":              map[string]string{"email": payerEmail},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: marshal charge: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/v1/payments", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("mercadopago: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.accessToken)

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: create charge: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("mercadopago: create charge: unexpected status %d", resp.StatusCode)
	}
	var out mpPaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("mercadopago: decode charge: %w", err)
	}
	return &Charge{
		TxID:        fmt.Sprintf("%d", out.ID),
		QRCodeImage: out.PointOfInteraction.TransactionData.QRCodeBase64,
		CopyPaste:   out.PointOfInteraction.TransactionData.QRCode,
	}, nil
}

// ChargeStatus queries a payment and normalizes its status.  Anything
// other than "approved" is reported as pending; terminal failures are
// irrelevant here because an unpaid reservation keeps its slot either
// way.
func (m *MercadoPago) ChargeStatus(ctx context.Context, txid string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/v1/payments/"+txid, nil)
	if err != nil {
		return "", fmt.Errorf("mercadopago: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.accessToken)

	resp, err := m.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("mercadopago: get payment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("mercadopago: get payment: unexpected status %d", resp.StatusCode)
	}
	var out mpPaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("mercadopago: decode payment: %w", err)
	}
	if out.Status == "approved" {
		return ChargeApproved, nil
	}
	return ChargePending, nil
}

// VerifySignature checks the x-signature header of a webhook
// notification.  The header carries "ts=<unix>,v1=<hex hmac>" and the
// signed manifest is "id:<dataID>;data-id:<dataID>;ts:<ts>;" keyed with
// the shared webhook secret (HMAC-SHA256).  Comparison is constant
// time.
func (m *MercadoPago) VerifySignature(sigHeader, dataID string) bool {
	if sigHeader == "" || m.webhookSecret == "" {
		return false
	}
	var ts, v1 string
	for _, part := range strings.Split(sigHeader, ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(k) {
		case "ts":
			ts = strings.TrimSpace(v)
		case "v1":
			v1 = strings.TrimSpace(v)
		}
	}
	if ts == "" || v1 == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(m.webhookSecret))
	fmt.Fprintf(mac, "id:%s;data-id:%s;ts:%s;", dataID, dataID, ts)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(v1))
}

package payment

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Efí Bank endpoints.  The homolog (sandbox) environment is a separate
// host selected at construction time.
const (
	efiProdBaseURL    = "https://pix.api.efipay.com.br"
	efiSandboxBaseURL = "https://pix-h.api.efipay.com.br"
)

// Efi is a client for the Efí Bank PIX API.  It handles OAuth
// client-credentials tokens, immediate charge creation (cob) and QR
// code generation.  The Efí API requires mTLS with the account's P12
// certificate; callers provide an *http.Client already configured with
// the client certificate, or nil to use a default client (useful only
// against test servers).
type Efi struct {
	http         *http.Client
	baseURL      string
	clientID     string
	clientSecret string
	pixKey       string

	mu      sync.Mutex // guards token/tokenExp
	token   string
	tokenExp time.Time
}

// NewEfi builds an Efí client.  When sandbox is true the homolog host
// is used, matching the EFI_SANDBOX switch of the deployment scripts.
func NewEfi(httpClient *http.Client, clientID, clientSecret, pixKey string, sandbox bool) *Efi {
	base := efiProdBaseURL
	if sandbox {
		base = efiSandboxBaseURL
	}
	return NewEfiWithBase(httpClient, base, clientID, clientSecret, pixKey)
}

// NewEfiWithBase is like NewEfi but points the client at a custom base
// URL.  Used by tests against httptest servers.
func NewEfiWithBase(httpClient *http.Client, baseURL, clientID, clientSecret, pixKey string) *Efi {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Efi{
		http:         httpClient,
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		pixKey:       pixKey,
	}
}

// NewEfiMTLSClient builds an HTTP client carrying the account's client
// certificate.  Efí rejects requests without mTLS outside of test
// environments, so deployments point EFI_CERT_FILE / EFI_KEY_FILE at
// the PEM pair exported from the account's P12.
func NewEfiMTLSClient(certFile, keyFile string) (*http.Client, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("efi: load client certificate: %w", err)
	}
	return &http.Client{
		Timeout: 15 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{Certificates: []tls.Certificate{cert}},
		},
	}, nil
}

// accessToken returns a cached OAuth token, fetching a new one when
// the cached token is absent or about to expire.
func (e *Efi) accessToken(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.token != "" && time.Now().Before(e.tokenExp.Add(-30*time.Second)) {
		return e.token, nil
	}
	body := bytes.NewReader([]byte(`{"grant_type":"client_credentials"}`))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/oauth/token", body)
	if err != nil {
		return "", fmt.Errorf("efi: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(e.clientID, e.clientSecret)

	resp, err := e.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("efi: fetch token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("efi: fetch token: unexpected status %d", resp.StatusCode)
	}
	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("efi: decode token: %w", err)
	}
	e.token = out.AccessToken
	e.tokenExp = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	return e.token, nil
}

// newTxid generates an Efí compatible txid: 26-35 alphanumeric chars.
// A stripped UUID gives 32.
func newTxid() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CreateCharge creates an immediate PIX charge (cob) and fetches its
// QR code.  The charge expires after one hour on the provider side;
// the slot stays consumed regardless (see the reservation service).
func (e *Efi) CreateCharge(ctx context.Context, amountCents int, description, payerEmail string) (*Charge, error) {
	token, err := e.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	txid := newTxid()
	cob := map[string]any{
		"calendario":         map[string]int{"expiracao": 3600},
		"valor":              map[string]string{"original": fmt.Sprintf("%d.%02d", amountCents/100, amountCents%100)},
		"chave":              e.pixKey,
		"solicitacaoPagador": description,
	}
	raw, err := json.Marshal(cob)
	if err != nil {
		return nil, fmt.Errorf("efi: marshal cob: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, e.baseURL+"/v2/cob/"+txid, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("efi: build cob request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("efi: create cob: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("efi: create cob: unexpected status %d", resp.StatusCode)
	}
	var created struct {
		Txid string `json:"txid"`
		Loc  struct {
			ID int64 `json:"id"`
		} `json:"loc"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("efi: decode cob: %w", err)
	}
	if created.Txid != "" {
		txid = created.Txid
	}

	// Second call fetches the renderable QR artifacts for the charge
	// location.
	qreq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v2/loc/%d/qrcode", e.baseURL, created.Loc.ID), nil)
	if err != nil {
		return nil, fmt.Errorf("efi: build qrcode request: %w", err)
	}
	qreq.Header.Set("Authorization", "Bearer "+token)
	qresp, err := e.http.Do(qreq)
	if err != nil {
		return nil, fmt.Errorf("efi: fetch qrcode: %w", err)
	}
	defer qresp.Body.Close()
	if qresp.StatusCode < 200 || qresp.StatusCode > 299 {
		return nil, fmt.Errorf("efi: fetch qrcode: unexpected status %d", qresp.StatusCode)
	}
	var qr struct {
		QRCode       string `json:"qrcode"`
		ImagemQrcode string `json:"imagemQrcode"`
	}
	if err := json.NewDecoder(qresp.Body).Decode(&qr); err != nil {
		return nil, fmt.Errorf("efi: decode qrcode: %w", err)
	}
	return &Charge{TxID: txid, QRCodeImage: qr.ImagemQrcode, CopyPaste: qr.QRCode}, nil
}

// ChargeStatus queries a cob by txid.  Efí reports CONCLUIDA once the
// transfer settles; everything else maps to pending.
func (e *Efi) ChargeStatus(ctx context.Context, txid string) (string, error) {
	token, err := e.accessToken(ctx)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/v2/cob/"+txid, nil)
	if err != nil {
		return "", fmt.Errorf("efi: build cob request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := e.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("efi: get cob: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("efi: get cob: unexpected status %d", resp.StatusCode)
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("efi: decode cob: %w", err)
	}
	if out.Status == "CONCLUIDA" {
		return ChargeApproved, nil
	}
	return ChargePending, nil
}

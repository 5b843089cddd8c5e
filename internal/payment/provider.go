// Package payment contains the PIX payment provider clients.  The
// reservation core only depends on the small interfaces defined here;
// which concrete provider backs them is a configuration detail.
package payment

import "context"

// Charge is the result of creating a PIX charge: the provider side
// transaction id plus the two artifacts the storefront renders, a QR
// code image and the "copia e cola" payload.
type Charge struct {
	TxID        string `json:"txid"`
	QRCodeImage string `json:"qr_code"`   // base64 encoded PNG
	CopyPaste   string `json:"copy_paste"` // BR Code text payload
}

// Charge status values normalized across providers.
const (
	ChargeApproved = "approved" // transfer settled
	ChargePending  = "pending"  // awaiting the transfer
)

// ChargeCreator creates a PIX charge for one subscription slot.
// Implementations must be safe for concurrent use.
type ChargeCreator interface {
	CreateCharge(ctx context.Context, amountCents int, description, payerEmail string) (*Charge, error)
}

// StatusChecker queries the provider for the current charge status and
// reports one of the normalized values above.
type StatusChecker interface {
	ChargeStatus(ctx context.Context, txid string) (string, error)
}

// Provider bundles the two capabilities; both concrete clients
// implement it.
type Provider interface {
	ChargeCreator
	StatusChecker
}

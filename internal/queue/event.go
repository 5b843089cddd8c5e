// Package queue defines message payloads exchanged over the message broker.
package queue

// PaymentConfirmedEvent is published when a provider webhook (or a
// status poll) confirms a PIX charge and the reservation flips to
// PAID.  It carries enough information for downstream consumers to
// log, notify, or trigger analytics without querying the primary
// database.
type PaymentConfirmedEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	PlanID        uint64 `json:"plan_id"`
	PlanName      string `json:"plan_name"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	PaymentRef    string `json:"payment_ref"`
	AmountCents   uint32 `json:"amount_cents"`
	PaidAt        string `json:"paid_at"`
}

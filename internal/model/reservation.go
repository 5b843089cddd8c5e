package model

import "time"

// Reservation status values.  A reservation is created PENDING together
// with the slot decrement and transitions to PAID exactly once when the
// payment provider confirms the charge.  There is no other transition;
// reservations are never deleted (append-only audit trail) and an
// unpaid reservation keeps its slot.
const (
	StatusPending = "PENDING" // awaiting payment confirmation
	StatusPaid    = "PAID"    // charge confirmed by the provider
)

// Reservation records a customer's claim on one slot of a plan.  The
// row is inserted inside the same transaction that increments the
// plan's used_slots counter, so an existing reservation implies its
// slot has already been accounted for.
//
// Fields:
//  ID         – primary key identifier.
//  PlanID     – plan that granted the slot; immutable after creation.
//  Name       – customer name as entered on the storefront.
//  Email      – customer e-mail.
//  Phone      – customer phone number.
//  PaymentRef – external charge identifier (txid); attached right after
//               the charge is created, unique when present.
//  Status     – PENDING or PAID.
//  PaidAt     – confirmation timestamp, nil while pending.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Reservation struct {
	ID         uint64     `json:"id"`                    // reservations.id
	PlanID     uint64     `json:"plan_id"`               // reservations.plan_id
	Name       string     `json:"name"`                  // reservations.name
	Email      string     `json:"email"`                 // reservations.email
	Phone      string     `json:"phone"`                 // reservations.phone
	PaymentRef *string    `json:"payment_ref,omitempty"` // reservations.payment_ref (nullable)
	Status     string     `json:"status"`                // reservations.status
	PaidAt     *time.Time `json:"paid_at,omitempty"`     // reservations.paid_at (nullable)
	CreatedAt  time.Time  `json:"created_at"`            // reservations.created_at
	UpdatedAt  time.Time  `json:"updated_at"`            // reservations.updated_at
}

// Contact carries the customer details collected by the storefront
// checkout form.  The core treats the values as opaque strings; field
// level validation happens at the handler boundary.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

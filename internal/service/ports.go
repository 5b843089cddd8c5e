// Package service implements the reservation core: the operations the
// checkout, webhook and status handlers call. Storage and payment
// provider are abstracted behind the small ports below so that backend
// choice stays a configuration detail and the service itself contains
// no transaction logic — the atomicity contract lives entirely inside
// the SlotStore implementation.
package service

import (
	"context"

	"github.com/slotpix/slot-reservation/internal/model"
)

// SlotStore is the atomic reservation store port.  Reserve must
// execute find-plan, counter increment and reservation insert as one
// indivisible unit of work; implementations that cannot guarantee that
// must not be wired in.  The MySQL implementation lives in
// internal/repository.
type SlotStore interface {
	// Reserve atomically claims one slot from the lowest-id plan
	// with spare capacity and records the customer against it.
	// Returns repository.ErrSlotExhausted with zero side effects
	// when every plan is full.
	Reserve(ctx context.Context, contact model.Contact) (*model.Plan, *model.Reservation, error)

	// MarkPaid idempotently transitions PENDING -> PAID by payment
	// reference. Unknown references yield
	// repository.ErrReservationNotFound.
	MarkPaid(ctx context.Context, ref string) error

	// FindAvailablePlan is the read-only availability probe.
	FindAvailablePlan(ctx context.Context) (*model.Plan, error)

	// AttachPaymentRef binds the provider charge id to a reservation.
	AttachPaymentRef(ctx context.Context, reservationID uint64, ref string) error

	ReservationByID(ctx context.Context, id uint64) (*model.Reservation, error)
	ReservationByRef(ctx context.Context, ref string) (*model.Reservation, error)
	PlanByID(ctx context.Context, id uint64) (*model.Plan, error)
}

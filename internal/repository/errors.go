// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// reservation service and handlers to distinguish between different
// failure scenarios without inspecting driver errors. For example,
// ErrSlotExhausted signals that no plan has spare capacity and maps to
// a user-visible "no vacancy" response, while ErrReservationNotFound is
// returned for webhook references unknown to this system.
package repository

import "errors"

// ErrSlotExhausted is returned by the reserve unit when every plan has
// used_slots == total_slots. The transaction is rolled back before this
// is returned, so exhaustion never leaves partial writes behind.
// Handlers should translate this into an HTTP 409 response.
var ErrSlotExhausted = errors.New("no slots available")

// ErrPlanNotFound indicates that a plan was not located in the DB.
var ErrPlanNotFound = errors.New("plan not found")

// ErrReservationNotFound indicates that a reservation (looked up by id
// or payment reference) does not exist. Webhook handlers log this and
// still acknowledge the notification; status handlers return 404.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrDuplicateRef is returned when attaching a payment reference that
// is already bound to another reservation. The payment_ref column is
// unique, so this surfaces provider-side txid collisions.
var ErrDuplicateRef = errors.New("payment reference already exists")

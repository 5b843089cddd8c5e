package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/slotpix/slot-reservation/internal/model"
)

// SlotStore is the sole authority for capacity accounting.  It owns
// the one transaction in the system that touches used_slots, composing
// the *Tx methods of PlanRepo and ReservationRepo into a single atomic
// unit of work.  Handlers and the service layer never see a *sql.Tx;
// keeping transaction control down here means no future caller can
// subvert the capacity invariant by forgetting to wrap calls.
type SlotStore struct {
	db           *sql.DB
	plans        *PlanRepo
	reservations *ReservationRepo
}

// NewSlotStore builds a SlotStore over the given repositories.  Both
// repositories must be bound to the same database handle.
func NewSlotStore(db *sql.DB, plans *PlanRepo, reservations *ReservationRepo) *SlotStore {
	if db == nil || plans == nil || reservations == nil {
		panic("nil dependency passed to NewSlotStore")
	}
	return &SlotStore{db: db, plans: plans, reservations: reservations}
}

// Reserve executes the atomic find-and-reserve protocol:
//
//  1. lock the plan with the smallest id among those with spare
//     capacity (SELECT ... FOR UPDATE),
//  2. increment its used_slots with a guarded conditional UPDATE,
//  3. insert the PENDING reservation row referencing the plan,
//  4. commit all of it, or roll back all of it.
//
// Concurrent invocations serialize on the row lock taken in step 1, so
// each unit observes every previously committed increment before
// deciding.  Two units can therefore never both take the last slot of
// a plan.  On exhaustion the transaction is rolled back with zero side
// effects and ErrSlotExhausted is returned.
func (s *SlotStore) Reserve(ctx context.Context, contact model.Contact) (*model.Plan, *model.Reservation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	plan, err := s.plans.FindAvailableTx(ctx, tx)
	if err != nil {
		return nil, nil, err
	}
	if err := s.plans.ConsumeSlotTx(ctx, tx, plan.ID); err != nil {
		return nil, nil, err
	}
	res, err := s.reservations.CreateTx(ctx, tx, plan.ID, contact)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	committed = true

	// Reflect the increment on the returned snapshot; the row was
	// locked, so no other writer touched used_slots in between.
	plan.UsedSlots++
	return plan, res, nil
}

// MarkPaid delegates the idempotent PENDING -> PAID transition.  It
// deliberately does not open a transaction: the transition is a single
// conditional UPDATE and capacity was already committed at reserve
// time, so there is nothing to keep consistent across statements.
func (s *SlotStore) MarkPaid(ctx context.Context, ref string) error {
	return s.reservations.MarkPaidByRef(ctx, ref)
}

// FindAvailablePlan exposes the read-only availability probe.
func (s *SlotStore) FindAvailablePlan(ctx context.Context) (*model.Plan, error) {
	return s.plans.FindAvailable(ctx)
}

// ReservationByID returns a reservation by its identifier.
func (s *SlotStore) ReservationByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	return s.reservations.GetByID(ctx, id)
}

// ReservationByRef returns a reservation by its payment reference.
func (s *SlotStore) ReservationByRef(ctx context.Context, ref string) (*model.Reservation, error) {
	return s.reservations.GetByRef(ctx, ref)
}

// AttachPaymentRef binds a charge id to a reservation.
func (s *SlotStore) AttachPaymentRef(ctx context.Context, reservationID uint64, ref string) error {
	return s.reservations.AttachPaymentRef(ctx, reservationID, ref)
}

// PlanByID returns the plan for a reservation detail view.
func (s *SlotStore) PlanByID(ctx context.Context, id uint64) (*model.Plan, error) {
	return s.plans.GetByID(ctx, id)
}

// IsRetryable reports whether an error from the store is a transient
// storage failure that is safe to retry from scratch.  Sentinel errors
// of the closed taxonomy are final; everything else (driver errors,
// lock wait timeouts, connection drops) is treated as transient since
// re-running the full reserve unit can never double-book.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrSlotExhausted) &&
		!errors.Is(err, ErrPlanNotFound) &&
		!errors.Is(err, ErrReservationNotFound) &&
		!errors.Is(err, ErrDuplicateRef)
}

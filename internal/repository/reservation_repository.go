package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/slotpix/slot-reservation/internal/model"
)

// ReservationRepo provides CRUD operations for reservations.  A
// reservation row is only ever created through CreateTx as part of the
// atomic reserve unit, and only ever mutated by AttachPaymentRef and
// MarkPaidByRef.  Rows are never deleted.  All timestamp fields are
// stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// reservationColumns is the select list shared by the scan helpers.
const reservationColumns = `id, plan_id, name, email, phone, payment_ref, status, paid_at, created_at, updated_at`

func scanReservation(row *sql.Row) (*model.Reservation, error) {
	var res model.Reservation
	var paymentRef sql.NullString
	var paidAt sql.NullTime
	err := row.Scan(
		&res.ID, &res.PlanID, &res.Name, &res.Email, &res.Phone,
		&paymentRef, &res.Status, &paidAt, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if paymentRef.Valid {
		ref := paymentRef.String
		res.PaymentRef = &ref
	}
	if paidAt.Valid {
		t := paidAt.Time
		res.PaidAt = &t
	}
	return &res, nil
}

// CreateTx inserts a new PENDING reservation within the scope of an
// existing transaction.  It populates the generated ID and DB-default
// fields on the returned struct.  The caller (the SlotStore) must
// commit or roll back the transaction; committing here would break the
// atomicity of the reserve unit.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, planID uint64, contact model.Contact) (*model.Reservation, error) {
	const q = `INSERT INTO reservations (plan_id, name, email, phone, status) VALUES (?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, planID, contact.Name, contact.Email, contact.Phone, model.StatusPending)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	// Query back the full row to populate timestamps and defaults.
	return scanReservation(tx.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, uint64(id)))
}

// AttachPaymentRef binds the external charge identifier to a
// reservation right after the charge has been created.  The column is
// unique; a duplicate key error is translated into ErrDuplicateRef.
func (r *ReservationRepo) AttachPaymentRef(ctx context.Context, reservationID uint64, ref string) error {
	const q = `UPDATE reservations SET payment_ref = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, ref, reservationID)
	if err != nil {
		// MySQL duplicate entry errors carry code 1062.
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrDuplicateRef
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrReservationNotFound
	}
	return nil
}

// MarkPaidByRef transitions the reservation identified by the payment
// reference from PENDING to PAID and stamps paid_at.  The transition is
// expressed as a single conditional UPDATE so that concurrent webhook
// redeliveries race harmlessly: exactly one of them flips the row, the
// rest observe zero affected rows and fall through to the idempotence
// check below.  Returns ErrReservationNotFound when the reference is
// unknown.  A repeated call for an already PAID reservation returns
// nil without mutating anything.
func (r *ReservationRepo) MarkPaidByRef(ctx context.Context, ref string) error {
	const q = `UPDATE reservations
	           SET status = ?, paid_at = UTC_TIMESTAMP()
	           WHERE payment_ref = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, model.StatusPaid, ref, model.StatusPending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	// Nothing updated: either the reference is unknown or the
	// reservation is already PAID. Distinguish the two so providers
	// that redeliver notifications get a success for the latter.
	var status string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM reservations WHERE payment_ref = ?`, ref).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrReservationNotFound
		}
		return err
	}
	if status == model.StatusPaid {
		return nil
	}
	return ErrReservationNotFound
}

// GetByID returns a single reservation or ErrReservationNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return res, nil
}

// GetByRef looks a reservation up by its payment reference.  Used by
// the status endpoint polled by the storefront while the customer
// waits for the PIX transfer to settle.
func (r *ReservationRepo) GetByRef(ctx context.Context, ref string) (*model.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE payment_ref = ?`, ref))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return res, nil
}

// ListByPlan returns all reservations against a plan ordered by
// creation time descending (newest first).  Used by the admin panel.
func (r *ReservationRepo) ListByPlan(ctx context.Context, planID uint64) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE plan_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		var res model.Reservation
		var paymentRef sql.NullString
		var paidAt sql.NullTime
		if err := rows.Scan(
			&res.ID, &res.PlanID, &res.Name, &res.Email, &res.Phone,
			&paymentRef, &res.Status, &paidAt, &res.CreatedAt, &res.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if paymentRef.Valid {
			ref := paymentRef.String
			res.PaymentRef = &ref
		}
		if paidAt.Valid {
			t := paidAt.Time
			res.PaidAt = &t
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// CountByPlanTx counts the reservations recorded against a plan within
// a transaction.  The SlotStore does not need it for correctness; it
// exists for the admin consistency report that cross-checks used_slots
// against the audit trail.
func (r *ReservationRepo) CountByPlanTx(ctx context.Context, tx *sql.Tx, planID uint64) (uint32, error) {
	var n uint32
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE plan_id = ?`, planID).Scan(&n)
	return n, err
}

// Package repository contains data access logic for plans and
// reservations. This file defines the PlanRepo, which owns the plans
// table. The used_slots counter is mutated exclusively through the
// *Tx methods below so that every increment participates in the
// atomic find-and-reserve unit driven by the SlotStore.
package repository

import (
	"context"      // context for controlling query lifetime
	"database/sql" // sql provides DB abstraction
	"errors"       // errors for sentinel comparisons

	"github.com/slotpix/slot-reservation/internal/model"
)

// PlanRepo manages persistence for plans.
type PlanRepo struct {
	db *sql.DB
}

// NewPlanRepo constructs a PlanRepo given a DB handle.
func NewPlanRepo(db *sql.DB) *PlanRepo { return &PlanRepo{db: db} }

// DB exposes the underlying sql.DB.  It allows callers to begin
// transactions spanning multiple repositories.  The SlotStore uses
// this to run the reserve unit across plans and reservations.
func (r *PlanRepo) DB() *sql.DB { return r.db }

// planColumns is the select list shared by every query that scans a
// full plan row.
const planColumns = `id, name, total_slots, used_slots, invite_link, price_cents, created_at, updated_at`

// Create inserts a new plan and populates the generated ID and the
// DB-default timestamps on the provided struct.  used_slots starts at
// zero; total_slots is fixed from then on.
func (r *PlanRepo) Create(ctx context.Context, p *model.Plan) error {
	const q = `INSERT INTO plans (name, total_slots, invite_link, price_cents) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, p.Name, p.TotalSlots, p.InviteLink, p.PriceCents)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	// Query back the full row to populate timestamps and defaults.
	return r.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = ?`, p.ID).Scan(
		&p.ID, &p.Name, &p.TotalSlots, &p.UsedSlots, &p.InviteLink, &p.PriceCents, &p.CreatedAt, &p.UpdatedAt,
	)
}

// GetByID returns a single plan or ErrPlanNotFound.
func (r *PlanRepo) GetByID(ctx context.Context, id uint64) (*model.Plan, error) {
	var p model.Plan
	err := r.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = ?`, id).Scan(
		&p.ID, &p.Name, &p.TotalSlots, &p.UsedSlots, &p.InviteLink, &p.PriceCents, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return &p, nil
}

// List returns all plans ordered by id ascending.  The ordering
// matches the preference order of the reserve unit so the admin view
// shows plans in the order they will be filled.
func (r *PlanRepo) List(ctx context.Context) ([]model.Plan, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+planColumns+` FROM plans ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	plans := make([]model.Plan, 0)
	for rows.Next() {
		var p model.Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.TotalSlots, &p.UsedSlots, &p.InviteLink, &p.PriceCents, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// FindAvailable returns the plan with the smallest id among those with
// spare capacity, or ErrSlotExhausted when no such plan exists.  This
// is the read-only path; it takes no locks and must not be used to
// decide a reservation — only the transactional FindAvailableTx below
// feeds the reserve unit.
func (r *PlanRepo) FindAvailable(ctx context.Context) (*model.Plan, error) {
	const q = `SELECT ` + planColumns + ` FROM plans WHERE used_slots < total_slots ORDER BY id ASC LIMIT 1`
	var p model.Plan
	err := r.db.QueryRowContext(ctx, q).Scan(
		&p.ID, &p.Name, &p.TotalSlots, &p.UsedSlots, &p.InviteLink, &p.PriceCents, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSlotExhausted
		}
		return nil, err
	}
	return &p, nil
}

// GetByIDTx reads a plan within the given transaction with a shared
// lock, so the admin audit sees used_slots and the reservation count
// from one consistent point in time.
func (r *PlanRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Plan, error) {
	const q = `SELECT ` + planColumns + ` FROM plans WHERE id = ? LOCK IN SHARE MODE`
	var p model.Plan
	err := tx.QueryRowContext(ctx, q, id).Scan(
		&p.ID, &p.Name, &p.TotalSlots, &p.UsedSlots, &p.InviteLink, &p.PriceCents, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return &p, nil
}

// FindAvailableTx selects the first plan with spare capacity within the
// given transaction and locks the row with FOR UPDATE.  Concurrent
// reserve units queue on this lock, which is what serializes the
// read-check-write sequence: by the time a competing transaction
// acquires the lock it observes all previously committed increments.
// Returns ErrSlotExhausted when every plan is full.
func (r *PlanRepo) FindAvailableTx(ctx context.Context, tx *sql.Tx) (*model.Plan, error) {
	const q = `SELECT ` + planColumns + `
	           FROM plans
	           WHERE used_slots < total_slots
	           ORDER BY id ASC
	           LIMIT 1
	           FOR UPDATE`
	var p model.Plan
	err := tx.QueryRowContext(ctx, q).Scan(
		&p.ID, &p.Name, &p.TotalSlots, &p.UsedSlots, &p.InviteLink, &p.PriceCents, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSlotExhausted
		}
		return nil, err
	}
	return &p, nil
}

// ConsumeSlotTx increments used_slots by exactly one within the given
// transaction.  The WHERE clause re-checks capacity so the increment
// is conditional even if a caller ever reaches this without holding
// the row lock; zero rows affected means the plan filled up and the
// unit must abort with ErrSlotExhausted.
func (r *PlanRepo) ConsumeSlotTx(ctx context.Context, tx *sql.Tx, planID uint64) error {
	const q = `UPDATE plans SET used_slots = used_slots + 1 WHERE id = ? AND used_slots < total_slots`
	res, err := tx.ExecContext(ctx, q, planID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSlotExhausted
	}
	return nil
}

package model

import "time"

// Plan represents a pool of identical subscription slots that share a
// single invite link.  Capacity accounting lives entirely in the
// database: TotalSlots is fixed at creation and UsedSlots is mutated
// only by the atomic reserve unit in the repository layer.  A plan is
// exhausted once UsedSlots == TotalSlots and must never be selected
// again.
//
// Fields:
//  ID         – primary key; also the deterministic tie-break key when
//               several plans have spare capacity (smallest id wins).
//  Name       – human readable label shown in the admin panel.
//  TotalSlots – fixed capacity of the pool.
//  UsedSlots  – slots consumed so far; 0 <= UsedSlots <= TotalSlots.
//  InviteLink – opaque link revealed to a customer after reserving.
//  PriceCents – charge amount for one slot in cents.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Plan struct {
	ID         uint64    `json:"id"`          // plans.id
	Name       string    `json:"name"`        // plans.name
	TotalSlots uint32    `json:"total_slots"` // plans.total_slots
	UsedSlots  uint32    `json:"used_slots"`  // plans.used_slots
	InviteLink string    `json:"invite_link"` // plans.invite_link
	PriceCents uint32    `json:"price_cents"` // plans.price_cents
	CreatedAt  time.Time `json:"created_at"`  // plans.created_at
	UpdatedAt  time.Time `json:"updated_at"`  // plans.updated_at
}

// Available reports whether the plan still has spare capacity.
func (p Plan) Available() bool { return p.UsedSlots < p.TotalSlots }

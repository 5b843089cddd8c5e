package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/slotpix/slot-reservation/internal/model"
	"github.com/slotpix/slot-reservation/internal/payment"
	"github.com/slotpix/slot-reservation/internal/queue"
	"github.com/slotpix/slot-reservation/internal/repository"
)

// ErrStoreUnavailable signals a transient storage failure: the atomic
// unit of work could not be executed at all. Retrying the whole
// checkout is safe because a retry re-runs the full find-and-reserve
// unit; it can never double-book.
var ErrStoreUnavailable = errors.New("storage unavailable")

// ErrChargeFailed signals that the slot was reserved but the payment
// provider rejected the charge creation. The slot stays consumed (the
// same policy as an abandoned payment); the caller may surface a
// payment error while keeping the reservation addressable by id.
var ErrChargeFailed = errors.New("charge creation failed")

// PublishFunc publishes a confirmation event to the broker.  Injected
// so tests can observe events without RabbitMQ.
type PublishFunc func(ctx context.Context, ev queue.PaymentConfirmedEvent) error

// Reservation is the reservation core.  It wires the atomic slot
// store, the payment provider and the event publisher together and
// translates storage errors into the closed taxonomy handlers switch
// on: repository.ErrSlotExhausted, repository.ErrReservationNotFound,
// ErrStoreUnavailable, ErrChargeFailed.
type Reservation struct {
	store       SlotStore
	provider    payment.Provider
	cache       *StatusCache // may be nil when Redis is down
	publish     PublishFunc  // may be nil to disable events
	amountCents int
	chargeDesc  string
}

// NewReservation constructs the service.  store is mandatory; provider,
// cache and publish may be nil (checkout without a provider returns
// ErrChargeFailed after reserving, which only makes sense in tests).
func NewReservation(store SlotStore, provider payment.Provider, cache *StatusCache, publish PublishFunc, amountCents int, chargeDesc string) *Reservation {
	if store == nil {
		panic("nil SlotStore passed to NewReservation")
	}
	return &Reservation{
		store:       store,
		provider:    provider,
		cache:       cache,
		publish:     publish,
		amountCents: amountCents,
		chargeDesc:  chargeDesc,
	}
}

// CheckoutResult is returned to the storefront after a successful
// checkout: the reservation identity, the invite link of the granted
// plan and the PIX payment artifacts to render.
type CheckoutResult struct {
	ReservationID uint64          `json:"reservation_id"`
	PlanID        uint64          `json:"plan_id"`
	InviteLink    string          `json:"invite_link"`
	Payment       *payment.Charge `json:"payment,omitempty"`
}

// Checkout runs the full checkout-intent flow: atomically reserve a
// slot, create the PIX charge, attach the charge id to the
// reservation.  Slot capacity is committed before the charge is
// attempted, so a provider failure leaves the slot consumed — the
// reservation remains addressable and the charge can be retried out
// of band.
func (s *Reservation) Checkout(ctx context.Context, contact model.Contact) (*CheckoutResult, error) {
	plan, res, err := s.store.Reserve(ctx, contact)
	if err != nil {
		if !repository.IsRetryable(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	out := &CheckoutResult{
		ReservationID: res.ID,
		PlanID:        plan.ID,
		InviteLink:    plan.InviteLink,
	}
	if s.provider == nil {
		return out, ErrChargeFailed
	}
	charge, err := s.provider.CreateCharge(ctx, s.amountCents, s.chargeDesc, contact.Email)
	if err != nil {
		log.Printf("reservation: charge creation failed for reservation %d: %v", res.ID, err)
		return out, fmt.Errorf("%w: %v", ErrChargeFailed, err)
	}
	if err := s.store.AttachPaymentRef(ctx, res.ID, charge.TxID); err != nil {
		log.Printf("reservation: attach payment ref %s to reservation %d failed: %v", charge.TxID, res.ID, err)
		return out, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	out.Payment = charge
	return out, nil
}

// ConfirmPayment marks the reservation behind the payment reference as
// paid.  The transition is idempotent: a redelivered confirmation for
// an already paid reservation returns nil and publishes nothing.
// Unknown references return repository.ErrReservationNotFound so the
// webhook handler can log and still acknowledge.
func (s *Reservation) ConfirmPayment(ctx context.Context, ref string) error {
	// Snapshot the status first so a redelivery can be told apart
	// from the first confirmation; the UPDATE itself stays the only
	// authority on the transition.
	prev, err := s.store.ReservationByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return repository.ErrReservationNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	alreadyPaid := prev.Status == model.StatusPaid

	if err := s.store.MarkPaid(ctx, ref); err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return repository.ErrReservationNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if s.cache != nil {
		s.cache.SetPaid(ctx, ref)
	}
	if alreadyPaid || s.publish == nil {
		return nil
	}

	// Publish the confirmation event best effort; a broker outage
	// must not fail the webhook acknowledgement.
	ev := queue.PaymentConfirmedEvent{
		ReservationID: prev.ID,
		PlanID:        prev.PlanID,
		CustomerName:  prev.Name,
		CustomerEmail: prev.Email,
		PaymentRef:    ref,
		AmountCents:   uint32(s.amountCents),
		PaidAt:        time.Now().UTC().Format(time.RFC3339),
	}
	if plan, perr := s.store.PlanByID(ctx, prev.PlanID); perr == nil {
		ev.PlanName = plan.Name
	}
	go func() {
		if err := s.publish(context.WithoutCancel(ctx), ev); err != nil {
			log.Printf("reservation: publish confirmation for ref %s failed: %v", ref, err)
		}
	}()
	return nil
}

// PaymentStatus reports the status of the reservation behind a payment
// reference.  While the reservation is pending it re-checks the charge
// with the provider (the storefront polls this endpoint every few
// seconds) and promotes the reservation to paid the moment the
// provider reports the transfer settled — this is the confirmation
// path for providers without webhooks.  Paid is terminal and served
// from the Redis cache when available.
func (s *Reservation) PaymentStatus(ctx context.Context, ref string) (string, error) {
	if s.cache != nil {
		if st, ok := s.cache.Get(ctx, ref); ok {
			return st, nil
		}
	}
	res, err := s.store.ReservationByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return "", repository.ErrReservationNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if res.Status == model.StatusPaid {
		if s.cache != nil {
			s.cache.SetPaid(ctx, ref)
		}
		return model.StatusPaid, nil
	}
	if s.provider != nil {
		st, perr := s.provider.ChargeStatus(ctx, ref)
		if perr != nil {
			// Provider hiccups must not break polling; report the
			// stored status instead.
			log.Printf("reservation: status check for ref %s failed: %v", ref, perr)
			return res.Status, nil
		}
		if st == payment.ChargeApproved {
			if cerr := s.ConfirmPayment(ctx, ref); cerr != nil {
				return "", cerr
			}
			return model.StatusPaid, nil
		}
	}
	return res.Status, nil
}

// ReservationDetail returns a reservation and its plan.  The invite
// link is only meaningful to callers once the reservation is paid;
// the handler decides what to expose.
func (s *Reservation) ReservationDetail(ctx context.Context, id uint64) (*model.Reservation, *model.Plan, error) {
	res, err := s.store.ReservationByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return nil, nil, repository.ErrReservationNotFound
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	plan, err := s.store.PlanByID(ctx, res.PlanID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return res, plan, nil
}

// Availability reports whether any plan still has spare capacity.
// Used by the storefront to disable the checkout form up front.
func (s *Reservation) Availability(ctx context.Context) (bool, error) {
	_, err := s.store.FindAvailablePlan(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrSlotExhausted) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return true, nil
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/slotpix/slot-reservation/internal/model"
	"github.com/slotpix/slot-reservation/internal/repository"
	"github.com/slotpix/slot-reservation/internal/service"
)

// StatusHandler serves the endpoints the storefront polls while the
// customer waits for the PIX transfer to settle.
type StatusHandler struct {
	Svc *service.Reservation
}

func NewStatusHandler(svc *service.Reservation) *StatusHandler {
	return &StatusHandler{Svc: svc}
}

// PaymentStatus handles GET /v1/payments/:txid.  Pending reservations
// trigger a provider re-check, which is also the confirmation path for
// providers that don't deliver webhooks.
func (h *StatusHandler) PaymentStatus(c echo.Context) error {
	txid := c.Param("txid")
	if txid == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "txid required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	st, err := h.Svc.PaymentStatus(ctx, txid)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown payment"})
		}
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "try again"})
	}
	return c.JSON(http.StatusOK, echo.Map{"txid": txid, "status": st})
}

type reservationResp struct {
	ID         uint64  `json:"id"`
	PlanID     uint64  `json:"plan_id"`
	PlanName   string  `json:"plan_name"`
	Status     string  `json:"status"`
	PaidAt     *string `json:"paid_at,omitempty"`
	InviteLink string  `json:"invite_link,omitempty"`
}

// Reservation handles GET /v1/reservations/:id.  The invite link is
// only included once the reservation is paid.
func (h *StatusHandler) Reservation(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, plan, err := h.Svc.ReservationDetail(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "try again"})
	}

	out := reservationResp{
		ID:       res.ID,
		PlanID:   plan.ID,
		PlanName: plan.Name,
		Status:   res.Status,
	}
	if res.PaidAt != nil {
		s := res.PaidAt.UTC().Format(time.RFC3339)
		out.PaidAt = &s
	}
	if res.Status == model.StatusPaid {
		out.InviteLink = plan.InviteLink
	}
	return c.JSON(http.StatusOK, out)
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/slotpix/slot-reservation/internal/model"
	"github.com/slotpix/slot-reservation/internal/repository"
	"github.com/slotpix/slot-reservation/internal/service"
)

// CheckoutHandler exposes the storefront checkout endpoint.  One POST
// reserves a slot and returns the PIX charge for it.
type CheckoutHandler struct {
	Svc *service.Reservation
}

func NewCheckoutHandler(svc *service.Reservation) *CheckoutHandler {
	return &CheckoutHandler{Svc: svc}
}

type checkoutReq struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// validate normalizes the contact fields and reports the first problem
// found, mirroring what the storefront form enforces client side.
func (r *checkoutReq) validate() (model.Contact, string) {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	if r.Name == "" {
		return model.Contact{}, "name required"
	}
	if r.Email == "" {
		return model.Contact{}, "email required"
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return model.Contact{}, "invalid email"
	}
	if r.Phone == "" {
		return model.Contact{}, "phone required"
	}
	return model.Contact{Name: r.Name, Email: r.Email, Phone: r.Phone}, ""
}

// Checkout handles POST /v1/checkout.  It reserves a slot for the
// customer and returns the reservation plus the PIX charge to render.
// Sold out maps to 409, a storage outage to 503 and a provider failure
// to 502; in the 502 case the reservation was already recorded and its
// id is returned so support can follow up.
func (h *CheckoutHandler) Checkout(c echo.Context) error {
	var req checkoutReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	contact, problem := req.validate()
	if problem != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": problem})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	out, err := h.Svc.Checkout(ctx, contact)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSlotExhausted):
			return c.JSON(http.StatusConflict, echo.Map{"error": "no vacancy"})
		case errors.Is(err, service.ErrChargeFailed):
			// Slot is reserved; the charge can be retried out of band.
			return c.JSON(http.StatusBadGateway, echo.Map{
				"error":          "payment unavailable",
				"reservation_id": out.ReservationID,
			})
		default:
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "try again"})
		}
	}
	return c.JSON(http.StatusCreated, out)
}

// Availability handles GET /v1/availability: whether any plan still has
// spare capacity.  The storefront disables the form when it doesn't.
func (h *CheckoutHandler) Availability(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ok, err := h.Svc.Availability(ctx)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "try again"})
	}
	return c.JSON(http.StatusOK, echo.Map{"available": ok})
}

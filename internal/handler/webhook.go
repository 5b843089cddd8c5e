package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/slotpix/slot-reservation/internal/payment"
	"github.com/slotpix/slot-reservation/internal/repository"
	"github.com/slotpix/slot-reservation/internal/service"
)

// WebhookHandler receives Mercado Pago payment notifications.  The
// notification is only a hint: after verifying the signature the charge
// status is re-checked with the provider before the reservation is
// confirmed, so a forged or stale body can never flip a reservation.
type WebhookHandler struct {
	Svc *service.Reservation
	MP  *payment.MercadoPago
}

func NewWebhookHandler(svc *service.Reservation, mp *payment.MercadoPago) *WebhookHandler {
	return &WebhookHandler{Svc: svc, MP: mp}
}

// mpNotification mirrors the webhook body subset we read.
type mpNotification struct {
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// MercadoPago handles POST /v1/webhooks/mercadopago.  Redeliveries are
// acknowledged with 200 whether or not they change anything; Mercado
// Pago retries on anything else, so only signature failures are
// rejected.
func (h *WebhookHandler) MercadoPago(c echo.Context) error {
	var n mpNotification
	if err := c.Bind(&n); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if n.Type != "payment" || n.Data.ID == "" {
		// Other topics (plan, invoice, ...) are none of our business.
		return c.NoContent(http.StatusOK)
	}
	if !h.MP.VerifySignature(c.Request().Header.Get("x-signature"), n.Data.ID) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid signature"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	status, err := h.MP.ChargeStatus(ctx, n.Data.ID)
	if err != nil {
		log.Printf("webhook: status re-check for payment %s failed: %v", n.Data.ID, err)
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "try again"})
	}
	if status != payment.ChargeApproved {
		return c.NoContent(http.StatusOK)
	}

	if err := h.Svc.ConfirmPayment(ctx, n.Data.ID); err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			// A charge we never issued, or one created before its ref
			// was attached. Log and acknowledge; retrying won't help.
			log.Printf("webhook: no reservation for payment %s", n.Data.ID)
			return c.NoContent(http.StatusOK)
		}
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "try again"})
	}
	return c.NoContent(http.StatusOK)
}

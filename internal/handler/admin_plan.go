package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/slotpix/slot-reservation/internal/model"
	"github.com/slotpix/slot-reservation/internal/repository"
)

// AdminPlanHandler serves the admin panel: plan management and the
// reservation listings behind it.  Every route is JWT protected and
// requires the ADMIN role.
type AdminPlanHandler struct {
	Plans        *repository.PlanRepo
	Reservations *repository.ReservationRepo
}

func NewAdminPlanHandler(p *repository.PlanRepo, r *repository.ReservationRepo) *AdminPlanHandler {
	return &AdminPlanHandler{Plans: p, Reservations: r}
}

type createPlanReq struct {
	Name       string `json:"name"`
	TotalSlots uint32 `json:"total_slots"`
	InviteLink string `json:"invite_link"`
	PriceCents uint32 `json:"price_cents"`
}

// CreatePlan handles POST /v1/admin/plans.  total_slots is fixed at
// creation; zero is allowed and simply means the plan never sells.
func (h *AdminPlanHandler) CreatePlan(c echo.Context) error {
	var req createPlanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	req.InviteLink = strings.TrimSpace(req.InviteLink)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	if req.InviteLink == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invite_link required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p := model.Plan{
		Name:       req.Name,
		TotalSlots: req.TotalSlots,
		InviteLink: req.InviteLink,
		PriceCents: req.PriceCents,
	}
	if err := h.Plans.Create(ctx, &p); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create plan failed"})
	}
	return c.JSON(http.StatusCreated, p)
}

// ListPlans handles GET /v1/admin/plans.
func (h *AdminPlanHandler) ListPlans(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	plans, err := h.Plans.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"plans": plans})
}

// PlanReservations handles GET /v1/admin/plans/:id/reservations.
func (h *AdminPlanHandler) PlanReservations(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	plan, err := h.Plans.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrPlanNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "plan not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	list, err := h.Reservations.ListByPlan(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"plan": plan, "reservations": list})
}

// PlanAudit handles GET /v1/admin/plans/:id/audit.  It cross-checks the
// used_slots counter against the reservation rows inside one
// transaction; the two are written together by the reserve unit, so a
// mismatch means somebody touched the tables by hand.
func (h *AdminPlanHandler) PlanAudit(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tx, err := h.Plans.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	defer tx.Rollback() // read-only

	p, err := h.Plans.GetByIDTx(ctx, tx, id)
	if err != nil {
		if errors.Is(err, repository.ErrPlanNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "plan not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	count, err := h.Reservations.CountByPlanTx(ctx, tx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"plan_id":      p.ID,
		"used_slots":   p.UsedSlots,
		"reservations": count,
		"consistent":   p.UsedSlots == count,
	})
}

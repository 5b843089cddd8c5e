package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/slotpix/slot-reservation/internal/handler"    // import the handlers that implement business logic
	"github.com/slotpix/slot-reservation/internal/middleware" // import middleware for JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Used by load balancers and monitoring to verify the service is up.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the admin authentication routes and the protected
// /v1/me probe.  Unauthenticated operations live under /v1/auth, protected
// endpoints under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("ADMIN"))
	auth.GET("/me", a.Me)
}

// RegisterStorefront registers the public checkout flow: availability,
// checkout, payment status polling, reservation detail and the provider
// webhook.  No JWT applies here; checkout and the polled endpoints are
// rate limited per client instead (rl may be nil when Redis is down, in
// which case the routes run unthrottled).
func RegisterStorefront(e *echo.Echo, co *handler.CheckoutHandler, st *handler.StatusHandler, wh *handler.WebhookHandler, rl echo.MiddlewareFunc) {
	g := e.Group("/v1")
	if rl != nil {
		g.Use(rl)
	}
	g.GET("/availability", co.Availability)
	g.POST("/checkout", co.Checkout)
	g.GET("/payments/:txid", st.PaymentStatus)
	g.GET("/reservations/:id", st.Reservation)

	// Webhooks are authenticated by signature, not by JWT, and must not
	// be rate limited: the provider retries aggressively and a throttled
	// delivery only delays the customer's confirmation.  wh is nil for
	// providers without webhooks (Efí confirms via the status poll).
	if wh != nil {
		e.POST("/v1/webhooks/mercadopago", wh.MercadoPago)
	}
}

// RegisterAdmin registers the plan management panel.  Every route
// requires a valid access token carrying the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminPlanHandler, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("ADMIN"))

	g.POST("/plans", h.CreatePlan)
	g.GET("/plans", h.ListPlans)
	g.GET("/plans/:id/reservations", h.PlanReservations)
	g.GET("/plans/:id/audit", h.PlanAudit)
}

package main // Entry point package

import (
	"context" // context for the schema bootstrap timeout
	"log"     // Logging library
	"net/http"
	"time"

	"github.com/joho/godotenv"    // loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/slotpix/slot-reservation/internal/config"     // Internal config loader
	"github.com/slotpix/slot-reservation/internal/database"   // MySQL connection and schema bootstrap
	"github.com/slotpix/slot-reservation/internal/handler"    // HTTP handlers
	"github.com/slotpix/slot-reservation/internal/middleware" // rate limiting
	"github.com/slotpix/slot-reservation/internal/payment"    // PIX provider clients
	"github.com/slotpix/slot-reservation/internal/queue"      // RabbitMQ publisher and consumer
	"github.com/slotpix/slot-reservation/internal/repository" // DB repositories
	"github.com/slotpix/slot-reservation/internal/router"     // Internal router setup
	"github.com/slotpix/slot-reservation/internal/service"    // reservation core
)

func main() {
	_ = godotenv.Load() // best effort; deployments set the environment directly

	cfg := config.Load() // Load environment config

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	bootCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := database.EnsureSchema(bootCtx, db); err != nil {
		log.Fatalf("schema bootstrap failed: %v", err)
	}
	cancel()

	plans := repository.NewPlanRepo(db)
	reservations := repository.NewReservationRepo(db)
	users := repository.NewUserRepo(db)
	store := repository.NewSlotStore(db, plans, reservations)

	// Provider selection: Mercado Pago confirms via signed webhooks,
	// Efí via the status poll only.
	var provider payment.Provider
	var mp *payment.MercadoPago
	switch cfg.Provider {
	case "mercadopago":
		mp = payment.NewMercadoPago(cfg.MPAccessToken, cfg.MPWebhookSecret)
		provider = mp
	case "efi":
		var hc *http.Client
		if cfg.EfiCertFile != "" && cfg.EfiKeyFile != "" {
			hc, err = payment.NewEfiMTLSClient(cfg.EfiCertFile, cfg.EfiKeyFile)
			if err != nil {
				log.Fatalf("efi client certificate: %v", err)
			}
		}
		provider = payment.NewEfi(hc, cfg.EfiClientID, cfg.EfiClientSecret, cfg.EfiPixKey, cfg.EfiSandbox)
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and status caching disabled")
	}
	cache := service.NewStatusCache(rdb, 0)

	svc := service.NewReservation(store, provider, cache, queue.PublishPaymentConfirmed,
		cfg.ChargeAmountCent, cfg.ChargeDesc)

	e := echo.New()
	router.RegisterRoutes(e) // health check
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users), cfg.JWTSecret)

	var rl echo.MiddlewareFunc
	if rdb != nil {
		rl = middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	}
	var wh *handler.WebhookHandler
	if mp != nil {
		wh = handler.NewWebhookHandler(svc, mp)
	}
	router.RegisterStorefront(e, handler.NewCheckoutHandler(svc), handler.NewStatusHandler(svc), wh, rl)
	router.RegisterAdmin(e, handler.NewAdminPlanHandler(plans, reservations), cfg.JWTSecret)

	// Background consumer appends confirmed payments to logs/payments.log.
	go func() {
		if err := queue.StartPaymentConsumer(); err != nil {
			log.Printf("payment consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, provider=%s)", addr, cfg.Env, cfg.Provider)

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}

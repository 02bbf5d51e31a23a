package cmd

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"

	"ticketpass/clock"
	"ticketpass/config"
	"ticketpass/handlers"
	"ticketpass/internal/wallet"
	_ "ticketpass/migrations"
	"ticketpass/monitoring"
	"ticketpass/security"
	"ticketpass/services"
	"ticketpass/store"
	"ticketpass/utils"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient, err := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// Initialize PubNub
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey

	pn := pubnub.NewPubNub(pnConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize wallet connector
	walletConn, err := wallet.New(ctx, &wallet.Config{
		Provider: wallet.Provider(cfg.WalletProvider),
		RPCURL:   cfg.WalletRPCURL,
		Timeout:  cfg.WalletTimeout,
	})
	if err != nil {
		return err
	}
	defer walletConn.Close(context.Background())

	// Initialize services
	monitor := monitoring.NewMonitor(redisClient)
	ticketStore := store.New(app)
	systemClock := clock.NewSystem()

	reservations := services.NewReservationService(
		ticketStore, walletConn, redisClient, pn, monitor, cfg, systemClock)
	redemptions := services.NewRedemptionService(ticketStore, systemClock, monitor)
	verifications := services.NewVerificationService(redemptions, monitor, cfg.VerifyTimeout)
	scanFeed := services.NewScanFeed(pn, verifications, cfg.GateScanChannel)

	// Initialize handlers
	eventHandler := handlers.NewEventHandler(ticketStore)
	ticketHandler := handlers.NewTicketHandler(
		reservations, verifications, ticketStore, walletConn, cfg.Environment)
	limiter := security.NewRateLimiter(redisClient)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Start background tasks
	go reservations.ReconcilePendingPurchases(ctx)
	go monitor.CollectAvailability(ctx)

	if cfg.EnableMetrics {
		go serveMetrics(cfg.MetricsPort)
	}

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		scanFeed.Start(ctx)

		// Event endpoints
		e.Router.GET("/api/events", eventHandler.List)
		e.Router.GET("/api/events/{id}", eventHandler.Get)
		e.Router.POST("/api/events", eventHandler.Create)

		// Ticket endpoints
		e.Router.POST("/api/tickets/purchase", ticketHandler.Purchase).
			BindFunc(limiter.Limit("purchase", cfg.PurchaseRateLimit, cfg.RateLimitWindow))
		e.Router.POST("/api/tickets/verify-code", ticketHandler.VerifyCode).
			BindFunc(security.RequireGateKey(cfg.GateKeyHash)).
			BindFunc(limiter.Limit("verify", cfg.VerifyRateLimit, cfg.RateLimitWindow))
		e.Router.GET("/api/tickets/user/{address}", ticketHandler.UserTickets)

		// Test endpoint for payment simulation
		if cfg.Environment == "development" {
			e.Router.POST("/api/test/simulate-payment", ticketHandler.SimulatePayment)
		}

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			if _, err := app.FindCollectionByNameOrId("events"); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

func serveMetrics(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Printf("Metrics server stopped: %v", err)
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}

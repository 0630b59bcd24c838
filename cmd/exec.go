package cmd

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"venue-system/config"
	"venue-system/handlers"
	"venue-system/models"
	"venue-system/monitoring"
	"venue-system/security"
	"venue-system/services"
	"venue-system/utils"

	_ "venue-system/migrations"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL)
	defer redisClient.Close()

	// Initialize PubNub
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey

	pn := pubnub.NewPubNub(pnConfig)

	// Pick the mailer: real sends need an API key and a from address.
	var mailer services.Mailer
	if cfg.MailerSendAPIKey != "" && cfg.MailFromEmail != "" {
		mailer = services.NewMailerSendMailer(cfg.MailerSendAPIKey, cfg.MailFromName, cfg.MailFromEmail)
	} else {
		log.Println("MailerSend not configured, using dev mailer")
		mailer = services.NewDevMailer()
	}

	venueLoc := time.Local
	if cfg.VenueTimezone != "" {
		loc, err := time.LoadLocation(cfg.VenueTimezone)
		if err != nil {
			log.Printf("Invalid VENUE_TIMEZONE %q, using local time: %v", cfg.VenueTimezone, err)
		} else {
			venueLoc = loc
		}
	}

	// Initialize services
	monitor := monitoring.NewMonitor(redisClient)
	verifyService := services.NewVerifyService(services.NewStore(app), venueLoc)
	notifyService := services.NewNotifyService(pn, mailer, cfg.NotifyCooldown)
	sessionManager := services.NewSessionManager(redisClient, verifyService, notifyService, monitor, cfg)

	// Initialize handlers
	scanHandler := handlers.NewScanHandler(app, sessionManager)
	rateLimiter := security.NewRateLimiter(redisClient, cfg.ScanRateLimit, cfg.ScanRateWindow)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Metrics endpoint on its own port
	if cfg.EnableMetrics {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(":"+cfg.MetricsPort, mux); err != nil {
				log.Printf("Metrics server stopped: %v", err)
			}
		}()
	}

	// Register routes
	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Scanning session endpoints
		e.Router.POST("/api/v1/scan/sessions", scanHandler.OpenSession)
		e.Router.GET("/api/v1/scan/sessions/{sessionId}", scanHandler.GetSession)
		e.Router.POST("/api/v1/scan/sessions/{sessionId}/stop", scanHandler.CloseSession)
		e.Router.POST("/api/v1/scan/sessions/{sessionId}/verify", scanHandler.VerifyScan).
			BindFunc(rateLimiter.ScanRateLimit())

		// Booking QR issuing
		e.Router.POST("/api/v1/bookings/{bookingId}/qr", scanHandler.IssueBookingQR)

		// Venue audit trail
		e.Router.GET("/api/v1/venues/{venueId}/scan-log", scanHandler.RecentScans)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		setupBookingHooks(app)

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// setupBookingHooks resets scan audit fields when a booking flips back from
// checked_in (an operator undo), so a re-issued pass verifies cleanly.
func setupBookingHooks(app *pocketbase.PocketBase) {
	app.OnRecordUpdateRequest("bookings").BindFunc(func(e *core.RecordRequestEvent) error {
		newStatus := e.Record.GetString("status")
		oldStatus := e.Record.Original().GetString("status")

		if oldStatus == models.BookingStatusCheckedIn && newStatus == models.BookingStatusConfirmed {
			e.Record.Set("scan_count", 0)
			e.Record.Set("last_scanned_at", "")
			slog.Info("Booking check-in reverted, scan audit reset",
				"bookingID", e.Record.Id,
			)
		}

		return e.Next()
	})
}

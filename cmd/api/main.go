package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/msaada/backend/internal/anomaly"
	"github.com/msaada/backend/internal/auth"
	"github.com/msaada/backend/internal/chat"
	"github.com/msaada/backend/internal/circuitbreaker"
	"github.com/msaada/backend/internal/config"
	"github.com/msaada/backend/internal/database"
	"github.com/msaada/backend/internal/handlers"
	"github.com/msaada/backend/internal/langdetect"
	"github.com/msaada/backend/internal/middleware"
	"github.com/msaada/backend/internal/payments"
)

func main() {
	// .env is optional; real deployments inject env vars directly
	_ = godotenv.Load()

	cfg := loadConfig()

	// Cloud Run injects PORT; it wins over the config file
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}

	// Initialize Supabase client
	supabaseClient, err := database.NewSupabaseClient()
	if err != nil {
		log.Fatalf("Failed to initialize Supabase client: %v", err)
	}

	// Direct Postgres reader for the anomaly scans (Supabase REST is too
	// chatty for windowed aggregate reads)
	var usageReader anomaly.UsageReader
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		pgReader, err := anomaly.NewPGUsageReader(dsn)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		usageReader = pgReader
	} else {
		log.Println("⚠️  DATABASE_URL not set, anomaly reports disabled")
	}

	// Credential resolver
	idp := auth.NewSupabaseIdentityProvider(os.Getenv("SUPABASE_URL"), os.Getenv("SUPABASE_ANON_KEY"))
	resolver := auth.NewResolver(supabaseClient, idp, cfg.Auth.RequiredTier)

	// Language detector: embedded packs unless a file override is given
	detector := buildDetector(cfg)

	// Session cache: redis when configured, in-process fallback otherwise
	var sessionCache chat.SessionCache
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = cfg.Redis.Addr
	}
	if redisAddr != "" {
		redisCache, err := chat.NewRedisSessionCache(redisAddr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Printf("⚠️  Redis unavailable (%v), using in-memory session cache", err)
			sessionCache = chat.NewMemorySessionCache()
		} else {
			sessionCache = redisCache
		}
	} else {
		sessionCache = chat.NewMemorySessionCache()
	}

	// Generative chat backend
	ctx := context.Background()
	generator, err := chat.NewGeminiGenerator(ctx,
		os.Getenv("GOOGLE_CLOUD_PROJECT"),
		os.Getenv("GOOGLE_CLOUD_LOCATION"),
		cfg.Chat.Model,
	)
	if err != nil {
		log.Fatalf("Failed to initialize generative backend: %v", err)
	}
	guarded := chat.Guard(generator, circuitbreaker.New("gemini", 5, 30*time.Second))
	pipeline := chat.NewPipeline(detector, guarded, sessionCache, supabaseClient, cfg.Chat.Timeout())

	// PayPal webhook
	verifier := payments.NewPayPalVerifier(
		cfg.PayPal.BaseURL,
		os.Getenv("PAYPAL_CLIENT_ID"),
		os.Getenv("PAYPAL_CLIENT_SECRET"),
		cfg.PayPal.WebhookID,
	)
	webhook := payments.NewWebhookHandler(verifier, supabaseClient)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		MaxCallsPerMinute: cfg.Limits.MaxCallsPerMinute,
		BurstSize:         cfg.Limits.BurstSize,
	})

	// Create router
	router := mux.NewRouter()
	router.Use(middleware.Metrics)

	// Health check endpoint (required for Cloud Run)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		_, err := supabaseClient.ListServices(ctx, "", 1)
		supabaseStatus := "connected"
		if err != nil {
			supabaseStatus = "error"
		}

		json.NewEncoder(w).Encode(map[string]string{
			"status":   "healthy",
			"service":  "msaada-api",
			"supabase": supabaseStatus,
		})
	}).Methods("GET")

	// Prometheus metrics
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Payment webhooks authenticate by signature, not by principal
	router.Handle("/webhooks/paypal", webhook).Methods("POST")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Principal(resolver))
	api.Use(rateLimiter.Middleware)
	api.Use(middleware.UsageRecorder(supabaseClient))

	// Chat
	api.HandleFunc("/chat", handlers.HandleChat(pipeline)).Methods("POST")

	// Education API
	api.HandleFunc("/education/cases", handlers.HandleListCases(supabaseClient)).Methods("GET")
	api.Handle("/education/cases",
		middleware.RequireScope("cases:write")(
			middleware.RequireRole(auth.RoleOwnerAdmin, auth.RoleLimitedStaff)(
				handlers.HandleCreateCase(supabaseClient)))).Methods("POST")
	api.HandleFunc("/education/cases/{id}", handlers.HandleGetCase(supabaseClient)).Methods("GET")

	// Org admin surface
	admin := api.PathPrefix("/org").Subrouter()
	admin.Use(middleware.RequireRole(auth.RoleOwnerAdmin))
	admin.HandleFunc("/usage", handlers.HandleOrgUsage(supabaseClient)).Methods("GET")
	if usageReader != nil {
		admin.HandleFunc("/usage/anomalies", handlers.HandleOrgAnomalies(usageReader)).Methods("GET")
	}

	// Create server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown (Cloud Run sends SIGTERM)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal, shutting down gracefully...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	log.Printf("🚀 Msaada API starting on port %s", port)
	log.Printf("📊 Health check: http://localhost:%s/health", port)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed to start: %v", err)
	}

	log.Println("Server stopped")
}

func loadConfig() *config.Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		log.Printf("No config file at %s, using defaults", path)
		return config.Default()
	}
	return cfg
}

func buildDetector(cfg *config.Config) *langdetect.Detector {
	if cfg.Language.PacksPath != "" {
		packs, err := langdetect.LoadPacks(cfg.Language.PacksPath)
		if err != nil {
			log.Fatalf("Failed to load language packs from %s: %v", cfg.Language.PacksPath, err)
		}
		return langdetect.NewDetector(packs)
	}
	return langdetect.NewDetector(langdetect.DefaultPacks())
}

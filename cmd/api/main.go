package main

import (
	"bufio"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RensithUdara/Online-Train-Ticket-Booking/internal/admission"
	"github.com/RensithUdara/Online-Train-Ticket-Booking/internal/app"
	"github.com/RensithUdara/Online-Train-Ticket-Booking/internal/clock"
	"github.com/RensithUdara/Online-Train-Ticket-Booking/internal/storage/postgres"
	transporthttp "github.com/RensithUdara/Online-Train-Ticket-Booking/internal/transport/http"
	"github.com/RensithUdara/Online-Train-Ticket-Booking/migrations"
)

const defaultPort = "8080"
const defaultCORSOrigins = "http://localhost:5173,http://127.0.0.1:5173"
const defaultPaymentDelay = 1500 * time.Millisecond
const shutdownTimeout = 10 * time.Second

func main() {
	logger := log.Default()
	loadEnvFile(logger)

	port := os.Getenv("PORT")
	if port == "" {
		logger.Printf("WARN: PORT not set, using default %s", defaultPort)
		port = defaultPort
	}

	corsEnv := os.Getenv("CORS_ORIGINS")
	if corsEnv == "" {
		logger.Printf("WARN: CORS_ORIGINS not set, using default local origins")
		corsEnv = defaultCORSOrigins
	}

	cfg := admissionConfig(logger)
	engine, err := admission.NewEngine(cfg)
	if err != nil {
		log.Fatalf("admission engine: %v", err)
	}

	paymentDelay := durationEnv(logger, "PAYMENT_DELAY_MS", defaultPaymentDelay)
	payments := app.NewSimulatedPaymentProcessor(paymentDelay)

	svcOpts := []app.BookingServiceOption{app.WithLogger(logger)}

	// The audit trail is optional: without DATABASE_URL the service runs
	// purely in memory and decisions are simply not recorded.
	var auditReader transporthttp.AuditReader
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		pool, err := pgxpool.New(startupCtx, dbURL)
		if err != nil {
			cancel()
			log.Fatalf("connect to db: %v", err)
		}
		defer pool.Close()

		if err := pool.Ping(startupCtx); err != nil {
			cancel()
			log.Fatalf("db ping: %v", err)
		}
		if err := migrations.Apply(startupCtx, pool); err != nil {
			cancel()
			log.Fatalf("apply migrations: %v", err)
		}
		cancel()

		auditRepo := postgres.NewAuditRepository(pool)
		svcOpts = append(svcOpts, app.WithAuditRecorder(auditRepo))
		auditReader = auditRepo
		logger.Printf("booking audit trail enabled")
	} else {
		logger.Printf("WARN: DATABASE_URL not set, booking audit trail disabled")
	}

	bookingSvc := app.NewBookingService(engine, payments, clock.NewSystem(), svcOpts...)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", transporthttp.HealthHandler)
	mux.Handle("/bookings", transporthttp.HandleCreateBooking(bookingSvc))
	mux.Handle("/inventory", transporthttp.HandleInventory(bookingSvc))
	mux.Handle("/admin/audit", transporthttp.HandleAuditLog(auditReader))
	mux.Handle("/", transporthttp.NotFoundHandler())

	corsOrigins := parseCSV(corsEnv)
	throttleRPS := floatEnv(logger, "HTTP_RATE_LIMIT_RPS", 100)
	handler := transporthttp.RequestLogger(
		transporthttp.Throttle(throttleRPS, int(throttleRPS), transporthttp.CORS(corsOrigins, mux)),
		logger,
	)

	server := &http.Server{
		Addr:    ":" + port,
		Handler: handler,
	}

	log.Printf("api listening on :%s capacity=%d max_per_user=%d window=%s max_requests=%d",
		port, cfg.TotalCapacity, cfg.MaxPerIdentity, cfg.RateLimitWindow, cfg.MaxRequestsPerWindow)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
		}
	case <-stopCtx.Done():
		log.Printf("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("server shutdown error: %v", err)
	}
	log.Printf("server stopped")
}

func admissionConfig(logger *log.Logger) admission.Config {
	cfg := admission.DefaultConfig()
	cfg.TotalCapacity = intEnv(logger, "TOTAL_TICKETS", cfg.TotalCapacity)
	cfg.MaxPerIdentity = intEnv(logger, "MAX_TICKETS_PER_USER", cfg.MaxPerIdentity)
	windowMinutes := intEnv(logger, "RATE_LIMIT_WINDOW_MINUTES", int(cfg.RateLimitWindow/time.Minute))
	cfg.RateLimitWindow = time.Duration(windowMinutes) * time.Minute
	cfg.MaxRequestsPerWindow = intEnv(logger, "MAX_REQUESTS_PER_WINDOW", cfg.MaxRequestsPerWindow)
	cfg.FanOutThreshold = intEnv(logger, "DEVICE_FANOUT_THRESHOLD", cfg.FanOutThreshold)
	return cfg
}

func intEnv(logger *log.Logger, key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		logger.Printf("WARN: %s=%q is not an integer, using default %d", key, raw, fallback)
		return fallback
	}
	return value
}

func floatEnv(logger *log.Logger, key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		logger.Printf("WARN: %s=%q is not a number, using default %g", key, raw, fallback)
		return fallback
	}
	return value
}

func durationEnv(logger *log.Logger, key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms < 0 {
		logger.Printf("WARN: %s=%q is not a millisecond count, using default %s", key, raw, fallback)
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func parseCSV(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func loadEnvFile(logger *log.Logger) {
	path, err := findEnvFile()
	if err != nil {
		logger.Printf("WARN: failed to locate .env: %v", err)
		return
	}
	if path == "" {
		return
	}

	file, err := os.Open(path)
	if err != nil {
		logger.Printf("WARN: failed to open %s: %v", path, err)
		return
	}
	if err := parseEnvFile(logger, file); err != nil {
		logger.Printf("WARN: failed to load %s: %v", path, err)
	} else {
		logger.Printf("loaded env from %s", path)
	}
	_ = file.Close()
}

func findEnvFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for i := 0; i < 6; i++ {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil
}

func parseEnvFile(logger *log.Logger, file *os.File) error {
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}
		value = trimQuotes(value)
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			logger.Printf("WARN: failed to set %s from env file", key)
		}
	}
	return scanner.Err()
}

func trimQuotes(value string) string {
	if len(value) < 2 {
		return value
	}
	if (value[0] == '"' && value[len(value)-1] == '"') ||
		(value[0] == '\'' && value[len(value)-1] == '\'') {
		return value[1 : len(value)-1]
	}
	return value
}

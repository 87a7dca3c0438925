/*
Package main initializes the Job Feed backend server.

This backend ingests job postings from external XML feeds, normalizes them
into a canonical schema, and persists them to Google Cloud Datastore through
an asynchronous, rate-limited work queue. Import runs are tracked end to end
so every ingestion cycle can be audited after the fact.

Run the application:

	$ go run main.go

Endpoints:
  - POST /import: Trigger an import cycle over the configured (or supplied) feed URLs.
  - GET /import-runs: List import runs, newest first, with pagination.
  - GET /import-runs/{id}: Retrieve a single import run.
  - GET /import-stats: Aggregate statistics across all import runs.
  - GET /queue-stats: Current work queue counters.
  - GET /feeds: Configured feed sources.
*/
package main

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/Nexora-Open-Source/job-feed-backend/config"
	"github.com/Nexora-Open-Source/job-feed-backend/handlers/health"
	"github.com/Nexora-Open-Source/job-feed-backend/middleware"
	"github.com/Nexora-Open-Source/job-feed-backend/monitoring"
	"github.com/Nexora-Open-Source/job-feed-backend/scheduler"
	"github.com/Nexora-Open-Source/job-feed-backend/utils"
)

// RateLimiter implements a simple token bucket rate limiter
type RateLimiter struct {
	clients map[string]*ClientLimiter
	mutex   sync.RWMutex
	rate    rate.Limit
	burst   int
}

// ClientLimiter represents a rate limiter for a specific client
type ClientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*ClientLimiter),
		rate:    r,
		burst:   b,
	}
}

// Allow checks if a client is allowed to make a request
func (rl *RateLimiter) Allow(clientID string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	if _, exists := rl.clients[clientID]; !exists {
		rl.clients[clientID] = &ClientLimiter{
			limiter:  rate.NewLimiter(rl.rate, rl.burst),
			lastSeen: time.Now(),
		}
	}

	rl.clients[clientID].lastSeen = time.Now()
	return rl.clients[clientID].limiter.Allow()
}

// Cleanup removes stale client entries
func (rl *RateLimiter) Cleanup() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	for clientID, client := range rl.clients {
		if time.Since(client.lastSeen) > 5*time.Minute {
			delete(rl.clients, clientID)
		}
	}
}

func main() {
	// Initialize tracing
	tracerProvider, err := monitoring.InitTracing("job-feed-backend")
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer monitoring.ShutdownTracing(tracerProvider)

	// Initialize configuration and services
	appConfig, err := config.NewAppConfig()
	if err != nil {
		log.Fatalf("Failed to initialize application configuration: %v", err)
	}
	defer appConfig.Services.Close()

	// Initialize structured logger
	middleware.InitLogger()
	middleware.Logger.Info("Starting Job Feed Backend Server")

	// Initialize handler with dependencies using DI container
	handler, err := appConfig.Services.Container.GetHandler()
	if err != nil {
		log.Fatalf("Failed to initialize handler: %v", err)
	}

	runStore, err := appConfig.Services.Container.GetRunStore()
	if err != nil {
		log.Fatalf("Failed to resolve run store: %v", err)
	}
	healthHandler := health.NewHandler(runStore, appConfig.Services.Logger)

	// Initialize rate limiter with configuration
	limiter := NewRateLimiter(rate.Limit(appConfig.Config.RateLimitRequestsPerMinute/60.0), appConfig.Config.RateLimitBurst)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start cleanup goroutine with configured interval
	go func() {
		ticker := time.NewTicker(appConfig.Config.ClientCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Cleanup()
			}
		}
	}()

	// Start the import scheduler when an interval is configured
	importService, err := appConfig.Services.Container.GetImporter()
	if err != nil {
		log.Fatalf("Failed to resolve import service: %v", err)
	}
	sched := scheduler.New(importService, appConfig.Config.FeedURLs, appConfig.Config.ImportInterval, appConfig.Services.Logger)
	go sched.Run(ctx)

	// Initialize the router
	router := mux.NewRouter()

	// Setup metrics endpoint
	monitoring.SetupMetricsEndpoint(router)

	// Setup health check endpoints (no rate limiting)
	router.HandleFunc("/health", healthHandler.HandleHealthCheck).Methods("GET")
	router.HandleFunc("/health/live", healthHandler.HandleLivenessCheck).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.HandleReadinessCheck).Methods("GET")

	// Setup API routes with rate limiting and monitoring middleware
	router.HandleFunc("/import", MonitoringMiddleware(RateLimitMiddleware(limiter, handler.HandleStartImport))).Methods("POST")
	router.HandleFunc("/import-runs", MonitoringMiddleware(RateLimitMiddleware(limiter, handler.HandleListRuns))).Methods("GET")
	router.HandleFunc("/import-runs/{id}", MonitoringMiddleware(RateLimitMiddleware(limiter, handler.HandleGetRun))).Methods("GET")
	router.HandleFunc("/import-stats", MonitoringMiddleware(RateLimitMiddleware(limiter, handler.HandleGetStats))).Methods("GET")
	router.HandleFunc("/queue-stats", MonitoringMiddleware(RateLimitMiddleware(limiter, handler.HandleGetQueueStats))).Methods("GET")
	router.HandleFunc("/feeds", MonitoringMiddleware(RateLimitMiddleware(limiter, handler.HandleGetFeeds))).Methods("GET")

	// Apply logging middleware
	withLogging := middleware.LoggingMiddleware(router)

	// Attach the CORS middleware
	withCORS := CORSMiddleware(withLogging)

	srv := &http.Server{
		Addr:              ":" + appConfig.Config.ServerPort,
		Handler:           withCORS,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		middleware.Logger.Infof("Server starting on :%s", appConfig.Config.ServerPort)
		fmt.Printf("Server is running on http://localhost:%s\n", appConfig.Config.ServerPort)
		fmt.Printf("Metrics available at http://localhost:%s/metrics\n", appConfig.Config.ServerPort)
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	case <-ctx.Done():
		middleware.Logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), appConfig.Config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		middleware.Logger.WithField("error", err.Error()).Error("Server shutdown failed")
	}
	middleware.Logger.Info("Server stopped")
}

// MonitoringMiddleware adds metrics and tracing to HTTP handlers
func MonitoringMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create tracing span
		ctx, span := monitoring.CreateSpan(r.Context(), fmt.Sprintf("%s %s", r.Method, r.URL.Path))
		defer span.End()

		// Set span attributes
		monitoring.SetSpanAttributes(span, map[string]interface{}{
			"http.method":     r.Method,
			"http.url":        r.URL.String(),
			"http.user_agent": r.UserAgent(),
			"remote.addr":     r.RemoteAddr,
		})

		// Update request context with tracing
		r = r.WithContext(ctx)

		// Wrap response writer to capture status code
		rw := &responseWriter{ResponseWriter: w, statusCode: 200}

		// Call the next handler
		next.ServeHTTP(rw, r)

		// Record metrics
		duration := time.Since(start).Seconds()
		status := fmt.Sprintf("%d", rw.statusCode)

		monitoring.RecordHTTPRequest(r.Method, r.URL.Path, status, duration)

		// Update span with response info
		monitoring.SetSpanAttributes(span, map[string]interface{}{
			"http.status_code": rw.statusCode,
			"duration_seconds": duration,
		})

		// Record error if status indicates failure
		if rw.statusCode >= 400 {
			monitoring.SetSpanError(span, fmt.Errorf("HTTP %d", rw.statusCode))
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// getClientIdentifier generates a robust client identifier using multiple factors
func getClientIdentifier(r *http.Request) string {
	var identifiers []string

	// 1. IP Address (with X-Forwarded-For support)
	ip := r.RemoteAddr
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		// Take the first IP from the forwarded chain
		ips := strings.Split(forwarded, ",")
		ip = strings.TrimSpace(ips[0])
	} else if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		ip = realIP
	}
	identifiers = append(identifiers, "ip:"+ip)

	// 2. User Agent (normalized)
	userAgent := r.Header.Get("User-Agent")
	if userAgent != "" {
		userAgent = strings.ToLower(userAgent)
		userAgent = strings.Fields(userAgent)[0]
		identifiers = append(identifiers, "ua:"+userAgent)
	}

	// Combine all identifiers and hash for the final client ID
	combined := strings.Join(identifiers, "|")
	finalHash := sha256.Sum256([]byte(combined))
	return fmt.Sprintf("%x", finalHash)[:16]
}

// RateLimitMiddleware implements enhanced rate limiting for HTTP handlers
func RateLimitMiddleware(limiter *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := getClientIdentifier(r)

		if !limiter.Allow(clientID) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = utils.GenerateRequestID()
			}
			middleware.RespondRateLimited(w, fmt.Errorf("rate limit exceeded"), requestID)
			return
		}

		next.ServeHTTP(w, r)
	}
}

// CORSMiddleware applies permissive CORS headers suitable for an internal API
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, X-Request-ID")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

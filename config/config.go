/*
Package config provides configuration management for the job feed backend.

This package separates configuration concerns from business logic and
centralizes everything the pipeline needs: feed sources, fetch behavior,
queue/retry tuning, storage connection and server settings.
*/
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/Nexora-Open-Source/job-feed-backend/cache"
	"github.com/Nexora-Open-Source/job-feed-backend/container"
	"github.com/Nexora-Open-Source/job-feed-backend/feed"
	"github.com/Nexora-Open-Source/job-feed-backend/importer"
	"github.com/Nexora-Open-Source/job-feed-backend/queue"
	"github.com/Nexora-Open-Source/job-feed-backend/runs"
	"github.com/Nexora-Open-Source/job-feed-backend/store"
	"github.com/sirupsen/logrus"
)

// Config holds all application configuration
type Config struct {
	ProjectID  string
	LogLevel   string
	ServerPort string

	// Feed sources swept by scheduled and default imports
	FeedURLs []string
	// Scheduler cadence; 0 disables scheduled imports
	ImportInterval time.Duration

	// Feed client settings
	FetchTimeout   time.Duration
	FetchUserAgent string

	// Queue and retry settings
	QueueConfig queue.Config

	// HTTP rate limiting
	RateLimitRequestsPerMinute float64
	RateLimitBurst             int
	ClientCleanupInterval      time.Duration

	// Read-side caching
	StatsCacheTTL time.Duration

	// Shutdown
	ShutdownTimeout time.Duration
}

// Services holds all initialized service dependencies
type Services struct {
	Container *container.Container
	Logger    *logrus.Logger
	Queue     *queue.Queue

	datastoreClient *datastore.Client
}

// AppConfig holds both configuration and services
type AppConfig struct {
	Config   *Config
	Services *Services
}

// NewConfig creates a new configuration instance from the environment
func NewConfig() *Config {
	return &Config{
		ProjectID:  getEnv("PROJECT_ID", ""),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		ServerPort: getEnv("SERVER_PORT", "8080"),

		FeedURLs:       getEnvSlice("FEED_URLS", []string{}),
		ImportInterval: getEnvDuration("IMPORT_INTERVAL", 0),

		FetchTimeout:   getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
		FetchUserAgent: getEnv("FETCH_USER_AGENT", "JobFeedBackend/1.0 (+https://github.com/Nexora-Open-Source/job-feed-backend)"),

		QueueConfig: queue.Config{
			Workers:                 getEnvInt("QUEUE_WORKERS", 5),
			Size:                    getEnvInt("QUEUE_SIZE", 1000),
			RatePerSecond:           getEnvFloat("QUEUE_RATE_LIMIT", 100.0),
			MaxAttempts:             getEnvInt("QUEUE_MAX_ATTEMPTS", 3),
			BackoffBase:             getEnvDuration("QUEUE_BACKOFF_BASE", 2*time.Second),
			DedupeWindow:            getEnvDuration("QUEUE_DEDUPE_WINDOW", 1*time.Hour),
			CompletedRetentionAge:   getEnvDuration("COMPLETED_RETENTION_AGE", 1*time.Hour),
			CompletedRetentionCount: getEnvInt("COMPLETED_RETENTION_COUNT", 1000),
			FailedRetentionAge:      getEnvDuration("FAILED_RETENTION_AGE", 24*time.Hour),
			ShutdownTimeout:         getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},

		RateLimitRequestsPerMinute: getEnvFloat("RATE_LIMIT_RPM", 10.0),
		RateLimitBurst:             getEnvInt("RATE_LIMIT_BURST", 5),
		ClientCleanupInterval:      getEnvDuration("CLIENT_CLEANUP_INTERVAL", 1*time.Minute),

		StatsCacheTTL: getEnvDuration("STATS_CACHE_TTL", 30*time.Second),

		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("PROJECT_ID environment variable is required")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive")
	}
	return nil
}

// NewServices creates and initializes all service dependencies
func NewServices(config *Config) (*Services, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	if level, err := logrus.ParseLevel(config.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	datastoreClient, err := datastore.NewClient(context.Background(), config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Datastore client: %v", err)
	}
	logger.WithField("project_id", config.ProjectID).Info("Datastore client initialized")

	jobStore := store.NewDatastoreJobStore(datastoreClient)
	runStore := store.NewDatastoreRunStore(datastoreClient)
	tracker := runs.NewTracker(runStore, logger)
	processor := queue.NewProcessor(jobStore, logger)

	// Queue workers report every terminal item outcome back into the run
	// record so its counters converge to exact processing results.
	q := queue.New(config.QueueConfig, processor, func(runID string, outcome queue.Outcome) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tracker.RecordOutcome(ctx, runID, outcome); err != nil {
			logger.WithFields(logrus.Fields{
				"import_run_id": runID,
				"error":         err.Error(),
			}).Warn("Failed to roll queue outcome into run accounting")
		}
	}, logger)

	client := feed.NewClient(config.FetchTimeout, config.FetchUserAgent, logger)
	importService := importer.New(client, q, tracker, logger)
	statsCache := cache.NewManager(config.StatsCacheTTL, logger)

	diContainer := container.NewContainer()
	if err := diContainer.InitializeServices(importService, tracker, q, statsCache, runStore, config.FeedURLs, logger); err != nil {
		return nil, fmt.Errorf("failed to initialize dependency container: %v", err)
	}

	return &Services{
		Container:       diContainer,
		Logger:          logger,
		Queue:           q,
		datastoreClient: datastoreClient,
	}, nil
}

// NewAppConfig creates a new application configuration with all dependencies
func NewAppConfig() (*AppConfig, error) {
	config := NewConfig()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %v", err)
	}

	services, err := NewServices(config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %v", err)
	}

	return &AppConfig{Config: config, Services: services}, nil
}

// Close gracefully shuts down the queue and closes service connections
func (s *Services) Close() error {
	if s.Queue != nil {
		s.Queue.Stop()
	}
	if s.datastoreClient != nil {
		if err := s.datastoreClient.Close(); err != nil {
			return fmt.Errorf("failed to close datastore client: %v", err)
		}
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvFloat gets an environment variable as float64 with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt gets an environment variable as int with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as time.Duration with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvSlice gets an environment variable as a comma-separated string slice
func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	config := NewConfig()

	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, "8080", config.ServerPort)
	assert.Empty(t, config.FeedURLs)
	assert.Equal(t, time.Duration(0), config.ImportInterval)
	assert.Equal(t, 30*time.Second, config.FetchTimeout)
	assert.Equal(t, 5, config.QueueConfig.Workers)
	assert.Equal(t, 1000, config.QueueConfig.Size)
	assert.Equal(t, 100.0, config.QueueConfig.RatePerSecond)
	assert.Equal(t, 3, config.QueueConfig.MaxAttempts)
	assert.Equal(t, 2*time.Second, config.QueueConfig.BackoffBase)
	assert.Equal(t, 30*time.Second, config.StatsCacheTTL)
}

func TestNewConfigFromEnvironment(t *testing.T) {
	t.Setenv("PROJECT_ID", "test-project")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("FEED_URLS", "https://a.example.com/feed.xml, https://b.example.com/feed.xml ,")
	t.Setenv("IMPORT_INTERVAL", "15m")
	t.Setenv("FETCH_TIMEOUT", "10s")
	t.Setenv("QUEUE_WORKERS", "8")
	t.Setenv("QUEUE_RATE_LIMIT", "50.5")

	config := NewConfig()

	assert.Equal(t, "test-project", config.ProjectID)
	assert.Equal(t, "9090", config.ServerPort)
	assert.Equal(t, []string{"https://a.example.com/feed.xml", "https://b.example.com/feed.xml"}, config.FeedURLs)
	assert.Equal(t, 15*time.Minute, config.ImportInterval)
	assert.Equal(t, 10*time.Second, config.FetchTimeout)
	assert.Equal(t, 8, config.QueueConfig.Workers)
	assert.Equal(t, 50.5, config.QueueConfig.RatePerSecond)
}

func TestNewConfigInvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("QUEUE_WORKERS", "not-a-number")
	t.Setenv("FETCH_TIMEOUT", "soon")
	t.Setenv("QUEUE_RATE_LIMIT", "fast")

	config := NewConfig()

	assert.Equal(t, 5, config.QueueConfig.Workers)
	assert.Equal(t, 30*time.Second, config.FetchTimeout)
	assert.Equal(t, 100.0, config.QueueConfig.RatePerSecond)
}

func TestValidateRequiresProjectID(t *testing.T) {
	config := NewConfig()
	config.ProjectID = ""

	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROJECT_ID")
}

func TestValidateRequiresPositiveFetchTimeout(t *testing.T) {
	config := NewConfig()
	config.ProjectID = "test-project"
	config.FetchTimeout = 0

	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FETCH_TIMEOUT")
}

func TestValidatePasses(t *testing.T) {
	config := NewConfig()
	config.ProjectID = "test-project"

	assert.NoError(t, config.Validate())
}

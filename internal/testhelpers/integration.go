//go:build integration
// +build integration

package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/dashboard"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/recent"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIKey        string
	APIURL        string
	RecentBackend string // "in_memory", "memcached" or "sqlite"
	MemcachedAddr string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips test if WEATHER_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}

	apiURL := os.Getenv("WEATHER_API_URL")
	if apiURL == "" {
		apiURL = "https://api.openweathermap.org/data/2.5"
	}
	memcachedAddr := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddr == "" {
		memcachedAddr = "localhost:11211"
	}

	return IntegrationTestConfig{
		APIKey:        apiKey,
		APIURL:        apiURL,
		RecentBackend: os.Getenv("INTEGRATION_RECENT_BACKEND"),
		MemcachedAddr: memcachedAddr,
	}
}

// SetupIntegrationClient creates a weather client against the live API.
func SetupIntegrationClient(t *testing.T, cfg IntegrationTestConfig) client.WeatherClient {
	c, err := client.NewOpenWeatherClient(cfg.APIKey, cfg.APIURL, 5*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}
	return c
}

// SetupRecentStore returns the configured recent-search store, falling back to memory
// when memcached is unreachable. Stores are closed via t.Cleanup.
func SetupRecentStore(t *testing.T, cfg IntegrationTestConfig) recent.Store {
	switch cfg.RecentBackend {
	case "memcached":
		store := recent.NewMemcachedStore(cfg.MemcachedAddr, 500*time.Millisecond, 2)
		if err := store.Ping(); err != nil {
			t.Logf("Memcached not available (%v), using in-memory store", err)
			_ = store.Close()
			return recent.NewMemoryStore()
		}
		t.Cleanup(func() { _ = store.Close() })
		return store
	case "sqlite":
		store, err := recent.NewSQLiteStore(context.Background(), t.TempDir()+"/dashboard.db")
		if err != nil {
			t.Fatalf("NewSQLiteStore() error = %v", err)
		}
		t.Cleanup(func() { _ = store.Close() })
		return store
	default:
		return recent.NewMemoryStore()
	}
}

// SetupIntegrationDashboard builds a dashboard wired to the live API.
func SetupIntegrationDashboard(t *testing.T, cfg IntegrationTestConfig) (*dashboard.Dashboard, *dashboard.Inbox) {
	logger, err := observability.NewLogger()
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	inbox := dashboard.NewInbox(0)
	d := dashboard.New(SetupIntegrationClient(t, cfg), SetupRecentStore(t, cfg), inbox, dashboard.Options{Logger: logger})
	return d, inbox
}

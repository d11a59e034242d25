package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kjstillabower/weather-dashboard/internal/client"
)

// flakyProvider answers 500 until healthy is set, then serves valid payloads.
func flakyProvider(t *testing.T, healthy *atomic.Bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/weather"):
			fmt.Fprintf(w, `{
				"name": %q,
				"sys": {"country": "FR"},
				"main": {"temp": 61.6, "feels_like": 60.2, "humidity": 72, "pressure": 1013},
				"wind": {"speed": 8.4},
				"visibility": 10000,
				"weather": [{"main": "Clear", "description": "clear sky", "icon": "01d"}]
			}`, r.URL.Query().Get("q"))
		default:
			fmt.Fprintf(w, `{"list": [{"dt": %d, "main": {"temp_min": 50, "temp_max": 60}, "weather": [{"main": "Rain", "description": "light rain", "icon": "10d"}]}]}`,
				fixedNow.Unix())
		}
	}))
}

// TestSearch_RecoversThroughHalfOpenBreaker verifies the first lookup after the
// breaker's open timeout succeeds: both fetches fit through the half-open state.
func TestSearch_RecoversThroughHalfOpenBreaker(t *testing.T) {
	// Arrange: trip the breaker against a failing provider
	var healthy atomic.Bool
	server := flakyProvider(t, &healthy)
	defer server.Close()

	cb := client.NewBreaker(client.BreakerConfig{FailureThreshold: 2, OpenTimeout: 100 * time.Millisecond})
	c, err := client.NewOpenWeatherClientWithOptions("test-api-key-0123456789", server.URL, 2*time.Second, client.Options{Breaker: cb})
	if err != nil {
		t.Fatalf("NewOpenWeatherClientWithOptions() error = %v", err)
	}
	inbox := NewInbox(0)
	d := newTestDashboard(c, nil, inbox)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := d.Search(ctx, "Paris"); err == nil {
			t.Fatalf("Search() #%d against failing provider error = nil", i)
		}
	}
	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("breaker state = %v, want open", cb.State())
	}
	inbox.Drain()

	// Act: provider recovers and the open timeout elapses
	healthy.Store(true)
	time.Sleep(150 * time.Millisecond)
	err = d.Search(ctx, "Paris")

	// Assert
	if err != nil {
		t.Fatalf("Search() after recovery error = %v", err)
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("breaker state = %v, want closed", cb.State())
	}
	if n := inbox.Len(); n != 0 {
		t.Errorf("notifications after recovery = %d, want 0", n)
	}
	if cur := d.Snapshot().Current; cur == nil || cur.Name != "Paris" {
		t.Errorf("Current = %+v, want Paris", cur)
	}
}

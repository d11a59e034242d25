package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/dashboard"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/recent"
)

// fakeOpenWeather serves /weather and /forecast. Unknown places get 404; coordinate
// queries resolve to "Coordsville".
func fakeOpenWeather(t *testing.T, known ...string) *httptest.Server {
	t.Helper()
	isKnown := make(map[string]bool, len(known))
	for _, k := range known {
		isKnown[strings.ToLower(k)] = true
	}
	start := time.Now().UTC().Truncate(24 * time.Hour)

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("q")
		if r.URL.Query().Get("lat") != "" {
			name = "Coordsville"
		} else if !isKnown[strings.ToLower(name)] {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"cod":"404","message":"city not found"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/weather"):
			fmt.Fprintf(w, `{
				"name": %q,
				"sys": {"country": "GB"},
				"main": {"temp": 59.4, "feels_like": 57.9, "humidity": 80, "pressure": 1016},
				"wind": {"speed": 11.2},
				"visibility": 10000,
				"weather": [{"main": "Clouds", "description": "overcast clouds", "icon": "04d"}]
			}`, name)
		case strings.HasSuffix(r.URL.Path, "/forecast"):
			entries := make([]string, 0, 40)
			for i := 0; i < 40; i++ {
				entries = append(entries, fmt.Sprintf(
					`{"dt": %d, "main": {"temp_min": %d, "temp_max": %d}, "weather": [{"main": "Rain", "description": "light rain", "icon": "10d"}]}`,
					start.Add(time.Duration(i)*3*time.Hour).Unix(), 48+i%5, 58+i%5))
			}
			fmt.Fprintf(w, `{"city": {"name": %q, "country": "GB"}, "list": [%s]}`, name, strings.Join(entries, ","))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newEndToEndRouter(t *testing.T, upstream *httptest.Server) (http.Handler, *dashboard.Inbox) {
	t.Helper()
	c, err := client.NewOpenWeatherClient("test-api-key-0123456789", upstream.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}
	inbox := dashboard.NewInbox(0)
	d := dashboard.New(c, recent.NewMemoryStore(), inbox, dashboard.Options{Location: time.UTC})
	h := NewHandler(d, inbox, nil, zap.NewNop(), 1, 100)
	return NewRouter(h, zap.NewNop(), nil, 5*time.Second), inbox
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) models.Snapshot {
	t.Helper()
	var snap models.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v (body %s)", err, w.Body.String())
	}
	return snap
}

// TestRouter_EndToEnd drives the full stack: router, dashboard, client and normalization
// against a fake provider.
func TestRouter_EndToEnd(t *testing.T) {
	upstream := fakeOpenWeather(t, "London", "Paris", "New York")
	defer upstream.Close()
	router, inbox := newEndToEndRouter(t, upstream)

	// Nothing displayed yet.
	if w := doRequest(t, router, http.MethodPost, "/dashboard/refresh", ""); w.Code != http.StatusConflict {
		t.Fatalf("initial refresh status = %d, want 409", w.Code)
	}

	w := doRequest(t, router, http.MethodPost, "/dashboard/search", `{"query":"London"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	snap := decodeSnapshot(t, w)
	if snap.Current == nil || snap.Current.Name != "London" {
		t.Fatalf("Current = %+v, want London", snap.Current)
	}
	if snap.Current.Temperature != 59 || snap.Current.Icon != models.IconCloud {
		t.Errorf("Current temp/icon = %d/%s, want 59/%s", snap.Current.Temperature, snap.Current.Icon, models.IconCloud)
	}
	if len(snap.Forecast) == 0 || len(snap.Forecast) > 5 {
		t.Errorf("len(Forecast) = %d, want 1..5", len(snap.Forecast))
	}
	if len(snap.RecentSearches) != 1 || snap.RecentSearches[0] != "London" {
		t.Errorf("RecentSearches = %v, want [London]", snap.RecentSearches)
	}

	// Failure leaves the displayed place alone and raises one notification.
	w = doRequest(t, router, http.MethodPost, "/dashboard/search", `{"query":"Atlantis"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("failed search status = %d, want 502", w.Code)
	}
	if inbox.Len() != 1 {
		t.Errorf("inbox.Len() = %d, want 1", inbox.Len())
	}
	snap = decodeSnapshot(t, doRequest(t, router, http.MethodGet, "/dashboard", ""))
	if snap.Current == nil || snap.Current.Name != "London" {
		t.Errorf("Current after failure = %+v, want London", snap.Current)
	}

	w = doRequest(t, router, http.MethodPost, "/dashboard/search", `{"query":"Paris"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("second search status = %d", w.Code)
	}
	snap = decodeSnapshot(t, w)
	if got := strings.Join(snap.RecentSearches, ","); got != "Paris,London" {
		t.Errorf("RecentSearches = %q, want Paris,London", got)
	}

	// Recent index 1 is London.
	snap = decodeSnapshot(t, doRequest(t, router, http.MethodPost, "/dashboard/recent/1", ""))
	if snap.Current == nil || snap.Current.Name != "London" {
		t.Errorf("Current after recent select = %+v, want London", snap.Current)
	}

	// Denied geolocation falls back to the default place.
	snap = decodeSnapshot(t, doRequest(t, router, http.MethodPost, "/dashboard/location", `{"denied":true}`))
	if snap.Current == nil || snap.Current.Name != "New York" {
		t.Errorf("Current after denied location = %+v, want New York", snap.Current)
	}

	snap = decodeSnapshot(t, doRequest(t, router, http.MethodPost, "/dashboard/location", `{"lat":51.5,"lon":-0.12}`))
	if snap.Current == nil || snap.Current.Name != "Coordsville" {
		t.Errorf("Current after coordinates = %+v, want Coordsville", snap.Current)
	}

	if w := doRequest(t, router, http.MethodPost, "/dashboard/refresh", ""); w.Code != http.StatusOK {
		t.Errorf("refresh status = %d, want 200", w.Code)
	}
}

func BenchmarkRouter_GetDashboard(b *testing.B) {
	mock := &mockDashboard{snapshot: sampleSnapshot()}
	router := NewRouter(NewHandler(mock, nil, nil, zap.NewNop(), 0, 0), zap.NewNop(), nil, 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
		if w.Code != http.StatusOK {
			b.Fatalf("status = %d", w.Code)
		}
	}
}

func BenchmarkRouter_PostSearch(b *testing.B) {
	mock := &mockDashboard{snapshot: sampleSnapshot()}
	router := NewRouter(NewHandler(mock, nil, nil, zap.NewNop(), 0, 0), zap.NewNop(), nil, 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/dashboard/search", strings.NewReader(`{"query":"London"}`))
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			b.Fatalf("status = %d", w.Code)
		}
	}
}

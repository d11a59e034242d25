package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/normalize"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

// WeatherClient fetches raw provider payloads for one lookup.
type WeatherClient interface {
	FetchCurrent(ctx context.Context, q Query) (normalize.CurrentPayload, error)
	FetchForecast(ctx context.Context, q Query) (normalize.ForecastPayload, error)
	ValidateAPIKey(ctx context.Context) error
}

var (
	ErrInvalidAPIKey     = errors.New("invalid API key")
	ErrLocationNotFound  = errors.New("location not found")
	ErrUpstreamFailure   = errors.New("upstream failure")
	ErrRateLimited       = errors.New("rate limited")
	ErrMalformedResponse = errors.New("malformed response")
	ErrCircuitOpen       = errors.New("circuit breaker open")
)

const (
	endpointCurrent  = "weather"
	endpointForecast = "forecast"

	defaultUnits = "imperial"
)

// Query selects a location either by place name or by coordinates.
type Query struct {
	Place  string
	Coords *models.Coordinates
}

// PlaceQuery returns a Query for a place name.
func PlaceQuery(place string) Query {
	return Query{Place: place}
}

// CoordinatesQuery returns a Query for a latitude/longitude pair.
func CoordinatesQuery(c models.Coordinates) Query {
	return Query{Coords: &c}
}

// String is used in logs and error messages.
func (q Query) String() string {
	if q.Coords != nil {
		return fmt.Sprintf("%.4f,%.4f", q.Coords.Lat, q.Coords.Lon)
	}
	return q.Place
}

// Options holds optional client behavior. Zero values disable each feature.
type Options struct {
	Units string

	// Outbound limiter applied before every upstream request.
	RateLimitRPS   float64
	RateLimitBurst int

	Breaker *gobreaker.CircuitBreaker
}

// OpenWeatherClient talks to the OpenWeatherMap 2.5 API. Each call is a single attempt.
type OpenWeatherClient struct {
	apiKey  string
	baseURL string
	units   string
	timeout time.Duration
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewOpenWeatherClient returns a client for baseURL (e.g. https://api.openweathermap.org/data/2.5).
func NewOpenWeatherClient(apiKey, baseURL string, timeout time.Duration) (*OpenWeatherClient, error) {
	return NewOpenWeatherClientWithOptions(apiKey, baseURL, timeout, Options{})
}

// NewOpenWeatherClientWithOptions is NewOpenWeatherClient with rate limiting, breaker and units.
func NewOpenWeatherClientWithOptions(apiKey, baseURL string, timeout time.Duration, opts Options) (*OpenWeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	units := opts.Units
	if units == "" {
		units = defaultUnits
	}
	c := &OpenWeatherClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		units:   units,
		timeout: timeout,
		breaker: opts.Breaker,
		client: &http.Client{
			Timeout: timeout,
		},
	}
	if opts.RateLimitRPS > 0 {
		burst := opts.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)
	}
	return c, nil
}

// FetchCurrent calls GET {base}/weather.
func (c *OpenWeatherClient) FetchCurrent(ctx context.Context, q Query) (normalize.CurrentPayload, error) {
	var payload normalize.CurrentPayload
	if err := c.fetch(ctx, endpointCurrent, q, &payload); err != nil {
		return normalize.CurrentPayload{}, err
	}
	return payload, nil
}

// FetchForecast calls GET {base}/forecast.
func (c *OpenWeatherClient) FetchForecast(ctx context.Context, q Query) (normalize.ForecastPayload, error) {
	var payload normalize.ForecastPayload
	if err := c.fetch(ctx, endpointForecast, q, &payload); err != nil {
		return normalize.ForecastPayload{}, err
	}
	return payload, nil
}

func (c *OpenWeatherClient) fetch(ctx context.Context, endpoint string, q Query, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait canceled: %w", err)
		}
	}
	if c.breaker == nil {
		return c.callAPI(ctx, endpoint, q, out)
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.callAPI(ctx, endpoint, q, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		observability.WeatherAPICallsTotal.WithLabelValues(endpoint, "circuit_open").Inc()
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	return err
}

func (c *OpenWeatherClient) callAPI(ctx context.Context, endpoint string, q Query, out interface{}) error {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, endpoint, q)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("build request: %w", err)
	}

	if corrID := observability.CorrelationIDFromContext(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues(endpoint, "error").Inc()
		observability.WeatherAPIDuration.WithLabelValues(endpoint, "error").Observe(time.Since(start).Seconds())
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return fmt.Errorf("request timeout: %w", err)
		}
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(endpoint, status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(endpoint, status).Observe(time.Since(start).Seconds())

	if err := handleErrorResponse(resp); err != nil {
		return fmt.Errorf("%s %s: %w", endpoint, q, err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: parse %s response: %v", ErrMalformedResponse, endpoint, err)
	}
	return nil
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, endpoint string, q Query) (*http.Request, error) {
	u, err := url.Parse(c.baseURL + "/" + endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	if q.Coords != nil {
		params.Set("lat", strconv.FormatFloat(q.Coords.Lat, 'f', -1, 64))
		params.Set("lon", strconv.FormatFloat(q.Coords.Lon, 'f', -1, 64))
	} else {
		params.Set("q", q.Place)
	}
	params.Set("appid", c.apiKey)
	params.Set("units", c.units)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: HTTP 401", ErrInvalidAPIKey)
	case http.StatusNotFound:
		return fmt.Errorf("%w: HTTP 404", ErrLocationNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: HTTP 429", ErrRateLimited)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}
	return nil
}

func statusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	default:
		return "error"
	}
}

// ValidateAPIKey issues a cheap current-weather call and reports 401s as ErrInvalidAPIKey.
func (c *OpenWeatherClient) ValidateAPIKey(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := c.buildRequest(ctx, endpointCurrent, PlaceQuery("London"))
	if err != nil {
		return fmt.Errorf("build validation request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("validation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: API key is invalid or not activated", ErrInvalidAPIKey)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("validation failed: HTTP %d", resp.StatusCode)
	}
	return nil
}

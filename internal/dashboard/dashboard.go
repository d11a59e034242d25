// Package dashboard owns the dashboard state and runs weather lookups:
// both provider calls concurrently, normalization, an all-or-nothing commit,
// recent-search bookkeeping and failure notifications.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/geo"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/normalize"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/recent"
	"github.com/kjstillabower/weather-dashboard/internal/traffic"
)

var (
	// ErrEmptyQuery is returned for a blank search. Nothing is fetched and no notification is raised.
	ErrEmptyQuery = errors.New("empty query")
	// ErrLookupFailed wraps every failed lookup. A notification has already been raised.
	ErrLookupFailed = errors.New("lookup failed")
	// ErrNothingToRefresh is returned by Refresh when no place has been displayed yet.
	ErrNothingToRefresh = errors.New("nothing to refresh")
	// ErrUnknownRecent is returned by SelectRecent for an index outside the recent list.
	ErrUnknownRecent = errors.New("unknown recent search")
)

// Notification texts shown on lookup failure.
const (
	MsgCityNotFound = "City not found. Please check the spelling and try again."
	MsgFetchFailed  = "Failed to fetch weather data. Please try again."

	DefaultLocation = "New York"
)

const (
	kindPlace       = "place"
	kindCoordinates = "coordinates"
)

// Options configures a Dashboard. Zero values select defaults.
type Options struct {
	// DefaultLocation is searched when geolocation fails.
	DefaultLocation string
	// Location decides forecast calendar days. nil means time.Local.
	Location *time.Location
	Logger   *zap.Logger
	Now      func() time.Time
}

// Dashboard is safe for concurrent use.
type Dashboard struct {
	client   client.WeatherClient
	store    recent.Store
	notifier Notifier
	logger   *zap.Logger

	defaultLocation string
	loc             *time.Location
	now             func() time.Time

	mu         sync.Mutex
	current    *models.CurrentConditions
	forecast   []models.DailySummary
	loading    int
	recent     []string
	lastQuery  string
	lastCoords *models.Coordinates
	issued     uint64
	committed  uint64

	// Serializes write-through so the store never ends up with an older list.
	saveMu sync.Mutex
}

// New creates a Dashboard. A nil store keeps recent searches in memory only.
func New(c client.WeatherClient, store recent.Store, n Notifier, opts Options) *Dashboard {
	if store == nil {
		store = recent.NewMemoryStore()
	}
	if n == nil {
		n = NewInbox(0)
	}
	d := &Dashboard{
		client:          c,
		store:           store,
		notifier:        n,
		logger:          opts.Logger,
		defaultLocation: strings.TrimSpace(opts.DefaultLocation),
		loc:             opts.Location,
		now:             opts.Now,
		recent:          []string{},
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	if d.defaultLocation == "" {
		d.defaultLocation = DefaultLocation
	}
	if d.loc == nil {
		d.loc = time.Local
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// Init loads the persisted recent list. On error the list stays empty and the error is returned.
func (d *Dashboard) Init(ctx context.Context) error {
	list, err := recent.Load(ctx, d.store)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.recent = list
	d.mu.Unlock()
	return nil
}

// Search looks up a place name. Leading and trailing whitespace is ignored.
func (d *Dashboard) Search(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return ErrEmptyQuery
	}
	observability.RecordWeatherQuery(query)
	return d.lookup(ctx, client.PlaceQuery(query), kindPlace, MsgCityNotFound)
}

// SearchCoordinates looks up a coordinate pair. It never touches the recent list.
func (d *Dashboard) SearchCoordinates(ctx context.Context, c models.Coordinates) error {
	return d.lookup(ctx, client.CoordinatesQuery(c), kindCoordinates, MsgFetchFailed)
}

// UseCurrentLocation searches the locator's coordinates, or the default place when
// the locator fails or is nil.
func (d *Dashboard) UseCurrentLocation(ctx context.Context, l geo.Locator) error {
	logger := observability.LoggerFromContext(ctx, d.logger)
	if l == nil {
		l = geo.Unavailable{Reason: "not supported"}
	}
	coords, err := l.Locate(ctx)
	if err != nil {
		logger.Info("geolocation failed, using default location",
			zap.String("default_location", d.defaultLocation),
			zap.Error(err))
		return d.Search(ctx, d.defaultLocation)
	}
	return d.SearchCoordinates(ctx, coords)
}

// Refresh repeats the last successful place-name lookup, falling back to the
// displayed place name (e.g. after a coordinate lookup).
func (d *Dashboard) Refresh(ctx context.Context) error {
	d.mu.Lock()
	query := d.lastQuery
	if query == "" && d.current != nil {
		query = d.current.Name
	}
	d.mu.Unlock()

	if query == "" {
		return ErrNothingToRefresh
	}
	return d.Search(ctx, query)
}

// RefreshDisplayed repeats the lookup behind what is on screen. A coordinate result is
// refreshed by coordinates, so the recent list is left alone.
func (d *Dashboard) RefreshDisplayed(ctx context.Context) error {
	d.mu.Lock()
	coords := d.lastCoords
	d.mu.Unlock()

	if coords != nil {
		return d.SearchCoordinates(ctx, *coords)
	}
	return d.Refresh(ctx)
}

// SelectRecent searches the recent entry at index (0 is most recent).
func (d *Dashboard) SelectRecent(ctx context.Context, index int) error {
	d.mu.Lock()
	if index < 0 || index >= len(d.recent) {
		n := len(d.recent)
		d.mu.Unlock()
		return fmt.Errorf("%w: index %d of %d", ErrUnknownRecent, index, n)
	}
	query := d.recent[index]
	d.mu.Unlock()
	return d.Search(ctx, query)
}

// Snapshot returns a copy of the current state.
func (d *Dashboard) Snapshot() models.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap := models.Snapshot{
		Forecast:       append([]models.DailySummary{}, d.forecast...),
		Loading:        d.loading > 0,
		RecentSearches: append([]string{}, d.recent...),
		LastQuery:      d.lastQuery,
	}
	if d.current != nil {
		cur := *d.current
		snap.Current = &cur
	}
	return snap
}

func (d *Dashboard) lookup(ctx context.Context, q client.Query, kind, failureMsg string) error {
	logger := observability.LoggerFromContext(ctx, d.logger).With(
		zap.String("kind", kind),
		zap.String("query", q.String()),
	)
	start := time.Now()

	d.mu.Lock()
	d.issued++
	seq := d.issued
	d.loading++
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.loading--
		d.mu.Unlock()
		observability.LookupDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	cur, days, err := d.fetch(ctx, q)
	if err != nil {
		d.fail(logger, kind, failureMsg, err)
		return fmt.Errorf("%w: %s: %w", ErrLookupFailed, q, err)
	}

	d.mu.Lock()
	if seq < d.committed {
		d.mu.Unlock()
		observability.LookupsTotal.WithLabelValues(kind, "stale").Inc()
		logger.Debug("discarding superseded lookup", zap.Uint64("seq", seq))
		return nil
	}
	d.current = &cur
	d.forecast = days
	d.committed = seq
	if kind == kindPlace {
		d.lastQuery = q.Place
		d.lastCoords = nil
		d.recent = recent.Push(d.recent, q.Place)
	} else {
		c := *q.Coords
		d.lastCoords = &c
	}
	d.mu.Unlock()

	observability.LookupsTotal.WithLabelValues(kind, "success").Inc()
	traffic.RecordLookup(true)
	logger.Info("lookup committed",
		zap.String("name", cur.Name),
		zap.Int("forecast_days", len(days)),
		zap.Duration("duration", time.Since(start)))

	if kind == kindPlace {
		d.persistRecent(ctx, logger)
	}
	return nil
}

// fetch runs both provider calls concurrently, waits for both, then normalizes.
// Panics from either call or from normalization surface as errors.
func (d *Dashboard) fetch(ctx context.Context, q client.Query) (cur models.CurrentConditions, days []models.DailySummary, err error) {
	var (
		wg                  sync.WaitGroup
		rawCur              normalize.CurrentPayload
		rawFc               normalize.ForecastPayload
		curErr, forecastErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer recoverInto(&curErr)
		rawCur, curErr = d.client.FetchCurrent(ctx, q)
	}()
	go func() {
		defer wg.Done()
		defer recoverInto(&forecastErr)
		rawFc, forecastErr = d.client.FetchForecast(ctx, q)
	}()
	wg.Wait()

	if curErr != nil {
		return cur, nil, fmt.Errorf("current weather: %w", curErr)
	}
	if forecastErr != nil {
		return cur, nil, fmt.Errorf("forecast: %w", forecastErr)
	}

	defer recoverInto(&err)
	cur, err = normalize.NormalizeCurrent(rawCur, d.now())
	if err != nil {
		return cur, nil, fmt.Errorf("current weather: %w", err)
	}
	days, err = normalize.NormalizeForecast(rawFc, d.loc)
	if err != nil {
		return cur, nil, fmt.Errorf("forecast: %w", err)
	}
	return cur, days, nil
}

func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("panic: %v", r)
	}
}

func (d *Dashboard) fail(logger *zap.Logger, kind, msg string, err error) {
	category := client.CategorizeError(err)
	observability.LookupsTotal.WithLabelValues(kind, "failure").Inc()
	observability.LookupFailuresTotal.WithLabelValues(string(category)).Inc()
	traffic.RecordLookup(false)
	logger.Warn("lookup failed", zap.String("category", string(category)), zap.Error(err))

	d.notifier.Notify(models.Notification{
		Title:       "Error",
		Description: msg,
		Variant:     VariantDestructive,
		At:          d.now(),
	})
}

// persistRecent writes the latest list through to the store. Failures are logged
// and do not fail the lookup.
func (d *Dashboard) persistRecent(ctx context.Context, logger *zap.Logger) {
	d.saveMu.Lock()
	defer d.saveMu.Unlock()

	d.mu.Lock()
	list := append([]string{}, d.recent...)
	d.mu.Unlock()

	if err := recent.Save(context.WithoutCancel(ctx), d.store, list); err != nil {
		logger.Warn("recent searches not persisted", zap.Error(err))
	}
}

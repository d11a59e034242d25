// Package normalize turns provider payloads into the dashboard display model.
// Everything here is a pure transform: no I/O and no shared mutable state.
package normalize

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

const (
	// HPaToInHg converts hectopascals to inches of mercury.
	HPaToInHg = 0.02953
	// MetersPerMile converts meters to statute miles.
	MetersPerMile = 1609.34

	// MaxForecastDays caps the daily summary sequence.
	MaxForecastDays = 5

	// DateLabelLayout renders like "Mon, Jan 2".
	DateLabelLayout = "Mon, Jan 2"
)

// ErrMalformedPayload is returned when a payload misses required fields.
var ErrMalformedPayload = errors.New("malformed payload")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// NormalizeCurrent builds CurrentConditions from a current-weather payload. now stamps UpdatedAt.
func NormalizeCurrent(raw CurrentPayload, now time.Time) (models.CurrentConditions, error) {
	if err := check(raw); err != nil {
		return models.CurrentConditions{}, err
	}

	desc := raw.Weather[0]
	cond := Categorize(desc.Main)
	isDay := IsDay(desc.Icon)

	return models.CurrentConditions{
		Name:        raw.Name,
		Country:     raw.Sys.Country,
		Temperature: Round(*raw.Main.Temp),
		FeelsLike:   Round(*raw.Main.FeelsLike),
		Description: desc.Description,
		Humidity:    *raw.Main.Humidity,
		WindSpeed:   Round(*raw.Wind.Speed),
		Pressure:    PressureInHg(*raw.Main.Pressure),
		Visibility:  VisibilityMiles(*raw.Visibility),
		Condition:   cond,
		IsDay:       isDay,
		IconCode:    desc.Icon,
		Icon:        cond.Icon(isDay),
		UpdatedAt:   now,
	}, nil
}

// NormalizeForecast collapses 3-hour entries into at most MaxForecastDays daily summaries.
// The first entry seen for a calendar date (in loc) decides that day; later entries for the
// same date are ignored, not merged. A partial first day still counts as a day.
func NormalizeForecast(raw ForecastPayload, loc *time.Location) ([]models.DailySummary, error) {
	if err := check(raw); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}

	days := make([]models.DailySummary, 0, MaxForecastDays)
	seen := make(map[time.Time]struct{}, MaxForecastDays)
	for _, entry := range raw.List {
		if len(days) >= MaxForecastDays {
			break
		}
		ts := time.Unix(*entry.Dt, 0).In(loc)
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, loc)
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}

		desc := entry.Weather[0]
		cond := Categorize(desc.Main)
		isDay := IsDay(desc.Icon)
		days = append(days, models.DailySummary{
			Date:        day,
			Label:       day.Format(DateLabelLayout),
			Min:         Round(*entry.Main.TempMin),
			Max:         Round(*entry.Main.TempMax),
			Description: desc.Description,
			Condition:   cond,
			IsDay:       isDay,
			IconCode:    desc.Icon,
			Icon:        cond.Icon(isDay),
		})
	}
	return days, nil
}

// Categorize maps a provider "main" label onto the closed condition set.
func Categorize(main string) models.Condition {
	switch strings.ToLower(main) {
	case "clear":
		return models.ConditionClear
	case "clouds":
		return models.ConditionClouds
	case "rain":
		return models.ConditionRain
	case "drizzle":
		return models.ConditionDrizzle
	case "snow":
		return models.ConditionSnow
	default:
		return models.ConditionOther
	}
}

// IsDay reports whether an icon code (e.g. "10d", "01n") carries the day marker.
func IsDay(icon string) bool {
	return strings.Contains(icon, "d")
}

// Round rounds half toward +Inf, so -2.5 becomes -2 and 2.5 becomes 3.
func Round(x float64) int {
	return int(math.Floor(x + 0.5))
}

// PressureInHg converts hPa to whole inches of mercury.
func PressureInHg(hpa float64) int {
	return Round(hpa * HPaToInHg)
}

// VisibilityMiles converts meters to whole miles.
func VisibilityMiles(meters float64) int {
	return Round(meters / MetersPerMile)
}

func check(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Namespace())
		}
		return fmt.Errorf("%w: invalid fields %s", ErrMalformedPayload, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
}

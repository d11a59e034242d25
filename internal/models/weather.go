package models

import "time"

// Condition is the coarse weather category that drives icon selection.
type Condition string

const (
	ConditionClear   Condition = "clear"
	ConditionClouds  Condition = "clouds"
	ConditionRain    Condition = "rain"
	ConditionDrizzle Condition = "drizzle"
	ConditionSnow    Condition = "snow"
	ConditionOther   Condition = "other"
)

// Icon names returned by Condition.Icon.
const (
	IconSun       = "sun"
	IconCloud     = "cloud"
	IconCloudRain = "cloud-rain"
	IconCloudSnow = "cloud-snow"
)

// Icon resolves the display icon. Only ConditionOther depends on isDay.
func (c Condition) Icon(isDay bool) string {
	switch c {
	case ConditionClear:
		return IconSun
	case ConditionClouds:
		return IconCloud
	case ConditionRain, ConditionDrizzle:
		return IconCloudRain
	case ConditionSnow:
		return IconCloudSnow
	default:
		if isDay {
			return IconSun
		}
		return IconCloud
	}
}

// CurrentConditions is the normalized current-weather record. Temperatures and wind speed
// are in imperial display units, pressure in inHg, visibility in miles.
type CurrentConditions struct {
	Name        string    `json:"name"`
	Country     string    `json:"country"`
	Temperature int       `json:"temp"`
	FeelsLike   int       `json:"feelsLike"`
	Description string    `json:"description"`
	Humidity    int       `json:"humidity"`
	WindSpeed   int       `json:"windSpeed"`
	Pressure    int       `json:"pressure"`
	Visibility  int       `json:"visibility"`
	Condition   Condition `json:"condition"`
	IsDay       bool      `json:"isDay"`
	IconCode    string    `json:"iconCode"`
	Icon        string    `json:"icon"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DailySummary is one day of the multi-day forecast.
type DailySummary struct {
	Date        time.Time `json:"date"`
	Label       string    `json:"label"`
	Min         int       `json:"min"`
	Max         int       `json:"max"`
	Description string    `json:"description"`
	Condition   Condition `json:"condition"`
	IsDay       bool      `json:"isDay"`
	IconCode    string    `json:"iconCode"`
	Icon        string    `json:"icon"`
}

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Notification is a non-blocking user-facing message (toast).
type Notification struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Variant     string    `json:"variant"`
	At          time.Time `json:"at"`
}

// Snapshot is the read-only dashboard view handed to the rendering layer.
type Snapshot struct {
	Current        *CurrentConditions `json:"current"`
	Forecast       []DailySummary     `json:"forecast"`
	Loading        bool               `json:"loading"`
	RecentSearches []string           `json:"recentSearches"`
	LastQuery      string             `json:"lastQuery,omitempty"`
}

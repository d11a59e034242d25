package normalize

// Payload types mirror the OpenWeatherMap 2.5 JSON. Required numeric fields are pointers so
// a missing field can be told apart from a zero reading.

// Descriptor is one entry of the provider's "weather" array. The first entry is authoritative.
type Descriptor struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// CurrentPayload is the body of GET /weather.
type CurrentPayload struct {
	Name string `json:"name" validate:"required"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main struct {
		Temp      *float64 `json:"temp" validate:"required"`
		FeelsLike *float64 `json:"feels_like" validate:"required"`
		Humidity  *int     `json:"humidity" validate:"required"`
		Pressure  *float64 `json:"pressure" validate:"required"`
	} `json:"main"`
	Wind struct {
		Speed *float64 `json:"speed" validate:"required"`
	} `json:"wind"`
	Visibility *float64     `json:"visibility" validate:"required"`
	Weather    []Descriptor `json:"weather" validate:"required,min=1"`
}

// ForecastEntry is one 3-hour slice of GET /forecast.
type ForecastEntry struct {
	Dt   *int64 `json:"dt" validate:"required"`
	Main struct {
		TempMin *float64 `json:"temp_min" validate:"required"`
		TempMax *float64 `json:"temp_max" validate:"required"`
	} `json:"main"`
	Weather []Descriptor `json:"weather" validate:"required,min=1"`
}

// ForecastPayload is the body of GET /forecast.
type ForecastPayload struct {
	City struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"city"`
	List []ForecastEntry `json:"list" validate:"required,dive"`
}

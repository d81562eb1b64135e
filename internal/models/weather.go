package models

import "time"

// WeatherSnapshot is one successfully parsed weather dataset. It is never modified
// after construction; a newer fetch replaces the whole value.
type WeatherSnapshot struct {
	Area         string        `json:"area,omitempty"`
	TemperatureC int           `json:"temperatureC"`
	Humidity     int           `json:"humidity"`
	Conditions   string        `json:"conditions"`
	Days         []ForecastDay `json:"days"`
	FetchedAt    time.Time     `json:"fetchedAt"`
}

type ForecastDay struct {
	Date     string   `json:"date,omitempty"`
	MinTempC int      `json:"minTempC"`
	MaxTempC int      `json:"maxTempC"`
	Midday   string   `json:"midday"` // representative mid-day condition
	Hourly   []string `json:"hourly"`
}

// WithFetchedAt returns a copy of s stamped with t.
func (s WeatherSnapshot) WithFetchedAt(t time.Time) *WeatherSnapshot {
	s.FetchedAt = t
	return &s
}

// Package snapshot validates the wttr.in j1 payload into a WeatherSnapshot and holds
// the single current snapshot.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kjstillabower/weather-ticker/internal/models"
)

var (
	ErrMissingField   = errors.New("missing field")
	ErrMalformedShape = errors.New("malformed shape")
)

// Kind classifies a ParseError.
type Kind int

const (
	MissingField Kind = iota
	MalformedShape
)

func (k Kind) String() string {
	switch k {
	case MissingField:
		return "missing_field"
	case MalformedShape:
		return "malformed_shape"
	default:
		return "unknown"
	}
}

// ParseError reports why a payload could not become a snapshot. Field is a JSON path
// such as "weather[1].hourly".
type ParseError struct {
	Kind  Kind
	Field string
	Cause error
}

func (e *ParseError) Error() string {
	msg := "parse payload: " + e.Kind.String()
	if e.Field != "" {
		msg += " " + e.Field
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Is lets errors.Is match ErrMissingField and ErrMalformedShape.
func (e *ParseError) Is(target error) bool {
	switch target {
	case ErrMissingField:
		return e.Kind == MissingField
	case ErrMalformedShape:
		return e.Kind == MalformedShape
	}
	return false
}

func (e *ParseError) Unwrap() error { return e.Cause }

func missing(field string) error {
	return &ParseError{Kind: MissingField, Field: field}
}

func malformed(field string, cause error) error {
	return &ParseError{Kind: MalformedShape, Field: field, Cause: cause}
}

// Options tunes validation.
type Options struct {
	// MinDays is the minimum number of forecast days.
	MinDays int
	// MiddayIndex selects the hourly sample used as the day's representative
	// condition. Each day must carry at least MiddayIndex+1 hourly entries.
	MiddayIndex int
}

func DefaultOptions() Options {
	return Options{MinDays: 3, MiddayIndex: 4}
}

// flexInt accepts both "12" and 12; wttr.in quotes its numbers.
type flexInt struct {
	set   bool
	value int
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		return nil
	}
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("not an integer: %s", b)
	}
	f.set, f.value = true, v
	return nil
}

type textValue struct {
	Value *string `json:"value"`
}

type payload struct {
	CurrentCondition []struct {
		TempC       *flexInt    `json:"temp_C"`
		Humidity    *flexInt    `json:"humidity"`
		WeatherDesc []textValue `json:"weatherDesc"`
	} `json:"current_condition"`
	Weather []struct {
		Date     string   `json:"date"`
		MinTempC *flexInt `json:"mintempC"`
		MaxTempC *flexInt `json:"maxtempC"`
		Hourly   []struct {
			WeatherDesc []textValue `json:"weatherDesc"`
		} `json:"hourly"`
	} `json:"weather"`
	NearestArea []struct {
		AreaName []textValue `json:"areaName"`
	} `json:"nearest_area"`
}

// Parse validates raw with DefaultOptions.
func Parse(raw []byte) (*models.WeatherSnapshot, error) {
	return ParseWithOptions(raw, DefaultOptions())
}

// ParseWithOptions extracts the fields the pages need. It fails with a *ParseError
// and never returns a partially populated snapshot.
func ParseWithOptions(raw []byte, opts Options) (*models.WeatherSnapshot, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, malformed("", err)
	}

	if p.CurrentCondition == nil {
		return nil, missing("current_condition")
	}
	if len(p.CurrentCondition) == 0 {
		return nil, malformed("current_condition", errors.New("empty list"))
	}
	cur := p.CurrentCondition[0]
	if cur.TempC == nil || !cur.TempC.set {
		return nil, missing("current_condition[0].temp_C")
	}
	if cur.Humidity == nil || !cur.Humidity.set {
		return nil, missing("current_condition[0].humidity")
	}
	desc, err := firstValue(cur.WeatherDesc, "current_condition[0].weatherDesc")
	if err != nil {
		return nil, err
	}

	if p.Weather == nil {
		return nil, missing("weather")
	}
	if len(p.Weather) < opts.MinDays {
		return nil, malformed("weather", fmt.Errorf("%d days, want at least %d", len(p.Weather), opts.MinDays))
	}

	snap := &models.WeatherSnapshot{
		TemperatureC: cur.TempC.value,
		Humidity:     cur.Humidity.value,
		Conditions:   desc,
		Days:         make([]models.ForecastDay, 0, len(p.Weather)),
	}
	for i, w := range p.Weather {
		path := fmt.Sprintf("weather[%d]", i)
		if w.MinTempC == nil || !w.MinTempC.set {
			return nil, missing(path + ".mintempC")
		}
		if w.MaxTempC == nil || !w.MaxTempC.set {
			return nil, missing(path + ".maxtempC")
		}
		if w.Hourly == nil {
			return nil, missing(path + ".hourly")
		}
		if len(w.Hourly) <= opts.MiddayIndex {
			return nil, malformed(path+".hourly", fmt.Errorf("%d entries, want at least %d", len(w.Hourly), opts.MiddayIndex+1))
		}
		hourly := make([]string, len(w.Hourly))
		for j, h := range w.Hourly {
			text, err := firstValue(h.WeatherDesc, fmt.Sprintf("%s.hourly[%d].weatherDesc", path, j))
			if err != nil {
				return nil, err
			}
			hourly[j] = text
		}
		snap.Days = append(snap.Days, models.ForecastDay{
			Date:     w.Date,
			MinTempC: w.MinTempC.value,
			MaxTempC: w.MaxTempC.value,
			Midday:   hourly[opts.MiddayIndex],
			Hourly:   hourly,
		})
	}

	if len(p.NearestArea) > 0 {
		if area, err := firstValue(p.NearestArea[0].AreaName, ""); err == nil {
			snap.Area = area
		}
	}
	return snap, nil
}

func firstValue(values []textValue, field string) (string, error) {
	if values == nil {
		return "", missing(field)
	}
	if len(values) == 0 {
		return "", malformed(field, errors.New("empty list"))
	}
	if values[0].Value == nil {
		return "", missing(field + "[0].value")
	}
	return strings.TrimSpace(*values[0].Value), nil
}

package snapshot

import (
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T) []byte {
	t.Helper()
	raw, err := os.ReadFile("testdata/j1.json")
	require.NoError(t, err)
	return raw
}

// mutate decodes the fixture, applies fn and re-encodes it.
func mutate(t *testing.T, fn func(p map[string]any)) []byte {
	t.Helper()
	var p map[string]any
	require.NoError(t, json.Unmarshal(loadFixture(t), &p))
	fn(p)
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return raw
}

func day(p map[string]any, i int) map[string]any {
	return p["weather"].([]any)[i].(map[string]any)
}

// TestParse_Fixture verifies the recorded j1 payload parses into a full snapshot.
func TestParse_Fixture(t *testing.T) {
	snap, err := Parse(loadFixture(t))
	require.NoError(t, err)

	assert.Equal(t, 10, snap.TemperatureC)
	assert.Equal(t, 80, snap.Humidity)
	assert.Equal(t, "Light rain", snap.Conditions)
	assert.Equal(t, "Ulceby", snap.Area)
	require.Len(t, snap.Days, 3)
	assert.Equal(t, 6, snap.Days[1].MinTempC)
	assert.Equal(t, 13, snap.Days[1].MaxTempC)
	assert.Equal(t, "Moderate rain", snap.Days[1].Midday)
	assert.Equal(t, "Thundery outbreaks possible", snap.Days[2].Midday)
	assert.Len(t, snap.Days[0].Hourly, 8)
	assert.Equal(t, "2026-10-18", snap.Days[1].Date)
	assert.True(t, snap.FetchedAt.IsZero())
}

// TestParse_BareNumbers verifies numeric fields given as bare numbers instead of
// strings.
func TestParse_BareNumbers(t *testing.T) {
	raw := mutate(t, func(p map[string]any) {
		cur := p["current_condition"].([]any)[0].(map[string]any)
		cur["temp_C"] = -3
		cur["humidity"] = 95
	})
	snap, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, -3, snap.TemperatureC)
	assert.Equal(t, 95, snap.Humidity)
}

// TestParse_MiddayIndexConfigurable verifies the hourly slot used for the midday
// condition is configurable.
func TestParse_MiddayIndexConfigurable(t *testing.T) {
	snap, err := ParseWithOptions(loadFixture(t), Options{MinDays: 3, MiddayIndex: 2})
	require.NoError(t, err)
	assert.Equal(t, "Sunny", snap.Days[0].Midday)
}

// TestParse_Errors verifies each missing or malformed field yields the matching
// ParseError.
func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name      string
		fn        func(p map[string]any)
		wantErr   error
		wantField string
	}{
		{
			name:      "no current_condition",
			fn:        func(p map[string]any) { delete(p, "current_condition") },
			wantErr:   ErrMissingField,
			wantField: "current_condition",
		},
		{
			name:      "empty current_condition",
			fn:        func(p map[string]any) { p["current_condition"] = []any{} },
			wantErr:   ErrMalformedShape,
			wantField: "current_condition",
		},
		{
			name: "no temperature",
			fn: func(p map[string]any) {
				delete(p["current_condition"].([]any)[0].(map[string]any), "temp_C")
			},
			wantErr:   ErrMissingField,
			wantField: "current_condition[0].temp_C",
		},
		{
			name: "no humidity",
			fn: func(p map[string]any) {
				delete(p["current_condition"].([]any)[0].(map[string]any), "humidity")
			},
			wantErr:   ErrMissingField,
			wantField: "current_condition[0].humidity",
		},
		{
			name: "no description",
			fn: func(p map[string]any) {
				delete(p["current_condition"].([]any)[0].(map[string]any), "weatherDesc")
			},
			wantErr:   ErrMissingField,
			wantField: "current_condition[0].weatherDesc",
		},
		{
			name:      "no weather",
			fn:        func(p map[string]any) { delete(p, "weather") },
			wantErr:   ErrMissingField,
			wantField: "weather",
		},
		{
			name:      "two days",
			fn:        func(p map[string]any) { p["weather"] = p["weather"].([]any)[:2] },
			wantErr:   ErrMalformedShape,
			wantField: "weather",
		},
		{
			name:      "no max temp",
			fn:        func(p map[string]any) { delete(day(p, 2), "maxtempC") },
			wantErr:   ErrMissingField,
			wantField: "weather[2].maxtempC",
		},
		{
			name:      "no min temp",
			fn:        func(p map[string]any) { delete(day(p, 0), "mintempC") },
			wantErr:   ErrMissingField,
			wantField: "weather[0].mintempC",
		},
		{
			name:      "no hourly",
			fn:        func(p map[string]any) { delete(day(p, 1), "hourly") },
			wantErr:   ErrMissingField,
			wantField: "weather[1].hourly",
		},
		{
			name: "short hourly",
			fn: func(p map[string]any) {
				d := day(p, 1)
				d["hourly"] = d["hourly"].([]any)[:4]
			},
			wantErr:   ErrMalformedShape,
			wantField: "weather[1].hourly",
		},
		{
			name: "non-numeric temperature",
			fn: func(p map[string]any) {
				p["current_condition"].([]any)[0].(map[string]any)["temp_C"] = "warm"
			},
			wantErr: ErrMalformedShape,
		},
		{
			name:    "weather is an object",
			fn:      func(p map[string]any) { p["weather"] = map[string]any{"x": 1} },
			wantErr: ErrMalformedShape,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := Parse(mutate(t, tt.fn))
			require.Error(t, err)
			assert.Nil(t, snap)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, perr.Field)
			}
		})
	}
}

// TestParse_InvalidJSON verifies non-JSON and empty payloads are malformed.
func TestParse_InvalidJSON(t *testing.T) {
	_, err := Parse([]byte("<html>wttr is down</html>"))
	assert.True(t, errors.Is(err, ErrMalformedShape))
	assert.False(t, errors.Is(err, ErrMissingField))

	_, err = Parse(nil)
	assert.True(t, errors.Is(err, ErrMalformedShape))
}

// TestParse_MissingAreaIsFine verifies the optional nearest area may be absent.
func TestParse_MissingAreaIsFine(t *testing.T) {
	snap, err := Parse(mutate(t, func(p map[string]any) { delete(p, "nearest_area") }))
	require.NoError(t, err)
	assert.Empty(t, snap.Area)
}

// TestParseError_Message verifies the ParseError message and kind names.
func TestParseError_Message(t *testing.T) {
	err := &ParseError{Kind: MissingField, Field: "weather"}
	assert.Equal(t, "parse payload: missing_field weather", err.Error())
	assert.Equal(t, "malformed_shape", MalformedShape.String())
}

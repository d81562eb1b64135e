package render

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/weather-ticker/internal/display"
	"github.com/kjstillabower/weather-ticker/internal/models"
	"github.com/kjstillabower/weather-ticker/internal/snapshot"
)

func fixtureSnapshot(t *testing.T) *models.WeatherSnapshot {
	t.Helper()
	raw, err := os.ReadFile("../snapshot/testdata/j1.json")
	require.NoError(t, err)
	snap, err := snapshot.Parse(raw)
	require.NoError(t, err)
	return snap
}

// TestToday_EndToEnd verifies the today page renders the fixture onto a 16 column sink.
func TestToday_EndToEnd(t *testing.T) {
	snap := fixtureSnapshot(t)
	sink := display.NewRecorder(16)

	require.NoError(t, Show(sink, Today(snap)))

	lines := sink.Lines()
	assert.Equal(t, "Now:10C 80%     ", lines[0])
	assert.Equal(t, "Light rain      ", lines[1])
	for _, l := range lines {
		assert.Equal(t, 16, runewidth.StringWidth(l))
	}
}

// TestToday_RowZeroAlwaysFullWidth verifies row 0 of the today page is exactly the
// display width for extreme values.
func TestToday_RowZeroAlwaysFullWidth(t *testing.T) {
	cases := []models.WeatherSnapshot{
		{TemperatureC: 0, Humidity: 0},
		{TemperatureC: -15, Humidity: 100},
		{TemperatureC: 123456, Humidity: 123456, Conditions: strings.Repeat("x", 40)},
	}
	for _, c := range cases {
		sink := display.NewRecorder(16)
		require.NoError(t, Show(sink, Today(&c)))
		assert.Len(t, sink.Lines()[0], 16)
		assert.Len(t, sink.Lines()[1], 16)
	}
	sink := display.NewRecorder(16)
	require.NoError(t, Show(sink, Today(&cases[1])))
	assert.True(t, strings.HasPrefix(sink.Lines()[0], "Now:-15C 100%"))
}

// TestForecast verifies forecast pages for known days and the placeholder for a missing
// day.
func TestForecast(t *testing.T) {
	snap := fixtureSnapshot(t)
	assert.Equal(t, Lines{"Tomorrow:6-13C", "Moderate rain"}, Forecast(snap, 1, "Tomorrow"))
	assert.Equal(t, Lines{"DayAfter:4-11C", "Thundery outbreaks possible"}, Forecast(snap, 2, "DayAfter"))
	assert.Equal(t, Lines{"Later:--", ""}, Forecast(snap, 7, "Later"))

	sink := display.NewRecorder(16)
	require.NoError(t, Show(sink, Forecast(snap, 2, "DayAfter")))
	assert.Equal(t, "Thundery outbrea", sink.Lines()[1])
}

// TestAverage verifies the average page shows the aggregated category.
func TestAverage(t *testing.T) {
	snap := fixtureSnapshot(t)
	assert.Equal(t, Lines{"Average Weather", "Sun"}, Average(snap))

	mist := &models.WeatherSnapshot{Days: []models.ForecastDay{{Hourly: []string{"Mist"}}}}
	assert.Equal(t, "Mixed", Average(mist)[1])
}

// TestClock verifies the date and time rows with positive and negative UTC offsets.
func TestClock(t *testing.T) {
	now := time.Date(2026, 3, 9, 23, 30, 5, 0, time.UTC)
	assert.Equal(t, Lines{"09/03/2026", "23:30"}, Clock(now, 0))
	assert.Equal(t, Lines{"10/03/2026", "00:30"}, Clock(now, 1))
	assert.Equal(t, Lines{"09/03/2026", "18:30"}, Clock(now, -5))
}

// TestStatusPages verifies the bootstrap and status pages, including the connecting
// dots.
func TestStatusPages(t *testing.T) {
	assert.Equal(t, "Connecting", Connecting("Connecting", 0)[0])
	assert.Equal(t, "Connecting...", Connecting("Connecting", 3)[0])
	assert.Equal(t, "Connecting.", Connecting("Connecting", 5)[0])
	assert.Equal(t, Lines{"Connected IP:", "192.168.1.20"}, Connected("192.168.1.20"))
	assert.Equal(t, Lines{"Wi-Fi Error", "Check Router"}, JoinFailure("Check Router"))
	assert.Equal(t, "Error", Error("")[0])
	assert.Equal(t, "Loading...", Loading()[0])
}

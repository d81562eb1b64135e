// Package render turns weather snapshots and device status into two-line pages.
//
// Every function here is pure: it returns Lines and never touches a sink. Show is the
// only place where lines are fitted to a sink's width and written out.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/kjstillabower/weather-ticker/internal/codex"
	"github.com/kjstillabower/weather-ticker/internal/display"
	"github.com/kjstillabower/weather-ticker/internal/models"
)

// Lines is the content of one page: row 0 and row 1.
type Lines [display.Rows]string

// Today shows the current temperature, humidity and condition.
func Today(s *models.WeatherSnapshot) Lines {
	return Lines{
		fmt.Sprintf("Now:%dC %d%%", s.TemperatureC, s.Humidity),
		s.Conditions,
	}
}

// Forecast shows the min/max range and mid-day condition of day index. An index past
// the end of the forecast renders an empty range.
func Forecast(s *models.WeatherSnapshot, index int, label string) Lines {
	if index < 0 || index >= len(s.Days) {
		return Lines{label + ":--", ""}
	}
	day := s.Days[index]
	return Lines{
		fmt.Sprintf("%s:%d-%dC", label, day.MinTempC, day.MaxTempC),
		day.Midday,
	}
}

// Average shows the dominant condition across the forecast.
func Average(s *models.WeatherSnapshot) Lines {
	return Lines{"Average Weather", codex.Aggregate(s).DisplayName()}
}

// Clock shows the date and time of now in a fixed offset of tzOffsetHours from UTC.
func Clock(now time.Time, tzOffsetHours int) Lines {
	local := now.In(time.FixedZone("", tzOffsetHours*3600))
	return Lines{
		local.Format("02/01/2006"),
		local.Format("15:04"),
	}
}

// Connecting is the busy indicator shown while waiting; frame selects 0-3 dots.
func Connecting(msg string, frame int) Lines {
	if frame < 0 {
		frame = -frame
	}
	return Lines{msg + strings.Repeat(".", frame%4), ""}
}

func Connected(addr string) Lines {
	return Lines{"Connected IP:", addr}
}

func Loading() Lines {
	return Lines{"Loading...", ""}
}

// Error is shown on the weather display while no snapshot has ever been obtained.
func Error(detail string) Lines {
	return Lines{"Error", detail}
}

// JoinFailure is the fatal page; hint differs per display.
func JoinFailure(hint string) Lines {
	return Lines{"Wi-Fi Error", hint}
}

// Show clears sink and writes both rows fitted to its width.
func Show(sink display.Sink, lines Lines) error {
	if err := sink.Clear(); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	cols := sink.Columns()
	for row, text := range lines {
		if err := sink.WriteLine(row, display.Fit(text, cols)); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
	}
	return nil
}

package codex

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kjstillabower/weather-ticker/internal/models"
)

// TestMatches_CountsEveryKeyword verifies that every keyword found in a text is
// reported, case-insensitively.
func TestMatches_CountsEveryKeyword(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Category
	}{
		{"single", "Light rain", []Category{Rain}},
		{"case insensitive", "SUNNY", []Category{Sun}},
		{"multiple", "rain and wind", []Category{Rain, Wind}},
		{"thundery outbreaks", "Thundery outbreaks possible", []Category{Thunder}},
		{"none", "Mist", nil},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.text))
		})
	}
}

// TestClassify verifies a text maps to its first matching category, or Other.
func TestClassify(t *testing.T) {
	assert.Equal(t, Rain, Classify("Patchy rain nearby"))
	assert.Equal(t, Cloud, Classify("Partly cloudy"))
	assert.Equal(t, Sun, Classify("sun with a cloud"))
	assert.Equal(t, Other, Classify("Fog"))
}

// TestTally_MultiKeywordText verifies that one text may count toward several
// categories.
func TestTally_MultiKeywordText(t *testing.T) {
	counts := Tally([]string{"rain and wind", "Wind", "fog"})
	assert.Equal(t, 1, counts[Rain])
	assert.Equal(t, 2, counts[Wind])
	assert.Equal(t, 0, counts[Sun])
	assert.Len(t, counts, len(Keywords))
}

// TestDominant_TieGoesToFirstDeclared verifies that ties resolve to the category
// declared first.
func TestDominant_TieGoesToFirstDeclared(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
		want  Category
	}{
		{"rain equals sun", []string{"rain", "sun"}, Rain},
		{"sun equals cloud", []string{"sunny", "cloudy"}, Sun},
		{"breeze beats cloud on tie", []string{"breeze", "cloud"}, Breeze},
		{"strict winner", []string{"cloud", "cloud", "rain"}, Cloud},
		{"nothing", []string{"fog", "mist"}, Mixed},
		{"empty", nil, Mixed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tally(tt.texts).Dominant())
		})
	}
}

func snapshotWithHourly(days ...[]string) *models.WeatherSnapshot {
	s := &models.WeatherSnapshot{}
	for _, h := range days {
		s.Days = append(s.Days, models.ForecastDay{Hourly: h})
	}
	return s
}

// TestAggregate_SunAndCloudTie verifies the sun and cloud tie over three days resolves
// to Sun.
func TestAggregate_SunAndCloudTie(t *testing.T) {
	s := snapshotWithHourly(
		[]string{"Sunny", "Sunny", "Cloudy", "Mist"},
		[]string{"Sunny", "Cloudy", "Cloudy"},
		[]string{"Sunny", "Sunny", "Cloudy", "Cloudy"},
	)
	got := Aggregate(s)
	assert.Equal(t, Sun, got)
	assert.Equal(t, "Sun", got.DisplayName())
}

// TestAggregate_OnlyFirstThreeDays verifies that days after the third do not affect the
// aggregate.
func TestAggregate_OnlyFirstThreeDays(t *testing.T) {
	s := snapshotWithHourly(
		[]string{"rain"},
		[]string{"fog"},
		[]string{"fog"},
		[]string{"sun", "sun", "sun"},
	)
	assert.Equal(t, Rain, Aggregate(s))
}

// TestAggregate_NoKeywordsIsMixed verifies that no keyword hits, or no snapshot, yields
// Mixed.
func TestAggregate_NoKeywordsIsMixed(t *testing.T) {
	s := snapshotWithHourly([]string{"Mist"}, []string{"Fog"}, []string{"Overcast"})
	assert.Equal(t, Mixed, Aggregate(s))
	assert.Equal(t, "Mixed", Aggregate(s).DisplayName())
	assert.Equal(t, Mixed, Aggregate(nil))
}

// TestDisplayName verifies the capitalised category names shown on the display.
func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Rain", Rain.DisplayName())
	assert.Equal(t, "Thunder", Thunder.DisplayName())
	assert.Equal(t, "MIxed", Category("mIxed").DisplayName())
	assert.Equal(t, "", Category("").DisplayName())
}

// Package codex maps free-text weather descriptions onto a small fixed set of
// categories by keyword scan.
package codex

import (
	"strings"

	"github.com/kjstillabower/weather-ticker/internal/models"
)

// Category is a weather keyword, or one of the fallbacks Other and Mixed.
type Category string

const (
	Rain    Category = "rain"
	Sun     Category = "sun"
	Wind    Category = "wind"
	Thunder Category = "thunder"
	Breeze  Category = "breeze"
	Cloud   Category = "cloud"

	// Other is returned by Classify when no keyword matches.
	Other Category = "other"
	// Mixed is returned by Aggregate when no keyword was seen at all.
	Mixed Category = "mixed"
)

// Keywords is the declared scan order. Ties are resolved in favour of the earlier entry.
var Keywords = []Category{Rain, Sun, Wind, Thunder, Breeze, Cloud}

// AggregateDays is how many forecast days Aggregate looks at.
const AggregateDays = 3

// DisplayName upper-cases the first letter and leaves the rest as is.
func (c Category) DisplayName() string {
	if c == "" {
		return ""
	}
	return strings.ToUpper(string(c[:1])) + string(c[1:])
}

// Matches returns every keyword contained in text, in declared order.
// A single description can match several keywords ("rain and wind").
func Matches(text string) []Category {
	lower := strings.ToLower(text)
	var out []Category
	for _, k := range Keywords {
		if strings.Contains(lower, string(k)) {
			out = append(out, k)
		}
	}
	return out
}

// Classify returns the first declared keyword contained in text, or Other.
func Classify(text string) Category {
	if m := Matches(text); len(m) > 0 {
		return m[0]
	}
	return Other
}

// Count holds per-keyword occurrence counts.
type Count map[Category]int

// Tally counts keyword occurrences across texts. Each text increments every keyword
// it contains, once.
func Tally(texts []string) Count {
	counts := make(Count, len(Keywords))
	for _, k := range Keywords {
		counts[k] = 0
	}
	for _, text := range texts {
		for _, k := range Matches(text) {
			counts[k]++
		}
	}
	return counts
}

// Dominant returns the keyword with the strictly highest count, first declared on
// ties, or Mixed when every count is zero.
func (c Count) Dominant() Category {
	best, bestN := Mixed, 0
	for _, k := range Keywords {
		if n := c[k]; n > bestN {
			best, bestN = k, n
		}
	}
	return best
}

// Aggregate tallies every hourly description of the first AggregateDays forecast days.
// A nil snapshot or one with fewer days only counts what is there.
func Aggregate(s *models.WeatherSnapshot) Category {
	if s == nil {
		return Mixed
	}
	var texts []string
	for i, day := range s.Days {
		if i >= AggregateDays {
			break
		}
		texts = append(texts, day.Hourly...)
	}
	return Tally(texts).Dominant()
}

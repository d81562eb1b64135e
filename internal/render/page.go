package render

import "github.com/kjstillabower/weather-ticker/internal/models"

// PageKind enumerates the weather page variants.
type PageKind int

const (
	PageToday PageKind = iota
	PageForecast
	PageAverage
)

// Page is one entry of the weather rotation.
type Page struct {
	Kind  PageKind
	Index int    // forecast day, PageForecast only
	Label string // row 0 prefix, PageForecast only
}

// Name is a stable identifier for logs and metric labels.
func (p Page) Name() string {
	switch p.Kind {
	case PageToday:
		return "today"
	case PageForecast:
		return "forecast_" + p.Label
	case PageAverage:
		return "average"
	default:
		return "unknown"
	}
}

// Render dispatches to the renderer for the page variant.
func (p Page) Render(s *models.WeatherSnapshot) Lines {
	switch p.Kind {
	case PageForecast:
		return Forecast(s, p.Index, p.Label)
	case PageAverage:
		return Average(s)
	default:
		return Today(s)
	}
}

// DefaultPages is the fixed weather rotation.
var DefaultPages = []Page{
	{Kind: PageToday},
	{Kind: PageForecast, Index: 1, Label: "Tomorrow"},
	{Kind: PageForecast, Index: 2, Label: "DayAfter"},
	{Kind: PageAverage},
}

// Rotation cycles through a fixed page list. The zero value is not usable; use
// NewRotation.
type Rotation struct {
	pages []Page
	index int
}

func NewRotation(pages []Page) *Rotation {
	if len(pages) == 0 {
		pages = DefaultPages
	}
	return &Rotation{pages: pages}
}

func (r *Rotation) Current() Page {
	return r.pages[r.index]
}

func (r *Rotation) Index() int {
	return r.index
}

// Advance moves to the next page, wrapping to the first.
func (r *Rotation) Advance() {
	r.index = (r.index + 1) % len(r.pages)
}

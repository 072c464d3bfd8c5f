package model

import "time"

// FilterReport is the outcome of running the engine over one page.
type FilterReport struct {
	// Source is the file path or URL the page came from.
	Source string `json:"source"`

	// Location is the navigation target the page was evaluated under.
	Location string `json:"location"`

	// DateFiltered is when filtering finished.
	DateFiltered time.Time `json:"date_filtered"`

	// Blocklist is the number of blocked identities the page was
	// evaluated against.
	Blocklist int `json:"blocklist"`

	// Stats are the counters of the full pass.
	Stats PassStats `json:"stats"`

	// Suppressed lists every hidden fragment in document order.
	Suppressed []SuppressedItem `json:"suppressed,omitempty"`

	// Controls is the number of block controls injected.
	Controls int `json:"controls"`

	// PageControl is true when a page-subject control was mounted.
	PageControl bool `json:"page_control"`

	// OutputPath is where the filtered HTML was written, if anywhere.
	OutputPath string `json:"output_path,omitempty"`

	// Error is set when the page could not be filtered.
	Error string `json:"error,omitempty"`
}

// SuppressedItem is one hidden fragment.
type SuppressedItem struct {
	// Tag is the shape tag of the fragment.
	Tag string `json:"tag"`

	// Handle is the channel handle read from the fragment.
	Handle string `json:"handle,omitempty"`

	// DisplayName is the channel name read from the fragment.
	DisplayName string `json:"display_name,omitempty"`

	// Unit is the tag name of the element that was hidden.
	Unit string `json:"unit"`
}

// NewFilterReport creates an empty report for page.
func NewFilterReport(page *Page) *FilterReport {
	return &FilterReport{
		Source:   page.Source,
		Location: page.Location,
	}
}

// Failed reports whether filtering the page failed.
func (r *FilterReport) Failed() bool {
	return r.Error != ""
}

// Summary aggregates several page reports.
type Summary struct {
	Pages      int       `json:"pages"`
	Failed     int       `json:"failed"`
	Suppressed int       `json:"suppressed"`
	Controls   int       `json:"controls"`
	Stats      PassStats `json:"stats"`
}

// Summarize aggregates reports.
func Summarize(reports []*FilterReport) Summary {
	var s Summary
	for _, r := range reports {
		if r == nil {
			continue
		}
		s.Pages++
		if r.Failed() {
			s.Failed++
			continue
		}
		s.Suppressed += len(r.Suppressed)
		s.Controls += r.Controls
		s.Stats.Add(r.Stats)
	}
	return s
}

package domain

import "math"

// Summary backs the dashboard counters and the status pie chart.
type Summary struct {
	Open       int `json:"open" yaml:"open"`
	InProgress int `json:"in_progress" yaml:"in_progress"`
	Resolved   int `json:"resolved" yaml:"resolved"`
	Other      int `json:"other" yaml:"other"`
	Archived   int `json:"archived" yaml:"archived"`
	// Total counts the three active buckets only.
	Total int `json:"total" yaml:"total"`

	OpenPercent       float64 `json:"open_percent" yaml:"open_percent"`
	InProgressPercent float64 `json:"in_progress_percent" yaml:"in_progress_percent"`
	ResolvedPercent   float64 `json:"resolved_percent" yaml:"resolved_percent"`
}

// Summarize counts c. Percentages are shares of Total rounded to one
// decimal, and all zero when Total is zero.
func Summarize(c Collection) Summary {
	s := Summary{
		Open:       len(c.Open),
		InProgress: len(c.InProgress),
		Resolved:   len(c.Resolved),
		Other:      len(c.Other),
		Archived:   len(c.Archived),
	}
	s.Total = s.Open + s.InProgress + s.Resolved
	if s.Total > 0 {
		s.OpenPercent = percent(s.Open, s.Total)
		s.InProgressPercent = percent(s.InProgress, s.Total)
		s.ResolvedPercent = percent(s.Resolved, s.Total)
	}
	return s
}

func percent(n, total int) float64 {
	return math.Round(float64(n)*1000/float64(total)) / 10
}

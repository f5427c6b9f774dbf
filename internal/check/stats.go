package check

// StatusCounts tallies results by status.
type StatusCounts struct {
	Total   int `json:"total"`
	Pass    int `json:"pass"`
	Fail    int `json:"fail"`
	Warning int `json:"warning"`
	Info    int `json:"info"`
	Error   int `json:"error"`
}

func (s *StatusCounts) add(status Status) {
	s.Total++
	switch status {
	case StatusPass:
		s.Pass++
	case StatusFail:
		s.Fail++
	case StatusWarning:
		s.Warning++
	case StatusInfo:
		s.Info++
	case StatusError:
		s.Error++
	}
}

// PassPercent is the percentage of results that passed, 0 when empty.
func (s StatusCounts) PassPercent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Pass) / float64(s.Total) * 100
}

// Stats summarizes a result set.
type Stats struct {
	StatusCounts
	PassRate   float64                   `json:"pass_rate"`
	Pages      int                       `json:"pages"`
	ByCategory map[Category]StatusCounts `json:"by_category"`
	BySeverity map[Severity]StatusCounts `json:"by_severity"`
}

// Summarize reduces results to counts. It keeps no state between calls.
func Summarize(results []Result) Stats {
	stats := Stats{
		ByCategory: make(map[Category]StatusCounts),
		BySeverity: make(map[Severity]StatusCounts),
	}
	urls := make(map[string]struct{})

	for _, r := range results {
		stats.add(r.Status)
		urls[r.URL] = struct{}{}

		c := stats.ByCategory[r.Category]
		c.add(r.Status)
		stats.ByCategory[r.Category] = c

		s := stats.BySeverity[r.Severity]
		s.add(r.Status)
		stats.BySeverity[r.Severity] = s
	}

	stats.Pages = len(urls)
	stats.PassRate = stats.PassPercent()
	return stats
}

var statusRank = map[Status]int{
	StatusPass:    1,
	StatusInfo:    2,
	StatusWarning: 3,
	StatusFail:    4,
	StatusError:   5,
}

// WorstStatus returns the most severe status among results, or "None" for an
// empty set.
func WorstStatus(results []Result) Status {
	worst := Status("None")
	rank := 0
	for _, r := range results {
		if statusRank[r.Status] > rank {
			worst, rank = r.Status, statusRank[r.Status]
		}
	}
	return worst
}

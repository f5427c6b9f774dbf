package check

// Result is one finding of one check on one page. Every field is a flat
// string so results can be written to any tabular format without mapping.
type Result struct {
	URL            string   `json:"url"`
	CheckID        string   `json:"check_id"`
	CheckName      string   `json:"check_name"`
	Category       Category `json:"category"`
	Status         Status   `json:"status"`
	Severity       Severity `json:"severity"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation"`
	Evidence       string   `json:"evidence"`
}

// WithSeverity returns a copy of r with a different severity.
func (r Result) WithSeverity(s Severity) Result {
	r.Severity = s
	return r
}

// Columns returns the header row matching Row.
func Columns() []string {
	return []string{
		"URL", "Check ID", "Check Name", "Category", "Status",
		"Severity", "Message", "Recommendation", "Evidence",
	}
}

// Row flattens r in Columns order.
func (r Result) Row() []string {
	return []string{
		r.URL, r.CheckID, r.CheckName, string(r.Category), string(r.Status),
		string(r.Severity), r.Message, r.Recommendation, r.Evidence,
	}
}

package models

// Status is the headline state of one analysis dimension.
type Status string

const (
	StatusOK          Status = "ok"
	StatusMinor       Status = "minor"
	StatusMajor       Status = "major"
	StatusCritical    Status = "critical"
	StatusInfo        Status = "info"
	StatusUnavailable Status = "unavailable"
)

// StatusFromSeverity maps an issue severity to the matching status.
func StatusFromSeverity(s Severity) Status {
	switch s {
	case SeverityCritical:
		return StatusCritical
	case SeverityMajor:
		return StatusMajor
	case SeverityMinor:
		return StatusMinor
	}
	return StatusOK
}

// Message is the presentation envelope attached to each analyzer result.
// Status is computed by the analyzer; the texts come from the message
// catalog.
type Message struct {
	Status  Status `json:"status"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	CTA     string `json:"cta,omitempty"`
}

// StatusOf returns the status matching the worst severity among issues.
func StatusOf(issues []Issue) Status {
	worst := Severity("")
	for _, i := range issues {
		worst = WorstSeverity(worst, i.Severity)
	}
	return StatusFromSeverity(worst)
}

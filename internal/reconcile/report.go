package reconcile

import "time"

// Window is the half-open interval [From, To) a run covers.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Summary aggregates one run.
type Summary struct {
	EventsScanned     int     `json:"events_scanned"`
	EventsSkipped     int     `json:"events_skipped"`
	ArtifactsExpected int     `json:"artifacts_expected"`
	ArtifactsMatched  int     `json:"artifacts_matched"`
	TotalEventAmount  float64 `json:"total_event_amount"`
	TotalMatchedAmount float64 `json:"total_matched_amount"`
	FindingsByKind    map[FindingKind]int `json:"findings_by_kind"`
}

// Report is the full outcome of one reconciliation run. Findings are ordered
// deterministically (by event ref, then kind) so repeated runs over stable
// data produce identical reports.
type Report struct {
	Window   Window    `json:"window"`
	RanAt    time.Time `json:"ran_at"`
	Summary  Summary   `json:"summary"`
	Findings []Finding `json:"findings"`
}

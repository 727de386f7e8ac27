package models

// JobMode declares how a report computation was requested. The discriminant
// is required on the wire; consumers reject payloads without it instead of
// inferring intent from shape.
type JobMode string

const (
	ModeScheduled JobMode = "scheduled"
	ModeOnDemand  JobMode = "on_demand"
)

// ReportJob is one unit of report computation work.
type ReportJob struct {
	Mode         JobMode `json:"mode" validate:"required,oneof=scheduled on_demand"`
	Ticker       string  `json:"ticker" validate:"required"`
	BusinessDate string  `json:"business_date" validate:"required,datetime=2006-01-02"`
}

// FetchStatus is the per-ticker outcome of a fetch batch.
type FetchStatus string

const (
	FetchSuccess FetchStatus = "success"
	FetchFailed  FetchStatus = "failed"
)

// FetchOutcome records how one ticker fared during a fetch run. It carries
// no report content: data acquisition and computation stay separated at the
// type level.
type FetchOutcome struct {
	Status FetchStatus
	Reason string
	Rows   int
}

// FetchReport maps canonical IDs to their fetch outcomes for one run.
type FetchReport map[string]FetchOutcome

// Succeeded returns the canonical IDs with a successful outcome.
func (r FetchReport) Succeeded() []string {
	out := make([]string, 0, len(r))
	for id, o := range r {
		if o.Status == FetchSuccess {
			out = append(out, id)
		}
	}
	return out
}

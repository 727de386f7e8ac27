package models

// Requests for the report HTTP endpoints. Defined in domain for consistency and reuse.

type ReportRequest struct {
	Ticker string `query:"ticker" json:"ticker" validate:"required,min=1,max=32"`
}

type StatusRequest struct {
	Ticker string `query:"ticker" json:"ticker" validate:"required,min=1,max=32"`
	Date   string `query:"date" json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type RunRequest struct {
	Tickers []string `json:"tickers" validate:"omitempty,dive,min=1,max=32"`
}

// ReportResponse is the consumer-facing read contract: ready with a payload,
// or not ready. Pending and failed rows are indistinguishable from a miss.
type ReportResponse struct {
	Ticker       string `json:"ticker"`
	BusinessDate string `json:"business_date"`
	Ready        bool   `json:"ready"`
	Report       string `json:"report,omitempty"`
}

package result

import "time"

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusTimeout Status = "timeout"
)

// Sentinel status codes recorded when no real HTTP status exists.
const (
	CodeTimeout    = 408
	CodeNoResponse = 0
)

type Result struct {
	ID           int64     `json:"id"`
	EndpointID   int64     `json:"endpoint_id"`
	UserID       int64     `json:"user_id"`
	Status       Status    `json:"status"`
	ResponseTime int64     `json:"response_time"` // milliseconds
	StatusCode   *int      `json:"status_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`

	// Diagnostic snapshot, captured only for HTTP-level failures.
	ResponseHeaders map[string]string `json:"response_headers,omitempty"`
	ResponseBody    string            `json:"response_body,omitempty"`
}

// Stats is an aggregate over one endpoint's results inside a time window.
type Stats struct {
	Total           int     `json:"total"`
	Successes       int     `json:"successes"`
	AvgResponseTime float64 `json:"avg_response_time"`
	UptimePercent   float64 `json:"uptime_percent"`
}

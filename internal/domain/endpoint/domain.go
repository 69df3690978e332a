package endpoint

import "time"

// Allowed check intervals. The CRUD layer validates on write; the
// monitoring core only reads the configured value.
const (
	IntervalShort  = 60 * time.Second
	IntervalMedium = 5 * time.Minute
	IntervalLong   = 15 * time.Minute
)

type Endpoint struct {
	ID             int64             `json:"id"`
	UserID         int64             `json:"user_id"`
	Name           string            `json:"name"`
	URL            string            `json:"url"`
	Method         string            `json:"method"`
	Headers        map[string]string `json:"headers,omitempty"`
	Body           string            `json:"body,omitempty"`
	ExpectedStatus int               `json:"expected_status"`
	Interval       time.Duration     `json:"interval"`
	Timeout        time.Duration     `json:"timeout"`
	Active         bool              `json:"active"`

	// Alerting thresholds configured per endpoint.
	MaxResponseTime  int64 `json:"max_response_time"`
	FailureThreshold int   `json:"failure_threshold"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

package hub

import (
	"time"

	"github.com/dmkor-dev/uptimed/internal/domain/result"
	"github.com/dmkor-dev/uptimed/internal/monitor"
)

// Client-originated message types.
const (
	msgSubscribe      = "subscribe-endpoint"
	msgUnsubscribe    = "unsubscribe-endpoint"
	msgRequestInitial = "request-initial-data"
	msgRequestHistory = "request-endpoint-history"
)

// Server-originated message types.
const (
	msgInitialData     = "initial-data"
	msgEndpointUpdated = "endpoint-updated"
	msgEndpointHistory = "endpoint-history"
	msgLiveStats       = "live-stats"
	msgThresholdAlert  = "threshold-alert"
	msgEndpointDeleted = "endpoint-deleted"
	msgTokensRefreshed = "tokens-refreshed"
	msgError           = "error"
)

type clientMessage struct {
	Type       string `json:"type"`
	EndpointID int64  `json:"endpoint_id,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type serverMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type endpointUpdate struct {
	EndpointID   int64  `json:"endpoint_id"`
	Status       string `json:"status"`
	ResponseTime int64  `json:"response_time"`
	StatusCode   *int   `json:"status_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	CheckedAt    int64  `json:"checked_at"`     // unix milliseconds
	CheckedAtISO string `json:"checked_at_iso"` // RFC3339
}

type alertPayload struct {
	EndpointID   int64  `json:"endpoint_id"`
	EndpointName string `json:"endpoint_name"`
	FailureCount int    `json:"failure_count"`
	Threshold    int    `json:"threshold"`
	At           int64  `json:"at"`
	AtISO        string `json:"at_iso"`
}

type endpointSnapshot struct {
	EndpointID   int64                  `json:"endpoint_id"`
	Name         string                 `json:"name"`
	Status       monitor.EndpointStatus `json:"status"`
	FailureCount int                    `json:"failure_count"`
	Latest       *result.Result         `json:"latest,omitempty"`
	Stats        *result.Stats          `json:"stats,omitempty"`
}

type initialData struct {
	Endpoints []endpointSnapshot `json:"endpoints"`
}

type historyPayload struct {
	EndpointID int64            `json:"endpoint_id"`
	Results    []*result.Result `json:"results"`
}

type deletedPayload struct {
	EndpointID int64 `json:"endpoint_id"`
}

// LiveStats is the per-user aggregate the broadcaster pushes every tick.
type LiveStats struct {
	TotalActive     int     `json:"total_active"`
	Up              int     `json:"up"`
	Degraded        int     `json:"degraded"`
	Down            int     `json:"down"`
	AvgResponseTime float64 `json:"avg_response_time"`
	AvgUptime       float64 `json:"avg_uptime"`
}

func formatUpdate(res *result.Result) endpointUpdate {
	return endpointUpdate{
		EndpointID:   res.EndpointID,
		Status:       string(res.Status),
		ResponseTime: res.ResponseTime,
		StatusCode:   res.StatusCode,
		ErrorMessage: res.ErrorMessage,
		CheckedAt:    res.CheckedAt.UnixMilli(),
		CheckedAtISO: res.CheckedAt.Format(time.RFC3339),
	}
}

func formatAlert(a monitor.ThresholdAlert) alertPayload {
	return alertPayload{
		EndpointID:   a.EndpointID,
		EndpointName: a.EndpointName,
		FailureCount: a.FailureCount,
		Threshold:    a.Threshold,
		At:           a.At.UnixMilli(),
		AtISO:        a.At.Format(time.RFC3339),
	}
}

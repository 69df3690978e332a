package monitor

import (
	"github.com/dmkor-dev/uptimed/internal/domain/endpoint"
	"github.com/dmkor-dev/uptimed/internal/domain/result"
)

type EndpointStatus string

const (
	StatusUp       EndpointStatus = "up"
	StatusDegraded EndpointStatus = "degraded"
	StatusDown     EndpointStatus = "down"
	StatusInactive EndpointStatus = "inactive"
)

// DeriveStatus folds the activation flag, the consecutive failure count
// and the latest result into one dashboard-facing status. An endpoint
// with no history yet is assumed up.
func DeriveStatus(ep *endpoint.Endpoint, failures int, latest *result.Result) EndpointStatus {
	if !ep.Active {
		return StatusInactive
	}
	if ep.FailureThreshold > 0 && failures >= ep.FailureThreshold {
		return StatusDown
	}
	if failures > 0 {
		return StatusDegraded
	}
	if latest == nil {
		return StatusUp
	}
	switch latest.Status {
	case result.StatusSuccess:
		return StatusUp
	case result.StatusTimeout:
		return StatusDegraded
	default:
		return StatusDown
	}
}

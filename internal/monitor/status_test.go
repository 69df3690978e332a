package monitor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmkor-dev/uptimed/internal/domain/endpoint"
	"github.com/dmkor-dev/uptimed/internal/domain/result"
)

func TestDeriveStatus(t *testing.T) {
	active := &endpoint.Endpoint{Active: true, FailureThreshold: 3}

	tests := []struct {
		name     string
		ep       *endpoint.Endpoint
		failures int
		latest   *result.Result
		want     EndpointStatus
	}{
		{
			name:     "inactive wins over everything",
			ep:       &endpoint.Endpoint{Active: false, FailureThreshold: 3},
			failures: 5,
			latest:   &result.Result{Status: result.StatusFailure},
			want:     StatusInactive,
		},
		{
			name:     "failures at threshold is down",
			ep:       active,
			failures: 3,
			latest:   &result.Result{Status: result.StatusSuccess},
			want:     StatusDown,
		},
		{
			name:     "failures above threshold is down",
			ep:       active,
			failures: 7,
			want:     StatusDown,
		},
		{
			name:     "failures below threshold is degraded",
			ep:       active,
			failures: 1,
			latest:   &result.Result{Status: result.StatusSuccess},
			want:     StatusDegraded,
		},
		{
			name:   "no history is up",
			ep:     active,
			latest: nil,
			want:   StatusUp,
		},
		{
			name:   "latest success is up",
			ep:     active,
			latest: &result.Result{Status: result.StatusSuccess},
			want:   StatusUp,
		},
		{
			name:   "latest timeout is degraded",
			ep:     active,
			latest: &result.Result{Status: result.StatusTimeout},
			want:   StatusDegraded,
		},
		{
			name:   "latest failure is down",
			ep:     active,
			latest: &result.Result{Status: result.StatusFailure},
			want:   StatusDown,
		},
		{
			name:     "zero threshold never trips down on count",
			ep:       &endpoint.Endpoint{Active: true, FailureThreshold: 0},
			failures: 10,
			want:     StatusDegraded,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, DeriveStatus(tc.ep, tc.failures, tc.latest))
		})
	}
}

package hub

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmkor-dev/uptimed/internal/domain/endpoint"
	"github.com/dmkor-dev/uptimed/internal/domain/result"
)

func manualCheck(t *testing.T, f *hubFixture, id, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/endpoints/"+id+"/check", nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestManualCheckRequiresAuth(t *testing.T) {
	f := newHubFixture(t)
	resp := manualCheck(t, f, "1", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestManualCheckBadID(t *testing.T) {
	f := newHubFixture(t)
	resp := manualCheck(t, f, "nope", "token-a")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestManualCheckUnknownEndpoint(t *testing.T) {
	f := newHubFixture(t)
	resp := manualCheck(t, f, "99", "token-a")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestManualCheckForeignEndpoint(t *testing.T) {
	ep := &endpoint.Endpoint{ID: 10, UserID: 2, Active: true}
	f := newHubFixture(t, ep)
	resp := manualCheck(t, f, "10", "token-a")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestManualCheckRunsProbe(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	ep := &endpoint.Endpoint{
		ID:             10,
		UserID:         1,
		URL:            target.URL,
		ExpectedStatus: http.StatusOK,
		Timeout:        2 * time.Second,
		Active:         true,
	}
	f := newHubFixture(t, ep)

	resp := manualCheck(t, f, "10", "token-a")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var res result.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	require.Equal(t, result.StatusSuccess, res.Status)
	require.Equal(t, int64(10), res.EndpointID)

	latest, err := f.results.Latest(t.Context(), 10)
	require.NoError(t, err)
	require.Equal(t, result.StatusSuccess, latest.Status)
}

func TestManualCheckConflictsWithRunningCheck(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
	}))
	defer target.Close()

	ep := &endpoint.Endpoint{
		ID:             10,
		UserID:         1,
		URL:            target.URL,
		ExpectedStatus: http.StatusOK,
		Timeout:        5 * time.Second,
		Active:         true,
	}
	f := newHubFixture(t, ep)

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		req, _ := http.NewRequest(http.MethodPost, f.srv.URL+"/endpoints/10/check", nil)
		req.Header.Set("Authorization", "Bearer token-a")
		if resp, err := http.DefaultClient.Do(req); err == nil {
			resp.Body.Close()
		}
	}()
	<-started

	resp := manualCheck(t, f, "10", "token-a")
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	close(release)
	<-firstDone
}

func TestManualCheckInactiveWithoutHistory(t *testing.T) {
	ep := &endpoint.Endpoint{ID: 10, UserID: 1, URL: "http://example.com", Active: false}
	f := newHubFixture(t, ep)

	resp := manualCheck(t, f, "10", "token-a")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

package monitor

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dmkor-dev/uptimed/internal/domain/endpoint"
	"github.com/dmkor-dev/uptimed/internal/domain/result"

	"go.uber.org/zap"
)

const defaultProbeTimeout = 10 * time.Second

type ExecutorConfig struct {
	UserAgent   string
	VerifyTLS   bool
	MaxSnapshot int // response body capture cap on failed checks, in bytes
}

// Executor performs one probe against one endpoint and always persists
// exactly one result for it. Single-flight per endpoint is the caller's
// concern (see Service).
type Executor struct {
	results result.Store
	client  *http.Client
	cfg     ExecutorConfig
	log     *zap.Logger
	now     func() time.Time
}

func NewExecutor(results result.Store, cfg ExecutorConfig, log *zap.Logger) *Executor {
	if cfg.MaxSnapshot <= 0 {
		cfg.MaxSnapshot = 1000
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   defaultProbeTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !cfg.VerifyTLS,
			MinVersion:         tls.VersionTLS12,
		},
	}
	// Per-check deadlines come from the request context, not the client;
	// redirects stay on the default bounded policy.
	return &Executor{
		results: results,
		client:  &http.Client{Transport: transport},
		cfg:     cfg,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run probes the endpoint and persists the outcome. An inactive endpoint
// is not probed: its most recent stored result is returned, or
// result.ErrNoPriorData when it was never checked.
func (e *Executor) Run(ctx context.Context, ep *endpoint.Endpoint) (*result.Result, error) {
	if !ep.Active {
		return e.results.Latest(ctx, ep.ID)
	}

	res := e.probe(ctx, ep)
	if err := e.results.Create(ctx, res); err != nil {
		e.log.Warn("persist check result",
			zap.Int64("endpoint_id", ep.ID),
			zap.Error(err),
		)
	}
	return res, nil
}

func (e *Executor) probe(ctx context.Context, ep *endpoint.Endpoint) *result.Result {
	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := &result.Result{
		EndpointID: ep.ID,
		UserID:     ep.UserID,
		CheckedAt:  e.now(),
	}

	method := ep.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if ep.Body != "" {
		body = strings.NewReader(ep.Body)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, method, ep.URL, body)
	if err != nil {
		code := result.CodeNoResponse
		res.Status = result.StatusFailure
		res.StatusCode = &code
		res.ErrorMessage = fmt.Sprintf("request setup failed: %v", err)
		return res
	}
	req.Header.Set("User-Agent", e.cfg.UserAgent)
	for k, v := range ep.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	res.ResponseTime = time.Since(start).Milliseconds()
	if err != nil {
		if isTimeout(err) {
			code := result.CodeTimeout
			res.Status = result.StatusTimeout
			res.StatusCode = &code
			res.ErrorMessage = fmt.Sprintf("request timed out after %s", timeout)
			return res
		}
		code := result.CodeNoResponse
		res.Status = result.StatusFailure
		res.StatusCode = &code
		res.ErrorMessage = fmt.Sprintf("no response received: %v", err)
		return res
	}
	defer resp.Body.Close()

	code := resp.StatusCode
	res.StatusCode = &code
	if code == ep.ExpectedStatus {
		res.Status = result.StatusSuccess
		return res
	}

	res.Status = result.StatusFailure
	res.ErrorMessage = fmt.Sprintf("unexpected status %d, want %d", code, ep.ExpectedStatus)
	res.ResponseHeaders = flattenHeaders(resp.Header)
	snap, _ := io.ReadAll(io.LimitReader(resp.Body, int64(e.cfg.MaxSnapshot)))
	res.ResponseBody = string(snap)
	return res
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

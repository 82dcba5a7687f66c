package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"basegraph.app/storepilot/internal/http/dto"
	"basegraph.app/storepilot/internal/http/middleware"
	"basegraph.app/storepilot/internal/model"
)

// serverClient calls a running storepilot server.
type serverClient struct {
	baseURL  string
	adminKey string
	http     *retryablehttp.Client
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

func newServerClient(baseURL, adminKey string) *serverClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = 30 * time.Second
	rc.Logger = nil
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.CheckRetry = retryReads
	return &serverClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		adminKey: adminKey,
		http:     rc,
	}
}

type noRetryKey struct{}

// retryReads applies the default policy to reads only. A repeated trigger
// would queue a second cycle.
func retryReads(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if noRetry, _ := ctx.Value(noRetryKey{}).(bool); noRetry {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func (c *serverClient) TriggerCycle(ctx context.Context, req dto.TriggerCycleRequest, apply bool) (*dto.TriggerCycleResponse, error) {
	path := "/api/v1/cycles"
	if apply {
		path += "?apply=true"
	}
	var out dto.TriggerCycleResponse
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *serverClient) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	var out model.Job
	if err := c.do(ctx, http.MethodGet, "/api/v1/cycles/jobs/"+jobID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *serverClient) GetReport(ctx context.Context, cycleID string) (*model.CycleReport, error) {
	var out model.CycleReport
	if err := c.do(ctx, http.MethodGet, "/api/v1/cycles/reports/"+cycleID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WaitJob polls until the job is terminal.
func (c *serverClient) WaitJob(ctx context.Context, jobID string, interval time.Duration) (*model.Job, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		job, err := c.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Status.Terminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *serverClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	if method != http.MethodGet {
		ctx = context.WithValue(ctx, noRetryKey{}, true)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.adminKey != "" {
		req.Header.Set(middleware.AdminKeyHeader, c.adminKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

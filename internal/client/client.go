package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	app "github.com/kode4food/relay"
	"github.com/kode4food/relay/pkg/api"
	"github.com/kode4food/relay/pkg/log"
)

type (
	// Client drives a remote relay API
	Client interface {
		Pipelines(ctx context.Context) ([]string, error)
		CreateStep(ctx context.Context, pipeline, cmd, desc string) (*api.Step, error)
		ConnectSteps(ctx context.Context, pipeline string, src, dest api.StepID) error
		Steps(ctx context.Context, pipeline string) ([]*api.Step, error)
		Step(ctx context.Context, pipeline string, id api.StepID) (*api.Step, error)
		Run(ctx context.Context, pipeline string) (*api.RunReport, error)
		Report(ctx context.Context, snapshot string) (*api.RunReport, error)
		Delete(ctx context.Context, pipeline string) error
	}

	// HTTPClient talks to the relay HTTP API
	HTTPClient struct {
		httpClient *http.Client
		baseURL    string
	}

	// StatusError is returned for any non-success HTTP status
	StatusError struct {
		Status  int
		Message string
	}
)

var (
	ErrHTTPError     = errors.New("relay returned HTTP error")
	ErrInvalidReply  = errors.New("invalid response body")
	ErrInvalidBase   = errors.New("invalid base URL")
	ErrNotFound      = errors.New("not found")
	ErrInvalidPlan   = errors.New("pipeline structure invalid")
	ErrRequestFailed = errors.New("request failed")
)

var _ Client = (*HTTPClient)(nil)

const userAgent = app.Name + "-client/" + app.Version

// NewHTTPClient creates a client for the API rooted at baseURL
func NewHTTPClient(baseURL string, timeout time.Duration) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBase, baseURL)
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    u.String(),
	}, nil
}

// Pipelines lists the stored pipeline and snapshot names
func (c *HTTPClient) Pipelines(ctx context.Context) ([]string, error) {
	var res api.PipelinesListResponse
	if err := c.do(ctx, http.MethodGet, "/pipeline", nil, &res); err != nil {
		return nil, err
	}
	return res.Pipelines, nil
}

// CreateStep appends an unconnected step to a pipeline
func (c *HTTPClient) CreateStep(
	ctx context.Context, pipeline, cmd, desc string,
) (*api.Step, error) {
	req := api.CreateStepRequest{Command: cmd, Description: desc}
	var res api.StepCreatedResponse
	err := c.do(ctx,
		http.MethodPost, pipelinePath(pipeline, "step"), req, &res,
	)
	if err != nil {
		return nil, err
	}
	return res.Step, nil
}

// ConnectSteps links src to dest with a NEXT edge
func (c *HTTPClient) ConnectSteps(
	ctx context.Context, pipeline string, src, dest api.StepID,
) error {
	req := api.ConnectStepsRequest{Source: src, Dest: dest}
	return c.do(ctx,
		http.MethodPost, pipelinePath(pipeline, "edge"), req, nil,
	)
}

// Steps returns a pipeline's steps ordered by id
func (c *HTTPClient) Steps(
	ctx context.Context, pipeline string,
) ([]*api.Step, error) {
	var res api.StepsListResponse
	err := c.do(ctx, http.MethodGet, pipelinePath(pipeline, "step"), nil, &res)
	if err != nil {
		return nil, err
	}
	return res.Steps, nil
}

// Step returns a single step
func (c *HTTPClient) Step(
	ctx context.Context, pipeline string, id api.StepID,
) (*api.Step, error) {
	path := pipelinePath(pipeline, "step/"+strconv.FormatInt(int64(id), 10))
	var res api.Step
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Run executes a pipeline synchronously and returns its report. A report
// with failed steps is not an error
func (c *HTTPClient) Run(
	ctx context.Context, pipeline string,
) (*api.RunReport, error) {
	var res api.RunReport
	err := c.do(ctx, http.MethodPost, pipelinePath(pipeline, "run"), nil, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Report fetches an archived run report
func (c *HTTPClient) Report(
	ctx context.Context, snapshot string,
) (*api.RunReport, error) {
	var res api.RunReport
	path := "/run/" + url.PathEscape(snapshot)
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Delete removes a pipeline or snapshot graph
func (c *HTTPClient) Delete(ctx context.Context, pipeline string) error {
	return c.do(ctx, http.MethodDelete, pipelinePath(pipeline, ""), nil, nil)
}

func (c *HTTPClient) do(
	ctx context.Context, method, path string, in, out any,
) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("HTTP request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Duration("duration", time.Since(start)),
			log.Error(err))
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, respBody)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidReply, err)
	}
	return nil
}

func statusError(status int, body []byte) error {
	var res api.ErrorResponse
	msg := string(body)
	if err := json.Unmarshal(body, &res); err == nil && res.Error != "" {
		msg = res.Error
	}
	return &StatusError{Status: status, Message: msg}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", ErrHTTPError, e.Status, e.Message)
}

// Unwrap maps well-known statuses onto sentinel errors
func (e *StatusError) Unwrap() []error {
	switch e.Status {
	case http.StatusNotFound:
		return []error{ErrHTTPError, ErrNotFound}
	case http.StatusUnprocessableEntity:
		return []error{ErrHTTPError, ErrInvalidPlan}
	default:
		return []error{ErrHTTPError}
	}
}

func pipelinePath(name, rest string) string {
	p := "/pipeline/" + url.PathEscape(name)
	if rest != "" {
		p += "/" + rest
	}
	return p
}

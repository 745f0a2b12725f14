// Package simclient is a Go client for the instrument simulator API.
package simclient

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
	"time"
)

const defaultTimeout = 30 * time.Second

// ErrNotFound is returned when the server does not know the activity id.
var ErrNotFound = errors.New("activity not found")

// ErrDataNotReady is returned by Data before the activity has completed.
var ErrDataNotReady = errors.New("data not ready")

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("simulator returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("simulator returned status %d: %s", e.StatusCode, e.Message)
}

// Is matches ErrNotFound for 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// StartError is returned by Start when the server rejects the request.
type StartError struct {
	Msg string
}

func (e *StartError) Error() string {
	return e.Msg
}

// Client talks to one simulator.
type Client struct {
	Host       string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.Logger = logger }
}

// WithHTTPClient sets the HTTP client. Event streams need a client without a
// total request timeout.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.HTTPClient = hc }
}

// New creates a Client for the simulator at host, e.g. "http://localhost:8080".
func New(host string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid host URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("host URL must include scheme and host: %s", host)
	}

	c := &Client{
		Host:       host,
		HTTPClient: &http.Client{},
		Logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Health checks that the simulator is up.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	err := c.do(ctx, http.MethodGet, "/healthz", nil, &out)
	return out, err
}

// Actions lists the advertised action names.
func (c *Client) Actions(ctx context.Context) ([]string, error) {
	var out actionsResponse
	if err := c.do(ctx, http.MethodGet, "/v0.1/actions", nil, &out); err != nil {
		return nil, err
	}
	return out.ActionNames, nil
}

// Activities lists the advertised activity names.
func (c *Client) Activities(ctx context.Context) ([]string, error) {
	var out activitiesResponse
	if err := c.do(ctx, http.MethodGet, "/v0.1/activities", nil, &out); err != nil {
		return nil, err
	}
	return out.ActivityNames, nil
}

// Perform submits an action. The outcome arrives later on the event stream.
func (c *Client) Perform(ctx context.Context, name string, options []Option) error {
	return c.do(ctx, http.MethodPost, "/v0.1/actions/perform", performRequest{
		ActionName:    name,
		ActionOptions: options,
	}, nil)
}

// Start starts an activity and returns its id. A rejected request returns a
// *StartError carrying the server's message. deadline may be empty.
func (c *Client) Start(ctx context.Context, name string, options []Option, deadline string) (string, error) {
	var out startResponse
	err := c.do(ctx, http.MethodPost, "/v0.1/activities/start", startRequest{
		ActivityName:     name,
		ActivityOptions:  options,
		ActivityDeadline: deadline,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.ActivityID == "" {
		return "", &StartError{Msg: out.ErrorMsg}
	}
	return out.ActivityID, nil
}

// Cancel cancels an activity.
func (c *Client) Cancel(ctx context.Context, id, reason string) error {
	return c.do(ctx, http.MethodPost, "/v0.1/activities/cancel", cancelRequest{
		ActivityID: id,
		Reason:     reason,
	}, nil)
}

// Status returns the status of an activity.
func (c *Client) Status(ctx context.Context, id string) (ActivityStatus, error) {
	var out ActivityStatus
	err := c.do(ctx, http.MethodGet, "/v0.1/activities/"+url.PathEscape(id)+"/status", nil, &out)
	return out, err
}

// Data returns the data products of a completed activity, or ErrDataNotReady.
func (c *Client) Data(ctx context.Context, id string) ([]string, error) {
	var out dataResponse
	if err := c.do(ctx, http.MethodGet, "/v0.1/activities/"+url.PathEscape(id)+"/data", nil, &out); err != nil {
		return nil, err
	}
	if out.ErrorMsg != "" {
		return nil, fmt.Errorf("%w: %s", ErrDataNotReady, out.ErrorMsg)
	}
	return out.Products, nil
}

// Logs returns the captured lifecycle logs of an activity.
func (c *Client) Logs(ctx context.Context, id string) ([]LogEntry, error) {
	var out logsResponse
	if err := c.do(ctx, http.MethodGet, "/v0.1/activities/"+url.PathEscape(id)+"/logs", nil, &out); err != nil {
		return nil, err
	}
	return out.Logs, nil
}

// Config returns the effective server configuration as YAML.
func (c *Client) Config(ctx context.Context) (string, error) {
	resp, err := c.send(ctx, http.MethodGet, "/v0.1/config", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading config: %w", err)
	}
	return string(body), nil
}

// WaitFinished polls the status of id every interval until it is COMPLETED or CANCELED.
func (c *Client) WaitFinished(ctx context.Context, id string, interval time.Duration) (ActivityStatus, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		status, err := c.Status(ctx, id)
		if err != nil {
			return ActivityStatus{}, err
		}
		if status.Finished() {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}

// do sends body as JSON and decodes a successful response into out, if non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// send performs the request and turns non-2xx responses into *APIError.
func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	ctx, cancel := withDefaultTimeout(ctx)
	req, err := http.NewRequestWithContext(ctx, method, c.Host+path, reader)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	c.Logger.Debug("simulator request", "method", method, "path", path)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}

	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}
	return resp, nil
}

func readAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body errorResponse
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = string(bytes.TrimSpace(data))
	}
	return apiErr
}

// withDefaultTimeout bounds ctx unless it already has a deadline.
func withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, defaultTimeout)
}

// cancelOnClose releases the request context once the body is consumed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

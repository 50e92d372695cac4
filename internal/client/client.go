// Package client is a typed HTTP client for the ipstudio API. It satisfies
// the poller task and batch sources so callers can wait on remote state.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ipstudio/internal/domain"
	"ipstudio/internal/domain/jsoncfg"
)

const defaultTimeout = 30 * time.Second

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: %s (%d): %s", e.Code, e.Status, e.Message)
}

// Unwrap maps statuses onto the domain sentinels so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrUnauthorized
	case http.StatusConflict:
		return domain.ErrInvalidState
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.ErrInvalidInput
	}
	return nil
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("client: base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: base, token: opts.Token, http: hc}, nil
}

// CreateTask submits a new task and returns its id.
func (c *Client) CreateTask(ctx context.Context, req jsoncfg.CreateTaskJSON) (jsoncfg.CreatedTaskJSON, error) {
	var out jsoncfg.CreatedTaskJSON
	err := c.do(ctx, http.MethodPost, "/v1/tasks", req, &out)
	return out, err
}

// GetTask reads a task owned by the caller.
func (c *Client) GetTask(ctx context.Context, id string) (*domain.GenerationTask, error) {
	var out jsoncfg.TaskJSON
	if err := c.do(ctx, http.MethodGet, "/v1/tasks/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	t := out.Task()
	return &t, nil
}

// RetryTask resets a failed task and resubmits it.
func (c *Client) RetryTask(ctx context.Context, id string) (*domain.GenerationTask, error) {
	var out jsoncfg.RetryJSON
	if err := c.do(ctx, http.MethodPost, "/v1/tasks/"+url.PathEscape(id)+"/retry", nil, &out); err != nil {
		return nil, err
	}
	t := out.Task.Task()
	return &t, nil
}

// GetBatch reads every sibling of a batch with its summary.
func (c *Client) GetBatch(ctx context.Context, batchID string) (jsoncfg.BatchJSON, error) {
	var out jsoncfg.BatchJSON
	err := c.do(ctx, http.MethodGet, "/v1/batches/"+url.PathEscape(batchID), nil, &out)
	return out, err
}

// GetBatchSummary reads only the summary of a batch.
func (c *Client) GetBatchSummary(ctx context.Context, batchID string) (domain.BatchSummary, error) {
	b, err := c.GetBatch(ctx, batchID)
	if err != nil {
		return domain.BatchSummary{}, err
	}
	return b.Summary, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("client: read response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope jsoncfg.ErrorBodyJSON
		if json.Unmarshal(raw, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

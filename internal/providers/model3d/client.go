// Package model3d talks to a task-based 3D reconstruction vendor. Jobs are
// created with one request and then polled until the vendor reports a result.
package model3d

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

	"github.com/rs/zerolog"

	"ipstudio/internal/infra"
	"ipstudio/internal/poller"
	"ipstudio/internal/providers"
)

const vendorName = "model3d-vendor"

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("model3d: api key is required")

// Vendor-side job states.
const (
	jobQueued    = "queued"
	jobRunning   = "running"
	jobSucceeded = "succeeded"
	jobFailed    = "failed"
)

// Options configures the 3D vendor client.
type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
	// Poll controls how the vendor job is watched after creation.
	Poll poller.Options
}

// Client creates and polls vendor jobs.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
	poller     *poller.Poller
}

type createRequest struct {
	ImageURLs []string `json:"image_urls"`
	Prompt    string   `json:"prompt,omitempty"`
	Reference string   `json:"reference,omitempty"`
}

type jobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Output *struct {
		ModelURL   string `json:"model_url"`
		PreviewURL string `json:"preview_url"`
	} `json:"output"`
	Error string `json:"error"`
}

// NewClient constructs a client with defaults for unset options.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("model3d: base url is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		poller:     poller.New(opts.Poll, *logger),
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// SubmitModelJob creates a vendor job and blocks until it finishes.
func (c *Client) SubmitModelJob(ctx context.Context, job providers.ModelJob) (providers.ModelResult, error) {
	if !c.HasCredentials() {
		return providers.ModelResult{}, &providers.SubmissionError{Vendor: vendorName, Err: ErrMissingAPIKey}
	}
	if len(job.Views) == 0 {
		return providers.ModelResult{}, &providers.SubmissionError{Vendor: vendorName, Err: errors.New("at least one view is required")}
	}

	created, err := c.create(ctx, job)
	if err != nil {
		return providers.ModelResult{}, err
	}
	c.logger.Info().Str("task_id", job.TaskID).Str("vendor_job_id", created.ID).Msg("model3d: job created")

	finished, err := poller.Until(ctx, c.poller, func(ctx context.Context) (jobResponse, bool, string, error) {
		res, err := c.fetch(ctx, created.ID)
		if err != nil {
			return jobResponse{}, false, "", err
		}
		switch res.Status {
		case jobSucceeded, jobFailed:
			return res, true, res.Status, nil
		default:
			return res, false, res.Status, nil
		}
	})
	if err != nil {
		var timeout *poller.TimeoutError
		if errors.As(err, &timeout) {
			return providers.ModelResult{}, &providers.VendorError{Vendor: vendorName, Message: timeout.Error()}
		}
		return providers.ModelResult{}, &providers.SubmissionError{Vendor: vendorName, Err: err}
	}

	if finished.Status == jobFailed {
		msg := strings.TrimSpace(finished.Error)
		if msg == "" {
			msg = "job failed"
		}
		return providers.ModelResult{}, &providers.VendorError{Vendor: vendorName, Message: msg}
	}
	if finished.Output == nil || strings.TrimSpace(finished.Output.ModelURL) == "" {
		return providers.ModelResult{}, &providers.VendorError{Vendor: vendorName, Message: "job succeeded without a model url"}
	}
	return providers.ModelResult{
		ModelURL:        finished.Output.ModelURL,
		PreviewImageURL: finished.Output.PreviewURL,
	}, nil
}

func (c *Client) create(ctx context.Context, job providers.ModelJob) (jobResponse, error) {
	body, err := json.Marshal(createRequest{ImageURLs: job.Views, Prompt: job.Prompt, Reference: job.TaskID})
	if err != nil {
		return jobResponse{}, &providers.SubmissionError{Vendor: vendorName, Err: fmt.Errorf("encode request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tasks", bytes.NewReader(body))
	if err != nil {
		return jobResponse{}, &providers.SubmissionError{Vendor: vendorName, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	res, status, err := c.do(req)
	if err != nil {
		return jobResponse{}, &providers.SubmissionError{Vendor: vendorName, Err: err}
	}
	if status >= 300 {
		return jobResponse{}, &providers.SubmissionError{Vendor: vendorName, Err: fmt.Errorf("create job: status %d: %s", status, res.Error)}
	}
	if strings.TrimSpace(res.ID) == "" {
		return jobResponse{}, &providers.SubmissionError{Vendor: vendorName, Err: errors.New("create job: missing job id")}
	}
	return res, nil
}

func (c *Client) fetch(ctx context.Context, id string) (jobResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tasks/"+url.PathEscape(id), nil)
	if err != nil {
		return jobResponse{}, fmt.Errorf("build request: %w", err)
	}
	res, status, err := c.do(req)
	if err != nil {
		return jobResponse{}, err
	}
	if status >= 300 {
		return jobResponse{}, fmt.Errorf("get job %s: status %d", id, status)
	}
	return res, nil
}

func (c *Client) do(req *http.Request) (jobResponse, int, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return jobResponse{}, 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return jobResponse{}, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	var out jobResponse
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil && resp.StatusCode < 300 {
			return jobResponse{}, resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	if out.Error == "" && resp.StatusCode >= 300 {
		out.Error = strings.TrimSpace(string(raw))
	}
	return out, resp.StatusCode, nil
}

var _ providers.ModelProducer = (*Client)(nil)

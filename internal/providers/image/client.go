package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ipstudio/internal/infra"
	"ipstudio/internal/providers"
	"ipstudio/internal/storage"
)

const vendorName = "image-vendor"

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("image: api key is required")

// Options configures the image vendor client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
	// Store receives results the vendor returns as inline bytes.
	Store *storage.FileStore
	// PublicBaseURL prefixes storage keys to build result URLs.
	PublicBaseURL string
}

// Client calls an image edit/generation endpoint that accepts a prompt and
// an optional source image URL.
type Client struct {
	apiKey        string
	baseURL       string
	model         string
	httpClient    *http.Client
	logger        *infra.Logger
	store         *storage.FileStore
	publicBaseURL string
}

type editRequest struct {
	Model    string `json:"model"`
	Prompt   string `json:"prompt"`
	ImageURL string `json:"image_url,omitempty"`
	N        int    `json:"n"`
	User     string `json:"user,omitempty"`
}

type editResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient constructs a client with defaults for unset options.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("image: base url is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gpt-image-1"
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
		apiKey:        strings.TrimSpace(opts.APIKey),
		baseURL:       baseURL,
		model:         model,
		httpClient:    httpClient,
		logger:        logger,
		store:         opts.Store,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(opts.PublicBaseURL), "/"),
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// SubmitImageJob sends one job and waits for the vendor's answer.
func (c *Client) SubmitImageJob(ctx context.Context, job providers.ImageJob) (providers.ImageResult, error) {
	if !c.HasCredentials() {
		return providers.ImageResult{}, &providers.SubmissionError{Vendor: vendorName, Err: ErrMissingAPIKey}
	}
	prompt := strings.TrimSpace(job.Prompt)
	if prompt == "" {
		return providers.ImageResult{}, &providers.SubmissionError{Vendor: vendorName, Err: errors.New("prompt is required")}
	}
	body, err := json.Marshal(editRequest{
		Model:    c.model,
		Prompt:   prompt,
		ImageURL: strings.TrimSpace(job.SourceImageURL),
		N:        1,
		User:     job.TaskID,
	})
	if err != nil {
		return providers.ImageResult{}, &providers.SubmissionError{Vendor: vendorName, Err: fmt.Errorf("encode request: %w", err)}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/edits", bytes.NewReader(body))
	if err != nil {
		return providers.ImageResult{}, &providers.SubmissionError{Vendor: vendorName, Err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return providers.ImageResult{}, &providers.SubmissionError{Vendor: vendorName, Err: fmt.Errorf("http request: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return providers.ImageResult{}, &providers.SubmissionError{Vendor: vendorName, Err: fmt.Errorf("read response: %w", err)}
	}

	var decoded editResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		// The vendor looked at the job and refused it (content policy, bad source image).
		return providers.ImageResult{}, &providers.VendorError{Vendor: vendorName, Message: vendorMessage(decoded, raw, resp.StatusCode)}
	case resp.StatusCode >= 300:
		return providers.ImageResult{}, &providers.SubmissionError{Vendor: vendorName, Err: errors.New(vendorMessage(decoded, raw, resp.StatusCode))}
	}
	if decodeErr != nil {
		return providers.ImageResult{}, &providers.VendorError{Vendor: vendorName, Message: "decode response: " + decodeErr.Error()}
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return providers.ImageResult{}, &providers.VendorError{Vendor: vendorName, Message: decoded.Error.Message}
	}
	if len(decoded.Data) == 0 {
		return providers.ImageResult{}, &providers.VendorError{Vendor: vendorName, Message: "empty result"}
	}

	first := decoded.Data[0]
	if url := strings.TrimSpace(first.URL); url != "" {
		c.logger.Debug().Str("task_id", job.TaskID).Str("url", url).Msg("image: vendor returned url")
		return providers.ImageResult{ResultImageURL: url}, nil
	}
	if first.B64JSON == "" {
		return providers.ImageResult{}, &providers.VendorError{Vendor: vendorName, Message: "result has neither url nor data"}
	}
	data, err := base64.StdEncoding.DecodeString(first.B64JSON)
	if err != nil {
		return providers.ImageResult{}, &providers.VendorError{Vendor: vendorName, Message: "decode image data: " + err.Error()}
	}
	url, err := c.persist(ctx, job, data)
	if err != nil {
		return providers.ImageResult{}, err
	}
	return providers.ImageResult{ResultImageURL: url}, nil
}

func (c *Client) persist(ctx context.Context, job providers.ImageJob, data []byte) (string, error) {
	if c.store == nil {
		return "", &providers.VendorError{Vendor: vendorName, Message: "inline image returned but no storage is configured"}
	}
	key := fmt.Sprintf("generated/%s/%s.png", job.TaskType, job.TaskID)
	saved, err := c.store.Write(ctx, key, data)
	if err != nil {
		return "", fmt.Errorf("image: persist result: %w", err)
	}
	c.logger.Debug().Str("task_id", job.TaskID).Str("storage_key", saved).Int("bytes", len(data)).Msg("image: stored inline result")
	if c.publicBaseURL == "" {
		return saved, nil
	}
	return c.publicBaseURL + "/" + saved, nil
}

func vendorMessage(decoded editResponse, raw []byte, status int) string {
	if decoded.Error != nil && decoded.Error.Message != "" {
		if decoded.Error.Code != "" {
			return fmt.Sprintf("%s (%s)", decoded.Error.Message, decoded.Error.Code)
		}
		return decoded.Error.Message
	}
	return fmt.Sprintf("status %d: %s", status, strings.TrimSpace(string(raw)))
}

var _ providers.ImageProducer = (*Client)(nil)

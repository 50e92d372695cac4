package image

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ipstudio/internal/providers"
)

// Synthetic fulfils image jobs with deterministic placeholder URLs. It keeps
// the pipeline usable when no vendor key is configured.
type Synthetic struct {
	BaseURL string
	Delay   time.Duration
}

// NewSynthetic returns a synthetic producer rooted at baseURL.
func NewSynthetic(baseURL string, delay time.Duration) *Synthetic {
	return &Synthetic{BaseURL: strings.TrimRight(baseURL, "/"), Delay: delay}
}

func (s *Synthetic) SubmitImageJob(ctx context.Context, job providers.ImageJob) (providers.ImageResult, error) {
	select {
	case <-time.After(s.Delay):
	case <-ctx.Done():
		return providers.ImageResult{}, &providers.SubmissionError{Vendor: "synthetic", Err: ctx.Err()}
	}
	base := s.BaseURL
	if base == "" {
		base = "https://cdn.example.com/synthetic"
	}
	return providers.ImageResult{
		ResultImageURL: fmt.Sprintf("%s/%s/%s.png", base, job.TaskType, job.TaskID),
	}, nil
}

var _ providers.ImageProducer = (*Synthetic)(nil)

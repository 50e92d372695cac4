package model3d

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ipstudio/internal/providers"
)

// Synthetic fulfils model jobs with placeholder URLs when no vendor is
// configured.
type Synthetic struct {
	BaseURL string
	Delay   time.Duration
}

// NewSynthetic returns a synthetic producer rooted at baseURL.
func NewSynthetic(baseURL string, delay time.Duration) *Synthetic {
	return &Synthetic{BaseURL: strings.TrimRight(baseURL, "/"), Delay: delay}
}

func (s *Synthetic) SubmitModelJob(ctx context.Context, job providers.ModelJob) (providers.ModelResult, error) {
	if len(job.Views) == 0 {
		return providers.ModelResult{}, &providers.SubmissionError{Vendor: "synthetic", Err: fmt.Errorf("no views for %s", job.TaskID)}
	}
	select {
	case <-time.After(s.Delay):
	case <-ctx.Done():
		return providers.ModelResult{}, &providers.SubmissionError{Vendor: "synthetic", Err: ctx.Err()}
	}
	base := s.BaseURL
	if base == "" {
		base = "https://cdn.example.com/synthetic"
	}
	return providers.ModelResult{
		ModelURL:        fmt.Sprintf("%s/3d_model/%s.glb", base, job.TaskID),
		PreviewImageURL: job.Views[0],
	}, nil
}

var _ providers.ModelProducer = (*Synthetic)(nil)

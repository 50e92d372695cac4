// Package providers defines the Artifact Producer contracts the orchestrator
// submits work to. Vendor adapters live in the image and model3d subpackages.
package providers

import (
	"context"
	"errors"
	"fmt"

	"ipstudio/internal/domain"
)

// ImageJob asks an image vendor to generate or edit one image.
type ImageJob struct {
	TaskID         string
	TaskType       domain.TaskType
	Prompt         string
	SourceImageURL string
}

// ImageResult is a finished image job.
type ImageResult struct {
	ResultImageURL string
}

// ImageProducer runs image jobs. The call blocks until the vendor answers;
// the orchestrator invokes it off the request path.
type ImageProducer interface {
	SubmitImageJob(ctx context.Context, job ImageJob) (ImageResult, error)
}

// ModelJob asks a 3D vendor to build a model from rendered views.
type ModelJob struct {
	TaskID string
	Views  []string
	Prompt string
}

// ModelResult is a finished model job.
type ModelResult struct {
	ModelURL        string
	PreviewImageURL string
}

// ModelProducer runs 3D model jobs.
type ModelProducer interface {
	SubmitModelJob(ctx context.Context, job ModelJob) (ModelResult, error)
}

// SubmissionError means the vendor rejected the job or could not be reached
// before accepting it.
type SubmissionError struct {
	Vendor string
	Err    error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s: submission failed: %v", e.Vendor, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// VendorError means the vendor accepted the job and then reported failure.
type VendorError struct {
	Vendor  string
	Message string
}

func (e *VendorError) Error() string {
	return fmt.Sprintf("%s: generation failed: %s", e.Vendor, e.Message)
}

func (e *VendorError) Unwrap() error { return domain.ErrProviderFailure }

// IsVendorFailure reports whether err came from a vendor-side failure rather
// than a submission problem.
func IsVendorFailure(err error) bool {
	var v *VendorError
	return errors.As(err, &v)
}

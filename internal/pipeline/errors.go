package pipeline

import (
	"context"
	"errors"

	"github.com/fpang/create-post-pipeline/internal/adjust"
	"github.com/fpang/create-post-pipeline/internal/contract"
	"github.com/fpang/create-post-pipeline/internal/post"
	"github.com/fpang/create-post-pipeline/internal/selection"
)

// Reasons for errors returned by Run before publishing.
const (
	ReasonProcessingFailed  = "processing-failed"
	ReasonContractViolation = "contract-violation"
	ReasonCaptionTooLong    = "caption-too-long"
	ReasonCancelled         = "cancelled"
	ReasonInternal          = "internal-error"
)

// Classify maps an error from Run to a reason and whether running the same
// request again can succeed. Only render failures are retryable; a
// contract violation resets the flow and validation errors need new input.
func Classify(err error) (reason string, retryable bool) {
	if err == nil {
		return "", false
	}
	if code := selection.CodeOf(err); code != "" {
		return string(code), false
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCancelled, false
	case adjust.IsProcessingError(err):
		return ReasonProcessingFailed, true
	case errors.Is(err, contract.ErrContractViolation):
		return ReasonContractViolation, false
	case errors.Is(err, post.ErrCaptionTooLong):
		return ReasonCaptionTooLong, false
	default:
		return ReasonInternal, false
	}
}

var reasonMessages = map[string]string{
	ReasonProcessingFailed:  "could not render the photo",
	ReasonContractViolation: "the create flow was reset, start again",
	ReasonCaptionTooLong:    "caption is too long",
	ReasonCancelled:         "request was cancelled",
	ReasonInternal:          "something went wrong",
}

// FailureMessage is the caller-facing text for an error from Run.
// Selection errors keep their own message.
func FailureMessage(err error) string {
	var selErr *selection.Error
	if errors.As(err, &selErr) {
		return selErr.Message
	}
	reason, _ := Classify(err)
	return reasonMessages[reason]
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpang/create-post-pipeline/internal/adjust"
	"github.com/fpang/create-post-pipeline/internal/contract"
	"github.com/fpang/create-post-pipeline/internal/post"
	"github.com/fpang/create-post-pipeline/internal/selection"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		reason    string
		retryable bool
	}{
		{"nil", nil, "", false},
		{"selection", &selection.Error{Code: selection.CodeInvalidMedia, Message: "File too large"}, "invalid-media", false},
		{"processing", &adjust.ProcessingError{SessionID: "s", Err: errors.New("encode")}, ReasonProcessingFailed, true},
		{"contract", &contract.ViolationError{Contract: "PostPayload", Reason: "location id is empty"}, ReasonContractViolation, false},
		{"caption", fmt.Errorf("%w: 2201 characters", post.ErrCaptionTooLong), ReasonCaptionTooLong, false},
		{"cancelled", context.Canceled, ReasonCancelled, false},
		{"cancelled render", &adjust.ProcessingError{SessionID: "s", Err: context.Canceled}, ReasonCancelled, false},
		{"deadline", fmt.Errorf("render: %w", context.DeadlineExceeded), ReasonCancelled, false},
		{"unknown", errors.New("disk full"), ReasonInternal, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, retryable := Classify(tt.err)
			assert.Equal(t, tt.reason, reason)
			assert.Equal(t, tt.retryable, retryable)
		})
	}
}

func TestClassifyRunErrors(t *testing.T) {
	fx := newFixture(t, 1200, 1200)
	p := fx.pipeline(fx.docs)

	long := fx.request()
	long.Details.Caption = strings.Repeat("a", contract.MaxCaptionLength+1)
	_, err := p.Run(context.Background(), long)
	require.Error(t, err)
	reason, retryable := Classify(err)
	assert.Equal(t, ReasonCaptionTooLong, reason)
	assert.False(t, retryable)

	noID := fx.request()
	noID.Details.Location = &contract.Location{Name: "Porto"}
	_, err = p.Run(context.Background(), noID)
	reason, retryable = Classify(err)
	assert.Equal(t, ReasonContractViolation, reason)
	assert.False(t, retryable)
}

func TestFailureMessage(t *testing.T) {
	assert.Equal(t, "File too large", FailureMessage(&selection.Error{Code: selection.CodeInvalidMedia, Message: "File too large", Err: errors.New("/tmp/x: 25000000 bytes")}))
	assert.Equal(t, "caption is too long", FailureMessage(fmt.Errorf("%w: 2201 characters", post.ErrCaptionTooLong)))
	assert.NotContains(t, FailureMessage(errors.New("open /var/secret: permission denied")), "secret")
}

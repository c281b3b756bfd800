package publish

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Status is the terminal result of a publish attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Reason classifies a failure.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonInvalidPayload  Reason = "invalid-payload"
	ReasonCaptionTooLong  Reason = "caption-too-long"
	ReasonUploadFailed    Reason = "upload-failed"
	ReasonRecordFailed    Reason = "record-failed"
	ReasonCancelled       Reason = "cancelled"
)

// Outcome is the only thing callers see of a publish attempt. It is either
// a success carrying the post id and media URL, or a failure with a reason.
type Outcome struct {
	Status    Status `json:"status"`
	PostID    string `json:"postId,omitempty"`
	MediaURL  string `json:"mediaUrl,omitempty"`
	Reason    Reason `json:"reason,omitempty"`
	Message   string `json:"message,omitempty"`
	Retryable bool   `json:"retryable"`
}

// Succeeded reports whether the post is live.
func (o Outcome) Succeeded() bool { return o.Status == StatusSuccess }

func (o Outcome) String() string {
	if o.Succeeded() {
		return fmt.Sprintf("success post=%s", o.PostID)
	}
	return fmt.Sprintf("failure reason=%s retryable=%t: %s", o.Reason, o.Retryable, o.Message)
}

func success(postID, url string) Outcome {
	return Outcome{Status: StatusSuccess, PostID: postID, MediaURL: url}
}

var reasonMessages = map[Reason]string{
	ReasonUnauthenticated: "sign in to publish",
	ReasonInvalidPayload:  "the post is incomplete",
	ReasonCaptionTooLong:  "caption is too long",
	ReasonUploadFailed:    "could not upload the photo",
	ReasonRecordFailed:    "could not save the post",
	ReasonCancelled:       "publish was cancelled",
}

// Message returns the caller-facing text for a failure reason.
func (r Reason) Message() string {
	return reasonMessages[r]
}

// failure builds a failed Outcome. The cause is logged and never reaches
// the caller; Message depends only on the reason.
func failure(reason Reason, retryable bool, err error) Outcome {
	if err != nil {
		log.Warn().Err(err).Str("reason", string(reason)).Bool("retryable", retryable).Msg("Publish attempt failed")
	}
	return Outcome{Status: StatusFailure, Reason: reason, Message: reason.Message(), Retryable: retryable}
}

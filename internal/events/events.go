// Package events announces published posts on an EventBridge bus.
// Notification is best effort: the publish outcome never depends on it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"
)

const (
	// Source is the EventBridge source of every event.
	Source = "create-post-pipeline"
	// DetailTypePostCreated is the detail-type of PostCreated events.
	DetailTypePostCreated = "PostCreated"
)

// PostCreated is emitted after a post record is live.
type PostCreated struct {
	PostID      string    `json:"postId"`
	AuthorID    string    `json:"authorId"`
	SessionID   string    `json:"sessionId"`
	MediaURL    string    `json:"mediaUrl"`
	AspectRatio float64   `json:"aspectRatio"`
	Hashtags    []string  `json:"hashtags"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Notifier receives post-created events.
type Notifier interface {
	PostCreated(ctx context.Context, event PostCreated) error
}

// PutEventsAPI is the subset of *eventbridge.Client used by EventBridgeNotifier.
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridgeNotifier puts events on a bus. An empty bus name means the
// account's default bus.
type EventBridgeNotifier struct {
	client  PutEventsAPI
	busName string
}

// NewEventBridgeNotifier creates a notifier for busName.
func NewEventBridgeNotifier(client PutEventsAPI, busName string) *EventBridgeNotifier {
	return &EventBridgeNotifier{client: client, busName: busName}
}

func (n *EventBridgeNotifier) PostCreated(ctx context.Context, event PostCreated) error {
	detail, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal PostCreated: %w", err)
	}

	entry := eventbridgetypes.PutEventsRequestEntry{
		Source:     aws.String(Source),
		DetailType: aws.String(DetailTypePostCreated),
		Detail:     aws.String(string(detail)),
		Time:       aws.Time(event.CreatedAt),
	}
	if n.busName != "" {
		entry.EventBusName = aws.String(n.busName)
	}

	result, err := n.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{entry},
	})
	if err != nil {
		return fmt.Errorf("PutEvents: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, e := range result.Entries {
			if e.ErrorCode != nil || e.ErrorMessage != nil {
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", i, aws.ToString(e.ErrorCode), aws.ToString(e.ErrorMessage))
			}
		}
		return fmt.Errorf("PutEvents: %d entries failed", result.FailedEntryCount)
	}

	log.Debug().Str("postId", event.PostID).Str("sessionId", event.SessionID).Msg("PostCreated emitted to EventBridge")
	return nil
}

// LogNotifier writes events to the log only. It stands in for a bus when
// none is configured.
type LogNotifier struct{}

func (LogNotifier) PostCreated(ctx context.Context, event PostCreated) error {
	log.Info().
		Str("postId", event.PostID).
		Str("authorId", event.AuthorID).
		Str("mediaUrl", event.MediaURL).
		Msg("Post created")
	return nil
}

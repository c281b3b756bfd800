package publish

import (
	"time"

	"github.com/fpang/create-post-pipeline/internal/contract"
)

// StatusLive is the status of every record the saga creates.
const StatusLive = "live"

// PostRecord is the document written to the posts collection.
type PostRecord struct {
	ID          string                `json:"id" dynamodbav:"id"`
	AuthorID    string                `json:"authorId" dynamodbav:"authorId"`
	MediaURL    string                `json:"mediaUrl" dynamodbav:"mediaUrl"`
	MediaPath   string                `json:"mediaPath" dynamodbav:"mediaPath"`
	Width       int                   `json:"width" dynamodbav:"width"`
	Height      int                   `json:"height" dynamodbav:"height"`
	AspectRatio float64               `json:"aspectRatio" dynamodbav:"aspectRatio"`
	Caption     string                `json:"caption" dynamodbav:"caption"`
	Hashtags    []string              `json:"hashtags" dynamodbav:"hashtags"`
	Tags        []string              `json:"tags" dynamodbav:"tags"`
	Location    *contract.Location    `json:"location,omitempty" dynamodbav:"location,omitempty"`
	Status      string                `json:"status" dynamodbav:"status"`
	CreatedAt   time.Time             `json:"createdAt" dynamodbav:"createdAt"`
	SessionID   string                `json:"sessionId" dynamodbav:"sessionId"`
	Crop        contract.CropMetadata `json:"crop" dynamodbav:"crop"`
}

// DocumentID keys the record by its post id.
func (r PostRecord) DocumentID() string { return r.ID }

func newRecord(id, authorID, url, objectPath string, p *contract.PostPayload, now time.Time) PostRecord {
	return PostRecord{
		ID:          id,
		AuthorID:    authorID,
		MediaURL:    url,
		MediaPath:   objectPath,
		Width:       p.Width,
		Height:      p.Height,
		AspectRatio: p.AspectRatio,
		Caption:     p.Caption,
		Hashtags:    append([]string{}, p.Hashtags...),
		Tags:        append([]string{}, p.Tags...),
		Location:    p.Location,
		Status:      StatusLive,
		CreatedAt:   now.UTC(),
		SessionID:   p.SessionID,
		Crop:        p.Crop,
	}
}

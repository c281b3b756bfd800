// Package contract defines the immutable payloads handed from one phase of
// the create-post pipeline to the next, and the fail-fast assertions that
// guard each phase boundary.
//
// Contracts are plain values. A phase builds one, passes it on, and never
// touches it again; the receiving phase treats it as read-only. Nothing in
// this package performs I/O.
package contract

import (
	"fmt"
	"time"
)

// MaxCaptionLength is the caption bound in characters (runes).
const MaxCaptionLength = 2200

// Source identifies where a picked asset came from.
type Source string

const (
	SourceLibrary Source = "library"
	SourceCamera  Source = "camera"
)

// AspectRatio is one of the supported post frame ratios.
type AspectRatio string

const (
	Ratio1x1  AspectRatio = "1:1"
	Ratio4x5  AspectRatio = "4:5"
	Ratio16x9 AspectRatio = "16:9"
)

// AspectRatios lists the supported ratios in display order.
var AspectRatios = []AspectRatio{Ratio1x1, Ratio4x5, Ratio16x9}

// Dimensions returns the width and height terms of the ratio.
func (r AspectRatio) Dimensions() (w, h int) {
	switch r {
	case Ratio4x5:
		return 4, 5
	case Ratio16x9:
		return 16, 9
	default:
		return 1, 1
	}
}

// Value returns width/height as a float, e.g. 0.8 for 4:5.
func (r AspectRatio) Value() float64 {
	w, h := r.Dimensions()
	return float64(w) / float64(h)
}

// Valid reports whether r is one of the supported ratios.
func (r AspectRatio) Valid() bool {
	for _, known := range AspectRatios {
		if r == known {
			return true
		}
	}
	return false
}

// ParseAspectRatio parses "1:1", "4:5" or "16:9".
func ParseAspectRatio(s string) (AspectRatio, error) {
	r := AspectRatio(s)
	if !r.Valid() {
		return "", fmt.Errorf("unsupported aspect ratio %q: must be one of 1:1, 4:5, 16:9", s)
	}
	return r, nil
}

// GPS is a coordinate pair in decimal degrees.
type GPS struct {
	Latitude  float64 `json:"latitude" dynamodbav:"latitude"`
	Longitude float64 `json:"longitude" dynamodbav:"longitude"`
}

// MediaPickResult is the output of the media selection phase.
type MediaPickResult struct {
	OriginalURI string    `json:"originalUri"`
	Source      Source    `json:"source"`
	MIMEType    string    `json:"mimeType"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	FileSize    int64     `json:"fileSize"`
	Timestamp   time.Time `json:"timestamp"`

	// Optional EXIF data; zero when the file carries none.
	TakenAt time.Time `json:"takenAt,omitempty"`
	GPS     *GPS      `json:"gps,omitempty"`
	Camera  string    `json:"camera,omitempty"`
}

// CropMetadata records the user's framing intent. It is audit data only:
// pixels are never re-derived from it.
type CropMetadata struct {
	Zoom        float64     `json:"zoom" dynamodbav:"zoom"`
	OffsetX     float64     `json:"offsetX" dynamodbav:"offsetX"`
	OffsetY     float64     `json:"offsetY" dynamodbav:"offsetY"`
	AspectRatio AspectRatio `json:"aspectRatio" dynamodbav:"aspectRatio"`
	CropWidth   float64     `json:"cropWidth" dynamodbav:"cropWidth"`
	CropHeight  float64     `json:"cropHeight" dynamodbav:"cropHeight"`
}

// Rect is a rectangle in source-image pixel space.
type Rect struct {
	X      float64 `json:"x" dynamodbav:"x"`
	Y      float64 `json:"y" dynamodbav:"y"`
	Width  float64 `json:"width" dynamodbav:"width"`
	Height float64 `json:"height" dynamodbav:"height"`
}

// AdjustResult is the output of the adjustment phase.
type AdjustResult struct {
	SessionID      string          `json:"sessionId"`
	Original       MediaPickResult `json:"original"`
	FinalBitmapURI string          `json:"finalBitmapUri"`
	Crop           CropMetadata    `json:"crop"`
	CropRect       Rect            `json:"cropRect"`
	OutputWidth    int             `json:"outputWidth"`
	OutputHeight   int             `json:"outputHeight"`
}

// Location is a tagged place attached to a post.
type Location struct {
	ID     string `json:"id" dynamodbav:"id"`
	Name   string `json:"name" dynamodbav:"name"`
	Coords *GPS   `json:"coords,omitempty" dynamodbav:"coords,omitempty"`
}

// PostPayload is the input of the publish phase.
type PostPayload struct {
	SessionID   string       `json:"sessionId"`
	MediaURI    string       `json:"mediaUri"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	AspectRatio float64      `json:"aspectRatio"`
	Caption     string       `json:"caption"`
	Location    *Location    `json:"location,omitempty"`
	Tags        []string     `json:"tags"`
	Hashtags    []string     `json:"hashtags"`
	Crop        CropMetadata `json:"crop"`
}

// Package post builds the publish payload from a finished adjustment and
// the details the user typed: caption, location, people tags, hashtags.
package post

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/fpang/create-post-pipeline/internal/contract"
)

// ErrCaptionTooLong is returned when a caption exceeds contract.MaxCaptionLength.
var ErrCaptionTooLong = errors.New("caption too long")

// Details are the user-entered fields of the details screen.
type Details struct {
	Caption     string
	Location    *contract.Location
	Tags        []string
	HashtagText string
}

// ValidateCaption enforces the caption bound in characters.
func ValidateCaption(caption string) error {
	if n := utf8.RuneCountInString(caption); n > contract.MaxCaptionLength {
		return fmt.Errorf("%w: %d characters, limit is %d", ErrCaptionTooLong, n, contract.MaxCaptionLength)
	}
	return nil
}

// BuildPayload assembles the PostPayload. The adjust result must be valid
// and its bitmap must still be on disk.
func BuildPayload(adj *contract.AdjustResult, d Details) (*contract.PostPayload, error) {
	if err := contract.AssertAdjustResult(adj); err != nil {
		return nil, err
	}
	if _, err := os.Stat(adj.FinalBitmapURI); err != nil {
		return nil, &contract.ViolationError{
			Contract: "AdjustResult",
			Reason:   fmt.Sprintf("final bitmap unavailable: %v", err),
		}
	}

	caption := strings.TrimSpace(d.Caption)
	if err := ValidateCaption(caption); err != nil {
		return nil, err
	}

	var location *contract.Location
	if d.Location != nil {
		loc := *d.Location
		if loc.Coords != nil {
			coords := *loc.Coords
			loc.Coords = &coords
		}
		location = &loc
	}

	width, height := adj.OutputWidth, adj.OutputHeight
	if width == 0 || height == 0 {
		width, height = adj.Original.Width, adj.Original.Height
	}

	payload := &contract.PostPayload{
		SessionID:   adj.SessionID,
		MediaURI:    adj.FinalBitmapURI,
		Width:       width,
		Height:      height,
		AspectRatio: adj.Crop.AspectRatio.Value(),
		Caption:     caption,
		Location:    location,
		Tags:        normalizeTags(d.Tags),
		Hashtags:    ParseHashtags(d.HashtagText),
		Crop:        adj.Crop,
	}

	if err := contract.AssertPostPayload(payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "@"))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

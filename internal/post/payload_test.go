package post

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpang/create-post-pipeline/internal/contract"
)

func adjustResult(t *testing.T) *contract.AdjustResult {
	t.Helper()
	path := filepath.Join(t.TempDir(), "final.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0o644))
	return &contract.AdjustResult{
		SessionID:      "0190f3a2-7c1e-7b4a-9d2e-3f4a5b6c7d8e",
		Original:       contract.MediaPickResult{OriginalURI: "/photos/a.jpg", Width: 4000, Height: 3000},
		FinalBitmapURI: path,
		Crop:           contract.CropMetadata{Zoom: 1.2, AspectRatio: contract.Ratio4x5, CropWidth: 2400, CropHeight: 3000},
		OutputWidth:    1080,
		OutputHeight:   1350,
	}
}

func TestBuildPayload(t *testing.T) {
	adj := adjustResult(t)
	loc := &contract.Location{ID: "loc-1", Name: "Lisbon", Coords: &contract.GPS{Latitude: 38.7, Longitude: -9.1}}
	tags := []string{"@ana", "ana", " bo ", ""}

	p, err := BuildPayload(adj, Details{
		Caption:     "  sunset over the river  ",
		Location:    loc,
		Tags:        tags,
		HashtagText: "#Sunset #river #sunset",
	})
	require.NoError(t, err)

	assert.Equal(t, adj.SessionID, p.SessionID)
	assert.Equal(t, adj.FinalBitmapURI, p.MediaURI)
	assert.Equal(t, 1080, p.Width)
	assert.Equal(t, 1350, p.Height)
	assert.InDelta(t, 0.8, p.AspectRatio, 1e-9)
	assert.Equal(t, "sunset over the river", p.Caption)
	assert.Equal(t, []string{"ana", "bo"}, p.Tags)
	assert.Equal(t, []string{"sunset", "river"}, p.Hashtags)
	assert.Equal(t, adj.Crop, p.Crop)

	// The payload owns its copies.
	loc.Name = "changed"
	loc.Coords.Latitude = 0
	assert.Equal(t, "Lisbon", p.Location.Name)
	assert.Equal(t, 38.7, p.Location.Coords.Latitude)
}

func TestBuildPayloadCaptionBoundary(t *testing.T) {
	adj := adjustResult(t)

	_, err := BuildPayload(adj, Details{Caption: strings.Repeat("x", contract.MaxCaptionLength)})
	assert.NoError(t, err)

	_, err = BuildPayload(adj, Details{Caption: strings.Repeat("x", contract.MaxCaptionLength+1)})
	assert.ErrorIs(t, err, ErrCaptionTooLong)

	// Characters, not bytes.
	_, err = BuildPayload(adj, Details{Caption: strings.Repeat("é", contract.MaxCaptionLength)})
	assert.NoError(t, err)
}

func TestBuildPayloadRejectsBadInput(t *testing.T) {
	t.Run("nil adjust result", func(t *testing.T) {
		_, err := BuildPayload(nil, Details{})
		assert.ErrorIs(t, err, contract.ErrContractViolation)
	})

	t.Run("missing bitmap", func(t *testing.T) {
		adj := adjustResult(t)
		require.NoError(t, os.Remove(adj.FinalBitmapURI))
		_, err := BuildPayload(adj, Details{})
		assert.ErrorIs(t, err, contract.ErrContractViolation)
	})

	t.Run("location without id", func(t *testing.T) {
		_, err := BuildPayload(adjustResult(t), Details{Location: &contract.Location{Name: "Nowhere"}})
		assert.ErrorIs(t, err, contract.ErrContractViolation)
	})
}

func TestValidateCaption(t *testing.T) {
	assert.NoError(t, ValidateCaption(""))
	err := ValidateCaption(strings.Repeat("a", 3000))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCaptionTooLong))
	assert.Contains(t, err.Error(), "3000")
}

package contract

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssertMediaPick(t *testing.T) {
	tests := []struct {
		name    string
		pick    *MediaPickResult
		wantErr bool
	}{
		{"nil", nil, true},
		{"missing uri", &MediaPickResult{Width: 10, Height: 10}, true},
		{"zero width", &MediaPickResult{OriginalURI: "/a.jpg", Height: 10}, true},
		{"zero height", &MediaPickResult{OriginalURI: "/a.jpg", Width: 10}, true},
		{"ok", &MediaPickResult{OriginalURI: "/a.jpg", Width: 1, Height: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AssertMediaPick(tt.pick)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrContractViolation)
			var ve *ViolationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, "MediaPickResult", ve.Contract)
		})
	}
}

func TestAssertAdjustResult(t *testing.T) {
	assert.ErrorIs(t, AssertAdjustResult(nil), ErrContractViolation)
	assert.ErrorIs(t, AssertAdjustResult(&AdjustResult{SessionID: "s"}), ErrContractViolation)
	assert.ErrorIs(t, AssertAdjustResult(&AdjustResult{FinalBitmapURI: "/f.jpg"}), ErrContractViolation)
	assert.NoError(t, AssertAdjustResult(&AdjustResult{SessionID: "s", FinalBitmapURI: "/f.jpg"}))
}

func TestAssertPostPayload(t *testing.T) {
	assert.ErrorIs(t, AssertPostPayload(nil), ErrContractViolation)

	exact := &PostPayload{Caption: strings.Repeat("a", MaxCaptionLength)}
	assert.NoError(t, AssertPostPayload(exact))

	over := &PostPayload{Caption: strings.Repeat("a", MaxCaptionLength+1)}
	assert.ErrorIs(t, AssertPostPayload(over), ErrContractViolation)

	// The bound counts characters, not bytes.
	multibyte := &PostPayload{Caption: strings.Repeat("é", MaxCaptionLength)}
	assert.NoError(t, AssertPostPayload(multibyte))

	noID := &PostPayload{Location: &Location{Name: "Lisbon"}}
	assert.ErrorIs(t, AssertPostPayload(noID), ErrContractViolation)

	withID := &PostPayload{Location: &Location{ID: "loc-1", Name: "Lisbon"}}
	assert.NoError(t, AssertPostPayload(withID))
}

func TestViolationIsDistinctFromOtherErrors(t *testing.T) {
	assert.False(t, errors.Is(errors.New("io failure"), ErrContractViolation))
	assert.Contains(t, AssertMediaPick(nil).Error(), "contract violation")
}

func TestAspectRatio(t *testing.T) {
	for _, r := range AspectRatios {
		parsed, err := ParseAspectRatio(string(r))
		require.NoError(t, err)
		assert.Equal(t, r, parsed)
	}
	_, err := ParseAspectRatio("3:2")
	assert.Error(t, err)

	assert.InDelta(t, 0.8, Ratio4x5.Value(), 1e-9)
	assert.InDelta(t, 16.0/9.0, Ratio16x9.Value(), 1e-9)
	assert.Equal(t, 1.0, Ratio1x1.Value())
}

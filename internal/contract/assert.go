package contract

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrContractViolation is matched by every *ViolationError via errors.Is.
// It signals an impossible navigation state, not bad user input.
var ErrContractViolation = errors.New("contract violation")

// ViolationError describes which contract failed and why.
type ViolationError struct {
	Contract string
	Reason   string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("contract violation: %s: %s", e.Contract, e.Reason)
}

// Is makes errors.Is(err, ErrContractViolation) true for any ViolationError.
func (e *ViolationError) Is(target error) bool {
	return target == ErrContractViolation
}

func violation(contract, reason string) error {
	return &ViolationError{Contract: contract, Reason: reason}
}

// AssertMediaPick guards the selection → adjustment boundary.
// Decodability is not checked here; the selection phase already did that.
func AssertMediaPick(p *MediaPickResult) error {
	if p == nil {
		return violation("MediaPickResult", "missing")
	}
	if p.OriginalURI == "" {
		return violation("MediaPickResult", "originalUri is empty")
	}
	if p.Width < 1 || p.Height < 1 {
		return violation("MediaPickResult", fmt.Sprintf("invalid dimensions %dx%d", p.Width, p.Height))
	}
	return nil
}

// AssertAdjustResult guards the adjustment → publish boundary.
func AssertAdjustResult(r *AdjustResult) error {
	if r == nil {
		return violation("AdjustResult", "missing")
	}
	if r.FinalBitmapURI == "" {
		return violation("AdjustResult", "finalBitmapUri is empty")
	}
	if r.SessionID == "" {
		return violation("AdjustResult", "sessionId is empty")
	}
	return nil
}

// AssertPostPayload guards entry into the publish transaction.
func AssertPostPayload(p *PostPayload) error {
	if p == nil {
		return violation("PostPayload", "missing")
	}
	if n := utf8.RuneCountInString(p.Caption); n > MaxCaptionLength {
		return violation("PostPayload", fmt.Sprintf("caption is %d characters, limit is %d", n, MaxCaptionLength))
	}
	if p.Location != nil && p.Location.ID == "" {
		return violation("PostPayload", "location id is empty")
	}
	return nil
}

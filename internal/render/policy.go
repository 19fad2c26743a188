package render

import (
	"fmt"
	"strings"

	"floorplan-render-backend/internal/vision"
)

// Fallback decides what an exhausted isometric render returns.
type Fallback int

const (
	// FallbackLenient returns the deterministic projection.
	FallbackLenient Fallback = iota
	// FallbackStrict fails the render with a LayoutMismatchError.
	FallbackStrict
)

func (f Fallback) String() string {
	if f == FallbackStrict {
		return "strict"
	}
	return "lenient"
}

// Policy controls the isometric attempt loop.
type Policy struct {
	Name                  string
	MaxAttempts           int
	Threshold             int
	RequireRoomCountMatch bool
	Composite             bool
	Fallback              Fallback
}

// RoomThreshold is the minimum score a room render needs. Room renders get a
// single attempt regardless of policy.
const RoomThreshold = 60

var (
	// AlwaysImage always produces an image: a generated one when it scores
	// well enough, otherwise the projection.
	AlwaysImage = Policy{
		Name:                  "always_image",
		MaxAttempts:           4,
		Threshold:             90,
		RequireRoomCountMatch: true,
		Composite:             true,
		Fallback:              FallbackLenient,
	}

	// FailFast gives up quickly and reports a layout mismatch.
	FailFast = Policy{
		Name:        "fail_fast",
		MaxAttempts: 2,
		Threshold:   70,
		Fallback:    FallbackStrict,
	}
)

// PolicyByName returns a preset. maxAttempts > 0 overrides the preset's
// attempt budget.
func PolicyByName(name string, maxAttempts int) (Policy, error) {
	var p Policy
	switch strings.ToLower(name) {
	case "", AlwaysImage.Name:
		p = AlwaysImage
	case FailFast.Name:
		p = FailFast
	default:
		return Policy{}, fmt.Errorf("unknown render policy %q", name)
	}
	if maxAttempts > 0 {
		p.MaxAttempts = maxAttempts
	}
	return p, nil
}

// Accepts reports whether a verdict ends the attempt loop.
func (p Policy) Accepts(v vision.Verdict) bool {
	if !v.IsFaithful || v.Score < p.Threshold {
		return false
	}
	return !p.RequireRoomCountMatch || v.RoomCountsMatch()
}

package render_test

import (
	"testing"

	"floorplan-render-backend/internal/render"
	"floorplan-render-backend/internal/vision"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyByName(t *testing.T) {
	p, err := render.PolicyByName("", 0)
	require.NoError(t, err)
	assert.Equal(t, render.AlwaysImage, p)

	p, err = render.PolicyByName("FAIL_FAST", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 70, p.Threshold)
	assert.Equal(t, render.FallbackStrict, p.Fallback)

	_, err = render.PolicyByName("best_effort", 0)
	assert.Error(t, err)
}

func TestPolicy_Accepts(t *testing.T) {
	tests := []struct {
		name    string
		policy  render.Policy
		verdict vision.Verdict
		want    bool
	}{
		{"at threshold", render.AlwaysImage, vision.Verdict{IsFaithful: true, Score: 90}, true},
		{"below threshold", render.AlwaysImage, vision.Verdict{IsFaithful: true, Score: 89}, false},
		{"not faithful", render.AlwaysImage, vision.Verdict{IsFaithful: false, Score: 100}, false},
		{"room mismatch", render.AlwaysImage, vision.Verdict{IsFaithful: true, Score: 95, SourceRooms: 3, GeneratedRooms: 4}, false},
		{"room mismatch ignored", render.FailFast, vision.Verdict{IsFaithful: true, Score: 70, SourceRooms: 3, GeneratedRooms: 4}, true},
		{"fail fast below", render.FailFast, vision.Verdict{IsFaithful: true, Score: 69}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Accepts(tt.verdict))
		})
	}
}

func TestIsometricPrompt(t *testing.T) {
	first := render.IsometricPrompt("", 1)
	assert.Contains(t, first, "modern")
	assert.NotContains(t, first, "previous attempt")
	assert.Contains(t, render.IsometricPrompt("industrial", 2), "previous attempt")
	assert.Contains(t, render.IsometricPrompt("industrial", 2), "industrial")
}

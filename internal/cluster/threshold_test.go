package cluster

import "testing"

func TestSelectThreshold(t *testing.T) {
	thresholds := testThresholds()

	tests := []struct {
		name     string
		fb       Feedback
		expected float64
	}{
		{"no feedback uses default", Feedback{}, 0.70},
		{"confirmations tighten", Feedback{HasConfirmations: true}, 0.65},
		{"exclusions loosen", Feedback{HasExclusions: true}, 0.80},
		{"exclusions win over confirmations", Feedback{HasConfirmations: true, HasExclusions: true}, 0.80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SelectThreshold(thresholds, tt.fb); got != tt.expected {
				t.Errorf("Expected %f, got %f", tt.expected, got)
			}
		})
	}
}

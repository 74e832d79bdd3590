package cluster

import "testing"

func TestNormalizeDisplayName(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"Jiří", "jiri"},
		{"  Alice  ", "alice"},
		{"MÜLLER", "muller"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeDisplayName(tt.in); got != tt.expected {
			t.Errorf("NormalizeDisplayName(%q) = %q, expected %q", tt.in, got, tt.expected)
		}
	}
}

func TestIsUnnamed(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"", true},
		{"Unknown", true},
		{" unnamed ", true},
		{"UNASSIGNED", true},
		{"Alice", false},
		{"unknown person", false},
	}

	for _, tt := range tests {
		if got := IsUnnamed(tt.name); got != tt.expected {
			t.Errorf("IsUnnamed(%q) = %v, expected %v", tt.name, got, tt.expected)
		}
	}
}

package ui

import (
	"reflect"
	"testing"
)

func TestFindSimilar(t *testing.T) {
	metaclasses := []string{"serializable", "entity", "observable", "immutable", "comparable"}

	tests := []struct {
		name       string
		target     string
		candidates []string
		opts       *FuzzyMatchOptions
		want       []string
	}{
		{
			name:       "misspelled metaclass",
			target:     "serializble",
			candidates: metaclasses,
			want:       []string{"serializable"},
		},
		{
			name:       "misspelled type name ignores case",
			target:     "usr",
			candidates: []string{"User", "Order", "Address"},
			want:       []string{"User"},
		},
		{
			name:       "nothing close enough",
			target:     "widget",
			candidates: metaclasses,
			want:       nil,
		},
		{
			name:       "nearest candidates come first",
			target:     "observale",
			candidates: []string{"observe", "observable"},
			want:       []string{"observable", "observe"},
		},
		{
			name:       "case sensitive match excludes wrong case",
			target:     "Usr",
			candidates: []string{"USER", "User"},
			opts:       &FuzzyMatchOptions{CaseSensitive: true, MaxDistance: 1},
			want:       []string{"User"},
		},
		{
			name:       "max suggestions caps the result",
			target:     "aa",
			candidates: []string{"ab", "ac", "ad", "ae"},
			opts:       &FuzzyMatchOptions{MaxSuggestions: 2},
			want:       []string{"ab", "ac"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindSimilar(tt.target, tt.candidates, tt.opts)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FindSimilar(%q) = %v, want %v", tt.target, got, tt.want)
			}
		})
	}
}

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"entity", "entity", 0},
		{"", "entity", 6},
		{"entity", "", 6},
		{"kitten", "sitting", 3},
		{"serializble", "serializable", 1},
	}

	for _, tt := range tests {
		if got := editDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("editDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestEditDistanceIsSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"serializable", "comparable"},
		{"check", "describe"},
		{"a", "abcdef"},
	}
	for _, p := range pairs {
		if editDistance(p[0], p[1]) != editDistance(p[1], p[0]) {
			t.Errorf("editDistance(%q, %q) differs from the reverse order", p[0], p[1])
		}
	}
}

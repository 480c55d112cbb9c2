package ui

import (
	"sort"
	"strings"
)

const (
	defaultMaxDistance    = 3
	defaultMaxSuggestions = 3
)

// FuzzyMatchOptions configures FindSimilar
type FuzzyMatchOptions struct {
	MaxDistance    int  // widest edit distance still considered a match
	MaxSuggestions int  // most suggestions returned
	CaseSensitive  bool // compare without lowercasing first
}

// FindSimilar returns the candidates closest to the target by edit distance,
// nearest first. It backs the "did you mean" hints for misspelled metaclass
// and type names.
//
//	FindSimilar("serializble", []string{"serializable", "observable"}, nil)
//	// returns ["serializable"]
func FindSimilar(target string, candidates []string, opts *FuzzyMatchOptions) []string {
	if opts == nil {
		opts = &FuzzyMatchOptions{}
	}
	maxDist := opts.MaxDistance
	if maxDist == 0 {
		maxDist = defaultMaxDistance
	}
	maxSuggestions := opts.MaxSuggestions
	if maxSuggestions == 0 {
		maxSuggestions = defaultMaxSuggestions
	}

	cmp := target
	if !opts.CaseSensitive {
		cmp = strings.ToLower(target)
	}

	type scored struct {
		value    string
		distance int
	}
	var matches []scored
	for _, candidate := range candidates {
		c := candidate
		if !opts.CaseSensitive {
			c = strings.ToLower(candidate)
		}
		if d := editDistance(cmp, c); d <= maxDist {
			matches = append(matches, scored{value: candidate, distance: d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	if len(matches) > maxSuggestions {
		matches = matches[:maxSuggestions]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.value
	}
	return out
}

// editDistance is the Levenshtein distance between a and b, computed with a
// rolling pair of rows
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = prev[j] + 1 // deletion
			if ins := curr[j-1] + 1; ins < curr[j] {
				curr[j] = ins
			}
			if sub := prev[j-1] + cost; sub < curr[j] {
				curr[j] = sub
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

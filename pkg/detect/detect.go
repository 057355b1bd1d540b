// Package detect implements the comparison algorithms used by pattern
// detector stages to find candidate imperfections in a label column.
package detect

import (
	"strings"

	"github.com/agext/levenshtein"
)

// Candidate is a pair of distinct values flagged as a possible imperfection.
type Candidate struct {
	Column   string `yaml:"column"`
	Original string `yaml:"original"`
	Match    string `yaml:"match"`
	// Score is the algorithm specific measure of the pair, e.g. an edit distance.
	Score int `yaml:"score"`
	// Rows holds the row indexes where either value occurs.
	Rows []int `yaml:"rows,omitempty"`
	// OriginalCount and MatchCount are the occurrences of each value.
	OriginalCount int `yaml:"original_count,omitempty"`
	MatchCount    int `yaml:"match_count,omitempty"`
}

// Key identifies the unordered pair.
func (c Candidate) Key() [2]string {
	if c.Original < c.Match {
		return [2]string{c.Original, c.Match}
	}

	return [2]string{c.Match, c.Original}
}

// Mentions reports whether v is one of the two values of the pair.
func (c Candidate) Mentions(v string) bool {
	return c.Original == v || c.Match == v
}

// Algorithm compares two distinct values.
type Algorithm interface {
	Name() string
	// Compare returns the score of the pair and whether it is a candidate.
	Compare(a, b string) (int, bool)
}

// Distance returns the Levenshtein edit distance between a and b.
func Distance(a, b string) int {
	return levenshtein.Distance(a, b, nil)
}

// Levenshtein flags pairs whose edit distance is in (0, Threshold].
type Levenshtein struct {
	Threshold int
}

func (Levenshtein) Name() string { return "levenshtein" }

func (l Levenshtein) Compare(a, b string) (int, bool) {
	d := Distance(a, b)

	return d, d > 0 && d <= l.Threshold
}

// CaseFold flags distinct values that only differ by letter case or surrounding whitespace.
type CaseFold struct{}

func (CaseFold) Name() string { return "case-fold" }

func (CaseFold) Compare(a, b string) (int, bool) {
	if a == b {
		return 0, false
	}
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		return 1, true
	}

	return 0, false
}

// Pairs compares every unordered pair of distinct values, in order of first
// occurrence, and returns the candidates found by alg. values may contain
// duplicates; each pair is reported at most once.
func Pairs(column string, values []string, alg Algorithm) []Candidate {
	distinct := []string{}
	rows := make(map[string][]int)
	for i, v := range values {
		if _, ok := rows[v]; !ok {
			distinct = append(distinct, v)
		}
		rows[v] = append(rows[v], i)
	}

	res := []Candidate{}
	for i := 0; i < len(distinct); i++ {
		for j := i + 1; j < len(distinct); j++ {
			a, b := distinct[i], distinct[j]
			score, ok := alg.Compare(a, b)
			if !ok {
				continue
			}
			res = append(res, Candidate{
				Column:   column,
				Original: a,
				Match:    b,
				Score:    score,
				Rows:     mergeRows(rows[a], rows[b]),

				OriginalCount: len(rows[a]),
				MatchCount:    len(rows[b]),
			})
		}
	}

	return res
}

func mergeRows(a, b []int) []int {
	res := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] < b[j] {
			res = append(res, a[i])
			i++
		} else {
			res = append(res, b[j])
			j++
		}
	}
	res = append(res, a[i:]...)

	return append(res, b[j:]...)
}

// Package similarity scores free-text error messages for near-duplicate
// detection. Messages are normalized first so that volatile tokens (numbers,
// URLs, dates, identifiers) do not inflate the edit distance between two
// structurally identical errors.
package similarity

import (
	"regexp"
	"strings"
)

// DefaultThreshold is the similarity score at or above which two messages
// are considered the same error.
const DefaultThreshold = 0.8

var (
	urlPattern  = regexp.MustCompile(`https?://\S+`)
	datePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	// 10-13 digit runs are epoch timestamps in either seconds or millis.
	epochPattern      = regexp.MustCompile(`\b\d{10,13}\b`)
	uuidPattern       = regexp.MustCompile(`\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)
	numberPattern     = regexp.MustCompile(`\d+`)
	hexRunPattern     = regexp.MustCompile(`\b[0-9a-f]{8,}\b`)
	quotePattern      = regexp.MustCompile("[\"'`]")
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Normalize lowercases a message and collapses its volatile tokens into
// fixed placeholders. Bare numbers must be replaced before long hex runs:
// once digits are gone, only hex candidates containing letters remain,
// which is exactly the set worth collapsing to <hex>.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	s := strings.ToLower(text)

	s = urlPattern.ReplaceAllString(s, "<url>")
	s = datePattern.ReplaceAllString(s, "<date>")
	// UUIDs go before epochs: a UUID whose last segment is all digits would
	// otherwise lose that segment to the epoch rule and never match.
	s = uuidPattern.ReplaceAllString(s, "<uuid>")
	s = epochPattern.ReplaceAllString(s, "<ts>")
	s = numberPattern.ReplaceAllString(s, "<num>")
	s = hexRunPattern.ReplaceAllString(s, "<hex>")

	s = quotePattern.ReplaceAllString(s, "")
	s = whitespacePattern.ReplaceAllString(s, " ")

	return strings.TrimSpace(s)
}

// Score returns the similarity of two raw messages in [0, 1].
// An empty input scores 0 against anything.
func Score(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return ScoreNormalized(Normalize(a), Normalize(b))
}

// ScoreNormalized scores two already-normalized messages. Identical inputs
// (including two empty normalized forms) score 1.0 without computing the
// edit distance.
func ScoreNormalized(na, nb string) float64 {
	if na == nb {
		return 1.0
	}

	maxLen := len(na)
	if len(nb) > maxLen {
		maxLen = len(nb)
	}

	return 1.0 - float64(Levenshtein(na, nb))/float64(maxLen)
}

// IsSimilar reports whether two messages score at or above threshold.
func IsSimilar(a, b string, threshold float64) bool {
	return Score(a, b) >= threshold
}

// Match is the best candidate found by FindMostSimilar.
type Match struct {
	Message string
	Index   int
	Score   float64
}

// FindMostSimilar scans candidates linearly and returns the single
// highest-scoring one, or false if no candidate reaches threshold.
func FindMostSimilar(target string, candidates []string, threshold float64) (Match, bool) {
	best := Match{Index: -1}
	for i, c := range candidates {
		if s := Score(target, c); s > best.Score {
			best = Match{Message: c, Index: i, Score: s}
		}
	}
	if best.Index < 0 || best.Score < threshold {
		return Match{}, false
	}
	return best, true
}

// Matrix computes the symmetric pairwise similarity matrix of messages.
// Each unordered pair is scored once; the diagonal is 1.0.
func Matrix(messages []string) [][]float64 {
	n := len(messages)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1.0
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			s := Score(messages[i], messages[j])
			m[i][j] = s
			m[j][i] = s
		}
	}
	return m
}

// Levenshtein computes the unit-cost edit distance between two strings
// using a two-row rolling buffer.
func Levenshtein(a, b string) int {
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
			curr[j] = minOf(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func minOf(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

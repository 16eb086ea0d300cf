// Package scoring provides string similarity primitives for entity matching
package scoring

import "strings"

// containmentDiscount is applied to containment scores so a truncated alias
// never outranks a true near-exact name match.
const containmentDiscount = 0.9

// winklerPrefixScale is the standard Winkler prefix bonus scaling factor.
const winklerPrefixScale = 0.1

// winklerMaxPrefix caps the common-prefix length counted for the bonus.
const winklerMaxPrefix = 4

// Scorer provides string comparison algorithms
type Scorer struct{}

// NewScorer creates a new Scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// ExactMatch returns 1.0 for exact match, 0.0 otherwise
func (s *Scorer) ExactMatch(a, b string, caseSensitive bool) float64 {
	if !caseSensitive {
		a = strings.ToLower(a)
		b = strings.ToLower(b)
	}
	if a == b {
		return 1.0
	}
	return 0.0
}

// JaroWinkler calculates the Jaro-Winkler similarity between two strings:
// the Jaro score plus a bonus proportional to the shared prefix. Symmetric,
// between 0.0 (no similarity) and 1.0 (exact match).
func (s *Scorer) JaroWinkler(a, b string) float64 {
	if a == b {
		if len(a) == 0 {
			return 0.0
		}
		return 1.0
	}

	jaro := s.Jaro(a, b)

	prefixLen := 0
	for i := 0; i < len(a) && i < len(b) && i < winklerMaxPrefix; i++ {
		if a[i] == b[i] {
			prefixLen++
		} else {
			break
		}
	}

	return jaro + float64(prefixLen)*winklerPrefixScale*(1.0-jaro)
}

// Jaro calculates the Jaro similarity between two strings
func (s *Scorer) Jaro(a, b string) float64 {
	if a == b {
		if len(a) == 0 {
			return 0.0
		}
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	// Maximum distance for character matching
	matchDist := max(len(a), len(b))/2 - 1
	if matchDist < 0 {
		matchDist = 0
	}

	aMatches := make([]bool, len(a))
	bMatches := make([]bool, len(b))

	matches := 0
	transpositions := 0

	// Find matches
	for i := 0; i < len(a); i++ {
		start := max(0, i-matchDist)
		end := min(len(b), i+matchDist+1)

		for j := start; j < end; j++ {
			if bMatches[j] || a[i] != b[j] {
				continue
			}
			aMatches[i] = true
			bMatches[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	// Count transpositions
	k := 0
	for i := 0; i < len(a); i++ {
		if !aMatches[i] {
			continue
		}
		for !bMatches[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	t := float64(transpositions) / 2

	return (m/float64(len(a)) + m/float64(len(b)) + (m-t)/m) / 3
}

// Containment scores one string being a literal substring of the other:
// len(shorter)/len(longer) when contained, else 0. Catches truncation and
// aliasing ("ABC CHILDCARE" inside "ABC CHILDCARE CENTER MANCHESTER").
func (s *Scorer) Containment(a, b string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}

	if !strings.Contains(longer, shorter) {
		return 0.0
	}

	return float64(len(shorter)) / float64(len(longer))
}

// NameSimilarity combines Jaro-Winkler with discounted containment. The
// discount keeps a containment hit strictly below a near-exact match of the
// same strings.
func (s *Scorer) NameSimilarity(a, b string) float64 {
	jw := s.JaroWinkler(a, b)
	cont := containmentDiscount * s.Containment(a, b)
	if cont > jw {
		return cont
	}
	return jw
}

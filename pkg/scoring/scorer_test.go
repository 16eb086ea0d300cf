package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJaroWinkler_ReferenceVectors(t *testing.T) {
	s := NewScorer()

	tests := []struct {
		a        string
		b        string
		expected float64
	}{
		{"MARTHA", "MARHTA", 0.9611},
		{"DIXON", "DICKSONX", 0.8133},
		{"JELLYFISH", "SMELLYFISH", 0.8963},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.expected, s.JaroWinkler(tt.a, tt.b), 0.001, "JaroWinkler(%q, %q)", tt.a, tt.b)
	}
}

func TestJaroWinkler_IdentityAndEmpty(t *testing.T) {
	s := NewScorer()

	for _, str := range []string{"A", "SUNSHINE CHILDCARE", "123 N MAIN ST"} {
		assert.Equal(t, 1.0, s.JaroWinkler(str, str))
	}
	assert.Equal(t, 0.0, s.JaroWinkler("", ""))
	assert.Equal(t, 0.0, s.JaroWinkler("ABC", ""))
	assert.Equal(t, 0.0, s.JaroWinkler("", "ABC"))
}

func TestJaroWinkler_Symmetry(t *testing.T) {
	s := NewScorer()

	pairs := [][2]string{
		{"MARTHA", "MARHTA"},
		{"SUNSHINE CHILDCARE", "SUNSHINE CHILDCARE CENTER"},
		{"LITTLE SPROUTS", "LITTLE SPROUT"},
		{"ABC", "XYZ"},
	}

	for _, p := range pairs {
		assert.Equal(t, s.JaroWinkler(p[0], p[1]), s.JaroWinkler(p[1], p[0]), "JaroWinkler(%q, %q) not symmetric", p[0], p[1])
	}
}

func TestJaro_NoCommonCharacters(t *testing.T) {
	s := NewScorer()
	assert.Equal(t, 0.0, s.Jaro("ABC", "XYZ"))
}

func TestContainment(t *testing.T) {
	s := NewScorer()

	assert.InDelta(t, 13.0/20.0, s.Containment("ABC CHILDCARE", "ABC CHILDCARE CENTER"), 1e-9)
	// Order independent
	assert.Equal(t, s.Containment("ABC CHILDCARE", "ABC CHILDCARE CENTER"), s.Containment("ABC CHILDCARE CENTER", "ABC CHILDCARE"))
	assert.Equal(t, 0.0, s.Containment("SUNSHINE", "LITTLE SPROUTS"))
	assert.Equal(t, 0.0, s.Containment("", "ABC"))
	assert.Equal(t, 1.0, s.Containment("ABC", "ABC"))
}

func TestNameSimilarity(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 1.0, s.NameSimilarity("SUNSHINE CHILDCARE", "SUNSHINE CHILDCARE"))

	// Combined score is always the max of Jaro-Winkler and discounted
	// containment.
	pairs := [][2]string{
		{"ABC CHILDCARE", "ABC CHILDCARE CENTER MANCHESTER"},
		{"SUNSHINE CHILDCARE", "SUNSHINE CHILDCARE CENTER"},
		{"LITTLE SPROUTS", "SPROUTS"},
	}
	for _, p := range pairs {
		jw := s.JaroWinkler(p[0], p[1])
		cont := 0.9 * s.Containment(p[0], p[1])
		expected := jw
		if cont > expected {
			expected = cont
		}
		assert.Equal(t, expected, s.NameSimilarity(p[0], p[1]))
	}

	// A substring sitting outside Jaro's match window is still caught by
	// containment.
	assert.Equal(t, 0.0, s.JaroWinkler("XY", "QQQQQQQQXY"))
	assert.InDelta(t, 0.18, s.NameSimilarity("XY", "QQQQQQQQXY"), 1e-9)
}

func TestExactMatch(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 1.0, s.ExactMatch("SPRINGFIELD", "Springfield", false))
	assert.Equal(t, 0.0, s.ExactMatch("SPRINGFIELD", "Springfield", true))
	assert.Equal(t, 1.0, s.ExactMatch("62704", "62704", true))
	assert.Equal(t, 0.0, s.ExactMatch("62704", "62705", true))
}

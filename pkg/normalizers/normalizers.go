// Package normalizers provides field normalization functions for entity resolution
package normalizers

import (
	"strings"
	"unicode"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	// Register built-in normalizers
	Register("name", Name)
	Register("address", Address)
	Register("phone", Phone)
	Register("zip", Zip)
	Register("uppercase", Uppercase)
	Register("trim", Trim)
	Register("digits_only", DigitsOnly)
	Register("remove_punctuation", RemovePunctuation)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// stopwords are tokens that carry no matching signal: legal suffixes and
// glue words that vary freely across registries for the same organization.
var stopwords = map[string]bool{
	"INC": true, "LLC": true, "LLP": true, "LTD": true, "CORP": true,
	"CO": true, "COMPANY": true, "INCORPORATED": true, "CORPORATION": true,
	"THE": true, "OF": true, "AND": true, "A": true, "AN": true,
}

// phraseSynonyms are two-token rewrites applied during tokenization so
// "CHILD CARE" and "DAY CARE" collapse to the same token as "CHILDCARE".
// Values must never appear as the first token of a key, or Name would stop
// being idempotent.
var phraseSynonyms = map[string]string{
	"CHILD CARE": "CHILDCARE",
	"DAY CARE":   "CHILDCARE",
	"PRE SCHOOL": "PRESCHOOL",
	"PRE K":      "PREK",
}

// tokenSynonyms canonicalize single-token domain variants. Values must never
// be stopwords or synonym keys, or Name would stop being idempotent.
var tokenSynonyms = map[string]string{
	"DAYCARE":      "CHILDCARE",
	"CENTRE":       "CENTER",
	"CTR":          "CENTER",
	"KINDERCARE":   "CHILDCARE",
	"ACAD":         "ACADEMY",
	"MONTESSORRI":  "MONTESSORI",
	"KINDERGARDEN": "KINDERGARTEN",
}

// Name normalizes an organization name for matching:
// uppercase, punctuation stripped, legal suffixes and stopwords removed,
// domain synonyms canonicalized, whitespace collapsed.
// Idempotent: Name(Name(s)) == Name(s).
func Name(s string) string {
	s = stripPunctuation(strings.ToUpper(s))

	// Stopwords go first: dropping a glue word can make a phrase adjacent
	// ("DAY OF CARE" -> "DAY CARE"), so the merge pass must see the
	// stopword-free token stream or Name would not be idempotent.
	tokens := strings.Fields(s)
	kept := tokens[:0]
	for _, tok := range tokens {
		if !stopwords[tok] {
			kept = append(kept, tok)
		}
	}

	result := make([]string, 0, len(kept))
	for i := 0; i < len(kept); i++ {
		tok := kept[i]
		if i+1 < len(kept) {
			if merged, ok := phraseSynonyms[tok+" "+kept[i+1]]; ok {
				result = append(result, merged)
				i++
				continue
			}
		}
		if canonical, ok := tokenSynonyms[tok]; ok {
			tok = canonical
		}
		result = append(result, tok)
	}

	return strings.Join(result, " ")
}

// streetTypes maps street-type and directional words to USPS-style
// abbreviations. Targets are never keys, which keeps Address idempotent.
var streetTypes = map[string]string{
	"STREET": "ST", "AVENUE": "AVE", "BOULEVARD": "BLVD", "DRIVE": "DR",
	"ROAD": "RD", "LANE": "LN", "COURT": "CT", "CIRCLE": "CIR",
	"PLACE": "PL", "TERRACE": "TER", "HIGHWAY": "HWY", "PARKWAY": "PKWY",
	"SQUARE": "SQ", "TRAIL": "TRL",
	"NORTH": "N", "SOUTH": "S", "EAST": "E", "WEST": "W",
	"NORTHEAST": "NE", "NORTHWEST": "NW", "SOUTHEAST": "SE", "SOUTHWEST": "SW",
	"APARTMENT": "APT", "SUITE": "STE", "BUILDING": "BLDG",
	"FLOOR": "FL", "ROOM": "RM",
}

// Address normalizes a street address for matching: uppercase, punctuation
// stripped, street types / directionals / unit designators abbreviated,
// whitespace collapsed. Idempotent.
func Address(s string) string {
	s = stripPunctuation(strings.ToUpper(s))

	tokens := strings.Fields(s)
	result := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if abbr, ok := streetTypes[tok]; ok {
			tok = abbr
		}
		result = append(result, tok)
	}

	return strings.Join(result, " ")
}

// Phone normalizes a phone number to its 10-digit form. Accepts 10 digits,
// or 11 digits with a leading country code 1 (stripped). Any other length
// normalizes to "" — no signal, never an error.
func Phone(s string) string {
	digits := DigitsOnly(s)
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return ""
	}
	return digits
}

// Zip normalizes a US zip code to its first 5 digits, ignoring non-digits.
// Fewer than 5 digits normalizes to "".
func Zip(s string) string {
	digits := DigitsOnly(s)
	if len(digits) < 5 {
		return ""
	}
	return digits[:5]
}

// Uppercase converts string to uppercase
func Uppercase(s string) string {
	return strings.ToUpper(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// DigitsOnly keeps only digit characters
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// RemovePunctuation removes all punctuation and symbol characters
func RemovePunctuation(s string) string {
	var result strings.Builder
	for _, r := range s {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// stripPunctuation replaces punctuation with spaces (so "SMITH&JONES" splits
// into two tokens) except apostrophes, which are dropped in place (so
// "NOAH'S" stays a single token).
func stripPunctuation(s string) string {
	var result strings.Builder
	prevSpace := false
	for _, r := range s {
		switch {
		case r == '\'' || r == '’':
			// drop
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			result.WriteRune(r)
			prevSpace = false
		default:
			if !prevSpace {
				result.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	return strings.TrimSpace(result.String())
}

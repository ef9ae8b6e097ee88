// Package identity maps raw songwriter credit strings to stored profiles.
// Splitting and normalization are pure; resolution persists idempotent links.
package identity

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// credit delimiters seen in provider metadata, all canonicalized to commas
// before splitting.
var delimiterReplacer = strings.NewReplacer(
	"&", ",",
	"/", ",",
	"|", ",",
	";", ",",
	"\n", ",",
	"\r", ",",
)

// surnamePrefixes are multi-part surname openers. A lowercase-to-uppercase
// transition directly after one of these belongs to a single name
// (McCartney, O'Brien, VanMorrison) and is never a split point. Matching is
// case-sensitive: the capitalized forms are how the prefixes appear in
// names, and a case-insensitive match would exempt words that merely end in
// the same letters (August, Viola).
var surnamePrefixes = []string{"Mc", "Mac", "O'", "St.", "St", "Van", "De", "Von", "La", "Le"}

var titleCaser = cases.Title(language.English, cases.NoLower)

// SplitCredits splits a raw credit string into individual names. Known
// delimiters become commas, glued names are split at lowercase-to-uppercase
// transitions outside surname prefixes, and the result is title-cased and
// deduplicated case-insensitively in first-seen order.
func SplitCredits(raw string) []string {
	return splitCredits(raw, false)
}

// SplitCreditsConservative applies the stricter glue heuristic used when
// credits feed matching rather than display: transition splits are accepted
// only when a segment has two or more transitions, or exactly one transition
// with a resulting part that itself contains a space. Mononyms and short
// stage names with a single interior capital stay whole.
func SplitCreditsConservative(raw string) []string {
	return splitCredits(raw, true)
}

func splitCredits(raw string, conservative bool) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var names []string
	for _, segment := range strings.Split(delimiterReplacer.Replace(raw), ",") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		parts := splitGlued(segment)
		if conservative && !acceptConservative(parts) {
			parts = []string{segment}
		}
		names = append(names, parts...)
	}

	return dedupeNames(names)
}

// splitGlued breaks one segment at lowercase-to-uppercase transitions that
// do not follow a surname prefix.
func splitGlued(segment string) []string {
	runes := []rune(segment)
	var parts []string
	start := 0
	for i := 1; i < len(runes); i++ {
		if !unicode.IsUpper(runes[i]) || !unicode.IsLower(runes[i-1]) {
			continue
		}
		current := string(runes[start:i])
		if endsWithSurnamePrefix(current) {
			continue
		}
		if trimmed := strings.TrimSpace(current); trimmed != "" {
			parts = append(parts, trimmed)
		}
		start = i
	}
	if trimmed := strings.TrimSpace(string(runes[start:])); trimmed != "" {
		parts = append(parts, trimmed)
	}
	return parts
}

// acceptConservative reports whether glue splits on a segment are trusted:
// two or more split points, or one split point where a produced part spans
// multiple words.
func acceptConservative(parts []string) bool {
	transitions := len(parts) - 1
	if transitions <= 0 {
		return true
	}
	if transitions >= 2 {
		return true
	}
	for _, part := range parts {
		if strings.Contains(strings.TrimSpace(part), " ") {
			return true
		}
	}
	return false
}

// endsWithSurnamePrefix reports whether the trailing word of text is exactly
// a surname prefix, so the upcoming capital continues the same name.
func endsWithSurnamePrefix(text string) bool {
	text = strings.TrimSpace(text)
	for _, prefix := range surnamePrefixes {
		if !strings.HasSuffix(text, prefix) {
			continue
		}
		boundary := len(text) - len(prefix)
		if boundary == 0 {
			return true
		}
		r, _ := utf8.DecodeLastRuneInString(text[:boundary])
		if !unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func dedupeNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	var out []string
	for _, name := range names {
		name = titleCaser.String(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	return out
}

// generational suffixes stripped during matching normalization.
var generationalSuffixes = map[string]struct{}{
	"jr": {}, "sr": {}, "ii": {}, "iii": {}, "iv": {},
}

// Normalize lowercases a name, strips punctuation and generational
// suffixes, and collapses whitespace. Two names with equal normalized forms
// are candidates for the fuzzy matching tier.
func Normalize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	var kept []string
	for _, token := range strings.Fields(b.String()) {
		if _, suffix := generationalSuffixes[token]; suffix {
			continue
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " ")
}

// tokens returns the normalized token set of a name.
func tokens(name string) []string {
	return strings.Fields(Normalize(name))
}

// sharedTokenCount counts tokens present in both normalized names.
func sharedTokenCount(a, b string) int {
	set := make(map[string]struct{})
	for _, token := range tokens(a) {
		set[token] = struct{}{}
	}
	count := 0
	for _, token := range tokens(b) {
		if _, ok := set[token]; ok {
			count++
			delete(set, token)
		}
	}
	return count
}

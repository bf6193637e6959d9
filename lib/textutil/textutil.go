package textutil

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName lowercases a name and removes all whitespace so that
// "Aller Top2" and "allertop2" compare equal.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.TrimSpace(name)
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

// NormalizeLabel lowercases a label and collapses inner whitespace to single spaces.
func NormalizeLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	return whitespaceRegex.ReplaceAllString(label, " ")
}

// Closest returns the candidate most similar to name by Jaro-Winkler distance and
// whether it is similar enough to be worth suggesting.
func Closest(name string, candidates []string) (string, bool) {
	normalized := NormalizeName(name)

	best := ""
	var similarity float64
	for _, c := range candidates {
		sim := matchr.JaroWinkler(normalized, NormalizeName(c), false)
		if sim > similarity {
			best = c
			similarity = sim
		}
	}
	return best, similarity >= 0.8
}

package registry

import (
	"regexp"
	"strings"
)

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// NormalizeName standardizes a person's name for matching: trims, uppercases,
// strips punctuation and diacritic-free separators, collapses runs of spaces.
// OCR output for the same employee varies in casing, accents dropped by the
// scanner, and "SURNAME, NAME" ordering; comparing normalized forms absorbs
// most of that.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	name = strings.ToUpper(name)

	name = strings.NewReplacer(
		",", " ",
		".", "",
		"'", "",
		"\"", "",
		"-", " ",
	).Replace(name)

	return multiSpaceRe.ReplaceAllString(strings.TrimSpace(name), " ")
}

var dniRe = regexp.MustCompile(`^[0-9]{8}[A-Z]$`)

// NormalizeDNI uppercases and strips separators from a detected DNI.
// Returns the empty string when the result does not look like a DNI at all,
// so a garbage OCR read never reaches the registry lookup.
func NormalizeDNI(dni string) string {
	dni = strings.ToUpper(strings.TrimSpace(dni))
	dni = strings.NewReplacer("-", "", ".", "", " ", "").Replace(dni)
	if !dniRe.MatchString(dni) {
		return ""
	}
	return dni
}

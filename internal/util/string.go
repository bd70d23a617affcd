package util

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TruncateString truncates a string to maxRunes characters (rune-based, not byte-based)
// If truncated, appends "..." to the result
func TruncateString(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return strings.TrimRightFunc(string(runes[:maxRunes]), unicode.IsSpace) + "..."
}

// Normalize performs basic string normalization (lowercase + trim)
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ContainsFold reports whether sub is within s, ignoring case. An empty sub always matches.
func ContainsFold(s, sub string) bool {
	if sub == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// FormatCityName turns an upstream place slug such as "playa_del_carmen-mexico"
// into display text ("Playa Del Carmen Mexico").
func FormatCityName(name string) string {
	if name == "" {
		return ""
	}

	replaced := strings.NewReplacer("-", " ", "_", " ").Replace(name)
	words := strings.Split(replaced, " ")
	for i, word := range words {
		words[i] = capitalize(word)
	}
	return strings.Join(words, " ")
}

func capitalize(word string) string {
	if word == "" {
		return word
	}
	first, size := utf8.DecodeRuneInString(word)
	return string(unicode.ToUpper(first)) + strings.ToLower(word[size:])
}

// SplitPlace separates a place string into city and country parts. "Paris, France"
// splits on the last comma; upstream slugs like "los_angeles-usa" split on the last hyphen.
// Both parts come back in display form.
func SplitPlace(place string) (city, country string) {
	place = strings.TrimSpace(place)
	if place == "" {
		return "", ""
	}

	if idx := strings.LastIndex(place, ","); idx >= 0 {
		return FormatCityName(strings.TrimSpace(place[:idx])), FormatCityName(strings.TrimSpace(place[idx+1:]))
	}
	if idx := strings.LastIndex(place, "-"); idx > 0 {
		return FormatCityName(place[:idx]), FormatCityName(place[idx+1:])
	}
	return FormatCityName(place), ""
}

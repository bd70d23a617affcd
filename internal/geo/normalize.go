package geo

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeKey maps a free-text place name to its lookup key: lower case, accents
// stripped, every rune other than a-z, 0-9 and , - / ( ) turned into a space,
// whitespace collapsed and trimmed. The function is idempotent.
func NormalizeKey(name string) string {
	if strings.TrimSpace(name) == "" {
		return ""
	}

	lowered := strings.ToLower(name)
	// transform.Chain keeps state, so one is built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, lowered)
	if err != nil {
		stripped = lowered
	}

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ',' || r == '-' || r == '/' || r == '(' || r == ')':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// separators are tried in this order when deriving variants.
var separators = []string{",", "(", "/", "-"}

// Variants returns the lookup candidates for a normalized key: the key itself,
// then the key truncated at the first comma, parenthesis, slash and hyphen.
// Empty and repeated candidates are dropped; order is kept.
func Variants(key string) []string {
	out := make([]string, 0, len(separators)+1)
	seen := make(map[string]struct{}, len(separators)+1)
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		if _, dup := seen[v]; dup {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	add(key)
	for _, sep := range separators {
		head, _, _ := strings.Cut(key, sep)
		add(head)
	}
	return out
}

// mainCity is the candidate used for fuzzy matching: the part before the first
// comma, or the whole key when that part is empty.
func mainCity(key string) string {
	head, _, _ := strings.Cut(key, ",")
	if head = strings.TrimSpace(head); head != "" {
		return head
	}
	return key
}

// searchQuery picks the text sent to the external geocoder: the first variant longer
// than two characters, falling back to the key.
func searchQuery(key string, minLength int) string {
	for _, v := range Variants(key) {
		if len(v) >= minLength {
			return v
		}
	}
	return key
}

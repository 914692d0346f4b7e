package check

import (
	"regexp"
	"strings"
)

var placeholderToken = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_.\-]*)\}`)

// hasPlaceholder reports whether v contains a well-formed {variable} token.
func hasPlaceholder(v string) bool {
	return placeholderToken.MatchString(v)
}

// placeholderName returns x when v is exactly "{x}".
func placeholderName(v string) (string, bool) {
	m := placeholderToken.FindStringSubmatch(strings.TrimSpace(v))
	if m == nil || m[0] != strings.TrimSpace(v) {
		return "", false
	}
	return m[1], true
}

// placeholderNames lists every {name} token in v, in order.
func placeholderNames(v string) []string {
	var out []string
	for _, m := range placeholderToken.FindAllStringSubmatch(v, -1) {
		out = append(out, m[1])
	}
	return out
}

package variables

import (
	"regexp"
	"strings"
)

var (
	classOrIDRe = regexp.MustCompile(`[.#]([A-Za-z_-][A-Za-z0-9_-]*)`)

	// generated class name shapes of common CSS-in-JS and build tools
	fragileNameRes = []*regexp.Regexp{
		regexp.MustCompile(`^css-[a-z0-9]{5,}`),                        // emotion
		regexp.MustCompile(`^sc-[A-Za-z0-9]{5,}`),                      // styled-components
		regexp.MustCompile(`^jsx-\d{5,}$`),                             // styled-jsx
		regexp.MustCompile(`^[A-Za-z]+_[A-Za-z]+__[A-Za-z0-9_-]{5}$`),  // CSS modules
		regexp.MustCompile(`^[a-z]{1,4}-[a-f0-9]{6,}$`),                // short prefix plus hex hash
		regexp.MustCompile(`^[A-Za-z]+\d+[A-Za-z]+\d[A-Za-z0-9]{2,}$`), // interleaved letters and digits
		regexp.MustCompile(`^ember\d+$`),
	}

	nthChildRe = regexp.MustCompile(`:nth-(?:child|of-type)\(`)
)

// FragileSelector reports whether a CSS selector depends on generated class
// names or IDs, or on deep positional structure. The second result names
// the offending part.
func FragileSelector(selector string) (bool, string) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return false, ""
	}
	for _, m := range classOrIDRe.FindAllStringSubmatch(selector, -1) {
		name := m[1]
		for _, re := range fragileNameRes {
			if re.MatchString(name) {
				return true, m[0]
			}
		}
	}
	if len(nthChildRe.FindAllStringIndex(selector, -1)) >= 3 {
		return true, "positional :nth-child chain"
	}
	return false, ""
}

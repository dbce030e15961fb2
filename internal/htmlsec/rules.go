package htmlsec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"evalgo.org/tagscope/models"
)

// Finding is one rule that fired for a tag.
type Finding struct {
	Category string          `json:"category"`
	Severity models.Severity `json:"severity"`
	Reason   string          `json:"reason"`
}

var (
	dynamicCodeRe = regexp.MustCompile(`\beval\s*\(|\bnew\s+Function\s*\(`)
	networkRe     = regexp.MustCompile(`\bfetch\s*\(|\bXMLHttpRequest\b|\.send\s*\(`)

	innerHTMLRe = regexp.MustCompile(`\.(?:inner|outer)HTML\s*(\+?=)([^=])`)
	literalRe   = regexp.MustCompile(`^(?:'[^'\\]*'|"[^"\\]*"|` + "`[^`$\\\\]*`" + `)$`)
	sanitizerRe = regexp.MustCompile(`(?i)\b(?:DOMPurify\.sanitize|sanitize\w*|escape\w*|encodeURIComponent)\b`)

	sinkRe     = regexp.MustCompile(`\bfetch\s*\(|\.open\s*\(|sendBeacon\s*\(|\.src\s*=|\bXMLHttpRequest\b|\.send\s*\(`)
	urlPartRe  = regexp.MustCompile(`(?i)https?://|[?&][\w.\[\]-]+=|\bfetch\s*\(|sendBeacon\s*\(|\.src\s*=|\.open\s*\(`)
	emailRe    = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9-]+(?:\.[A-Za-z0-9-]+)*\.[A-Za-z]{2,}`)
	phoneRe    = regexp.MustCompile(`['"]\+?\d[\d\s().-]{7,}\d['"]`)
	piiIdentRe = regexp.MustCompile(`(?i)\b[a-z_$]*(?:e_?mail|phone|telephone|mobile|msisdn)[a-z0-9_$]*\b`)

	timerRe = regexp.MustCompile(`\b(setInterval|setTimeout)\s*\(`)

	postMessageRe = regexp.MustCompile(`\bpostMessage\s*\(`)

	domSensitiveRe = regexp.MustCompile(`\bdocument\s*\.\s*(?:getElementById|getElementsBy\w+|querySelector(?:All)?|body|forms|images)\b|\bwindow\s*\.\s*(?:innerWidth|innerHeight|scrollY|performance)\b`)
	domWaitRe      = regexp.MustCompile(`(?i)addEventListener\s*\(\s*['"](?:DOMContentLoaded|load)['"]|\bdocument\s*\.\s*readyState\b|\bwindow\s*\.\s*onload\b`)
)

// ruleEvalNetwork flags dynamic code evaluation alongside an outbound
// network call in the same script.
func ruleEvalNetwork(script string) (Finding, bool) {
	code := dynamicCodeRe.FindString(script)
	net := networkRe.FindString(script)
	if code == "" || net == "" {
		return Finding{}, false
	}
	return Finding{
		Category: models.CategoryHTMLEvalNetwork,
		Severity: models.SeverityCritical,
		Reason:   fmt.Sprintf("script evaluates dynamic code (%s) and makes network calls (%s)", compact(code), compact(net)),
	}, true
}

// ruleXSS flags innerHTML or outerHTML writes whose right-hand side is not
// a plain string literal, unless the script sanitizes anywhere.
func ruleXSS(script string) (Finding, bool) {
	if sanitizerRe.MatchString(script) {
		return Finding{}, false
	}
	for _, m := range innerHTMLRe.FindAllStringSubmatchIndex(script, -1) {
		op := script[m[2]:m[3]]
		rhsStart := m[4]
		rhs := strings.TrimSpace(script[rhsStart:expressionEnd(script, rhsStart)])
		if rhs == "" || literalRe.MatchString(rhs) {
			continue
		}
		return Finding{
			Category: models.CategoryHTMLXSS,
			Severity: models.SeverityCritical,
			Reason:   fmt.Sprintf("unsanitized value written to innerHTML (%s %s)", op, truncate(rhs, 40)),
		}, true
	}
	return Finding{}, false
}

// rulePIILeak flags URL construction for outbound requests that carries an
// email or phone shaped literal or a PII-named identifier.
func rulePIILeak(script string) (Finding, bool) {
	if !sinkRe.MatchString(script) {
		return Finding{}, false
	}
	for _, stmt := range statements(script) {
		if !urlPartRe.MatchString(stmt) {
			continue
		}
		if emailRe.MatchString(stmt) {
			return piiFinding("an email address literal"), true
		}
		if phoneRe.MatchString(stmt) {
			return piiFinding("a phone number literal"), true
		}
		if m := piiIdentRe.FindString(stmt); m != "" {
			return piiFinding(fmt.Sprintf("the value %q", m)), true
		}
	}
	return Finding{}, false
}

func piiFinding(what string) Finding {
	return Finding{
		Category: models.CategoryHTMLPIILeak,
		Severity: models.SeverityCritical,
		Reason:   fmt.Sprintf("outbound request URL includes %s", what),
	}
}

// ruleTimer flags setInterval or setTimeout with a literal delay below
// threshold milliseconds.
func ruleTimer(script string, threshold int) (Finding, bool) {
	for _, loc := range timerRe.FindAllStringSubmatchIndex(script, -1) {
		name := script[loc[2]:loc[3]]
		args := callArgs(script, loc[1])
		if len(args) < 2 {
			continue
		}
		delay, err := strconv.Atoi(strings.TrimSpace(args[1]))
		if err != nil || delay >= threshold {
			continue
		}
		return Finding{
			Category: models.CategoryHTMLTimer,
			Severity: models.SeverityMajor,
			Reason:   fmt.Sprintf("%s delay of %dms is below the %dms threshold", name, delay, threshold),
		}, true
	}
	return Finding{}, false
}

// rulePostMessage flags postMessage calls with the wildcard target origin.
func rulePostMessage(script string) (Finding, bool) {
	for _, loc := range postMessageRe.FindAllStringIndex(script, -1) {
		args := callArgs(script, loc[1])
		if len(args) < 2 {
			continue
		}
		origin := strings.TrimSpace(args[1])
		if origin == `"*"` || origin == `'*'` || origin == "`*`" {
			return Finding{
				Category: models.CategoryHTMLPostMessage,
				Severity: models.SeverityMinor,
				Reason:   `postMessage uses the wildcard target origin "*"`,
			}, true
		}
	}
	return Finding{}, false
}

// ruleTiming flags DOM-dependent scripts fired at page view, before the
// DOM is guaranteed to exist.
func ruleTiming(script string, firesAtPageview bool) (Finding, bool) {
	if !firesAtPageview || domWaitRe.MatchString(script) {
		return Finding{}, false
	}
	m := domSensitiveRe.FindString(script)
	if m == "" {
		return Finding{}, false
	}
	return Finding{
		Category: models.CategoryHTMLTiming,
		Severity: models.SeverityMinor,
		Reason:   fmt.Sprintf("script reads the DOM (%s) but fires on a Page View trigger", compact(m)),
	}, true
}

// callArgs splits the argument list of the call whose opening parenthesis
// ends at open. Nested brackets and string literals are skipped.
func callArgs(src string, open int) []string {
	var (
		args  []string
		depth int
		quote byte
		start = open
	)
	for i := open; i < len(src); i++ {
		ch := src[i]
		if quote != 0 {
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"', '`':
			quote = ch
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth == 0 {
				if arg := src[start:i]; strings.TrimSpace(arg) != "" || len(args) > 0 {
					args = append(args, arg)
				}
				return args
			}
			depth--
		case ',':
			if depth == 0 {
				args = append(args, src[start:i])
				start = i + 1
			}
		}
	}
	return args
}

// expressionEnd returns the index of the first semicolon or newline at or
// after start that is outside string literals and brackets, or len(src).
func expressionEnd(src string, start int) int {
	var (
		depth int
		quote byte
	)
	for i := start; i < len(src); i++ {
		ch := src[i]
		if quote != 0 {
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"', '`':
			quote = ch
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth == 0 {
				return i
			}
			depth--
		case ';', '\n':
			if depth == 0 {
				return i
			}
		}
	}
	return len(src)
}

// statements splits script text on semicolons and newlines. String
// literals are not respected.
func statements(script string) []string {
	return strings.FieldsFunc(script, func(r rune) bool {
		return r == ';' || r == '\n'
	})
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package htmlsec

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/publicsuffix"
)

// document is the parsed form of one Custom-HTML body.
type document struct {
	// Scripts holds the text of every inline script element, or the whole
	// body when it has no script element
	Scripts []string

	// URLs holds src and href attribute values of all elements
	URLs []string
}

// Script returns all inline script text joined into one program.
func (d document) Script() string {
	return strings.Join(d.Scripts, "\n;\n")
}

// parseDocument splits a Custom-HTML body into inline scripts and element
// URLs. The HTML parser never fails on malformed markup; a body that is
// plain JavaScript yields no script element and is used verbatim.
func parseDocument(body string) document {
	var d document
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		d.Scripts = []string{body}
		return d
	}

	sawScript := false
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if a.Key == "src" || a.Key == "href" {
					d.URLs = append(d.URLs, strings.TrimSpace(a.Val))
				}
			}
			if n.DataAtom == atom.Script {
				sawScript = true
				if text := nodeText(n); strings.TrimSpace(text) != "" {
					d.Scripts = append(d.Scripts, text)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	if !sawScript && !looksLikeMarkup(body) {
		d.Scripts = []string{body}
	}
	return d
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

var markupRe = regexp.MustCompile(`^<\s*[A-Za-z!/]`)

func looksLikeMarkup(body string) bool {
	return markupRe.MatchString(strings.TrimSpace(body))
}

const hostPattern = `[a-z0-9](?:[a-z0-9-]*[a-z0-9])?(?:\.[a-z0-9](?:[a-z0-9-]*[a-z0-9])?)+(?::\d+)?`

var (
	// protocol-relative URLs only count after a quote, "=" or "(" so that
	// line comments are not read as hosts
	scriptURLRe  = regexp.MustCompile(`(?i)(?:(https?:)|['"=(]\s*)(//` + hostPattern + `)`)
	elementURLRe = regexp.MustCompile(`(?i)^(?:https?:)?//` + hostPattern)
)

// hostnames returns the sorted, deduplicated hostnames of every absolute
// URL in the script text and the element URLs.
func hostnames(d document) []string {
	seen := make(map[string]struct{})
	add := func(raw string) {
		if strings.HasPrefix(raw, "//") {
			raw = "https:" + raw
		}
		u, err := url.Parse(raw)
		if err != nil || u.Hostname() == "" {
			return
		}
		host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
		if strings.Contains(host, ".") {
			seen[host] = struct{}{}
		}
	}
	for _, s := range d.Scripts {
		for _, m := range scriptURLRe.FindAllStringSubmatch(s, -1) {
			add(m[1] + m[2])
		}
	}
	for _, raw := range d.URLs {
		if m := elementURLRe.FindString(strings.TrimSpace(raw)); m != "" {
			add(m)
		}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// registrableDomain returns the eTLD+1 of host, or host itself when it has
// none (IP addresses, bare public suffixes).
func registrableDomain(host string) string {
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}

// groupByDomain groups sorted hostnames by registrable domain.
func groupByDomain(hosts []string) map[string][]string {
	out := make(map[string][]string)
	for _, h := range hosts {
		d := registrableDomain(h)
		out[d] = append(out[d], h)
	}
	return out
}

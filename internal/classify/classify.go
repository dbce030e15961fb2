// Package classify sorts tags into marketing, analytics and other classes
// using a vocabulary of tag template types, name tokens and script markers.
package classify

import (
	"regexp"
	"strings"

	"evalgo.org/tagscope/models"
)

// Class is the broad purpose of a tag.
type Class string

const (
	Marketing Class = "marketing"
	Analytics Class = "analytics"
	Other     Class = "other"
)

// maxParamDepth bounds the parameter walk of IsUniversalAnalytics.
const maxParamDepth = 50

var (
	marketingTypes = map[string]bool{
		"awct":   true, // Google Ads conversion
		"sp":     true, // Google Ads remarketing
		"gclidw": true, // conversion linker
		"flc":    true, // Floodlight counter
		"fls":    true, // Floodlight sales
		"baut":   true, // Microsoft Ads UET
		"fbq":    true,
	}

	marketingNameTokens = []string{
		"facebook", "meta pixel", "fb pixel", "tiktok", "linkedin", "pinterest",
		"twitter", "snap", "criteo", "adroll", "doubleclick", "floodlight",
		"google ads", "adwords", "remarketing", "retargeting", "conversion",
		"bing ads", "taboola", "outbrain", "reddit pixel", "pixel",
	}

	marketingScriptMarkers = []string{
		"fbq(", "connect.facebook.net", "ttq.", "analytics.tiktok.com",
		"snap.licdn.com", "_linkedin_partner_id", "pintrk(", "twq(", "snaptr(",
		"static.ads-twitter.com", "googleadservices.com", "doubleclick.net",
		"criteo", "adroll", "bat.bing.com", "uetq",
	}

	analyticsTypes = map[string]bool{
		"googtag": true,
		"gaawc":   true,
		"gaawe":   true,
		"ua":      true,
		"ga":      true,
		"hjtc":    true,
	}

	analyticsNameTokens = []string{
		"analytics", "ga4", "gtag", "matomo", "piwik", "hotjar", "mixpanel",
		"amplitude", "segment", "heap", "clarity",
	}

	uaNameRe  = regexp.MustCompile(`(?i)universal\s*analytics|(^|[^a-z0-9])ua-`)
	uaValueRe = regexp.MustCompile(`UA-\d{4,}-\d+`)
)

// Of returns the class of a tag. Marketing wins over analytics.
func Of(t *models.Tag) Class {
	switch {
	case IsMarketing(t):
		return Marketing
	case IsAnalytics(t):
		return Analytics
	}
	return Other
}

// IsMarketing reports whether the tag belongs to an ad platform or
// remarketing pixel.
func IsMarketing(t *models.Tag) bool {
	if t == nil {
		return false
	}
	typ := strings.ToLower(strings.TrimSpace(t.Type))
	if marketingTypes[typ] || strings.HasPrefix(typ, "cvt_") {
		return true
	}
	if containsAny(strings.ToLower(t.Name), marketingNameTokens) {
		return true
	}
	if t.IsCustomHTML() {
		return containsAny(strings.ToLower(t.Script()), marketingScriptMarkers)
	}
	return false
}

// IsAnalytics reports whether the tag is a measurement tag.
func IsAnalytics(t *models.Tag) bool {
	if t == nil {
		return false
	}
	if analyticsTypes[strings.ToLower(strings.TrimSpace(t.Type))] {
		return true
	}
	return containsAny(strings.ToLower(t.Name), analyticsNameTokens)
}

// IsUniversalAnalytics reports whether the tag targets the retired
// Universal Analytics product.
func IsUniversalAnalytics(t *models.Tag) bool {
	if t == nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(t.Type)) {
	case "ua", "ga":
		return true
	}
	if uaNameRe.MatchString(t.Name) {
		return true
	}
	for _, p := range t.Parameters {
		if hasUAValue(p, 0) {
			return true
		}
	}
	return false
}

func hasUAValue(p models.Parameter, depth int) bool {
	if depth >= maxParamDepth {
		return false
	}
	if uaValueRe.MatchString(p.Value) {
		return true
	}
	for _, c := range p.List {
		if hasUAValue(c, depth+1) {
			return true
		}
	}
	for _, c := range p.Map {
		if hasUAValue(c, depth+1) {
			return true
		}
	}
	return false
}

func containsAny(s string, tokens []string) bool {
	if s == "" {
		return false
	}
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}

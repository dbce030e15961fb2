package triggers

import (
	"strings"
	"unicode"

	"evalgo.org/tagscope/internal/classify"
	"evalgo.org/tagscope/models"
)

// Timing is the page-load phase at which a trigger fires. Higher values
// fire later. Event-driven triggers have no page-load timing.
type Timing int

const (
	TimingNone Timing = iota
	TimingConsentInit
	TimingInit
	TimingPageview
	TimingDOMReady
	TimingWindowLoaded
)

var timingNames = map[Timing]string{
	TimingConsentInit:  "Consent Initialization",
	TimingInit:         "Initialization",
	TimingPageview:     "Page View",
	TimingDOMReady:     "DOM Ready",
	TimingWindowLoaded: "Window Loaded",
}

func (t Timing) String() string {
	if n, ok := timingNames[t]; ok {
		return n
	}
	return "event"
}

// normalizeType folds GTM trigger type spellings (PAGEVIEW, domReady,
// DOM_READY) into one upper-case form without separators.
func normalizeType(typ string) string {
	var b strings.Builder
	for _, r := range typ {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// TimingOf returns the page-load timing of a trigger type.
func TimingOf(typ string) Timing {
	switch normalizeType(typ) {
	case "CONSENTINIT":
		return TimingConsentInit
	case "INIT":
		return TimingInit
	case "PAGEVIEW":
		return TimingPageview
	case "DOMREADY":
		return TimingDOMReady
	case "WINDOWLOADED":
		return TimingWindowLoaded
	}
	return TimingNone
}

// BuiltInTiming returns the timing of a GTM built-in trigger ID.
func BuiltInTiming(id string) Timing {
	switch id {
	case models.BuiltInAllPagesTriggerID:
		return TimingPageview
	case models.BuiltInConsentInitTriggerID:
		return TimingConsentInit
	case models.BuiltInInitializationTriggerID:
		return TimingInit
	}
	return TimingNone
}

// PreferredTiming is the latest timing at which a tag of the given class
// still measures reliably.
func PreferredTiming(c classify.Class) Timing {
	switch c {
	case classify.Analytics:
		return TimingPageview
	case classify.Marketing:
		return TimingDOMReady
	}
	return TimingWindowLoaded
}

// IsHistoryChange reports whether the trigger type is the SPA virtual
// pageview trigger.
func IsHistoryChange(typ string) bool {
	return normalizeType(typ) == "HISTORYCHANGE"
}

// IsPageview reports whether the trigger type is PAGEVIEW.
func IsPageview(typ string) bool {
	return TimingOf(typ) == TimingPageview
}

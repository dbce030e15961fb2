package models

import (
	"strconv"
	"strings"
)

// Container represents a Google Tag Manager container export.
// It holds every tag, trigger, and variable of one tracking deployment.
//
// The analysis engine only ever reads a Container. Callers that share a
// Container between goroutines must treat it as an immutable snapshot.
//
// Example JSON representation (bare form):
//
//	{
//	  "tag": [{"tagId": "1", "name": "ga4_config", "type": "googtag", "firingTriggerId": ["2"]}],
//	  "trigger": [{"triggerId": "2", "name": "all_pages", "type": "PAGEVIEW"}],
//	  "variable": [{"variableId": "3", "name": "dlv_user_id", "type": "v"}]
//	}
//
// The GTM export envelope {"containerVersion": {...}} is unwrapped on decode.
type Container struct {
	// Tags are the actions fired when their triggers match
	Tags []Tag `json:"tag"`

	// Triggers are the conditions that fire tags
	Triggers []Trigger `json:"trigger"`

	// Variables are the named values resolved at runtime
	Variables []Variable `json:"variable"`

	// BuiltInVariables are the GTM-provided variables enabled in the container
	BuiltInVariables []BuiltInVariable `json:"builtInVariable,omitempty"`

	// DecodeWarnings lists entities that could not be decoded and were skipped
	DecodeWarnings []string `json:"-"`
}

// Tag represents a GTM tag.
type Tag struct {
	// TagID is the container-unique tag identifier
	TagID string `json:"tagId" validate:"required"`

	// Name is the human-readable tag name
	Name string `json:"name" validate:"required"`

	// Type is the tag template identifier (ua, googtag, html, awct, cvt_...)
	Type string `json:"type" validate:"required"`

	// Paused is true when the tag is disabled in the workspace
	Paused bool `json:"paused,omitempty"`

	// Parameters are the tag template fields
	Parameters []Parameter `json:"parameter,omitempty"`

	// FiringTriggerIDs reference the triggers that fire the tag
	FiringTriggerIDs []string `json:"firingTriggerId,omitempty"`

	// BlockingTriggerIDs reference the triggers that block the tag
	BlockingTriggerIDs []string `json:"blockingTriggerId,omitempty"`

	// HTML is the Custom-HTML body when provided outside the parameters
	HTML string `json:"html,omitempty"`

	// ConsentSettings is the tag-level Consent Mode configuration
	ConsentSettings *ConsentSettings `json:"consentSettings,omitempty"`
}

// ConsentSettings is the consent block GTM attaches to a tag.
type ConsentSettings struct {
	// Status is NOT_SET, NOT_NEEDED or NEEDED
	Status string `json:"consentStatus,omitempty"`

	// ConsentType lists the required consent categories (a LIST parameter)
	ConsentType *Parameter `json:"consentType,omitempty"`
}

// Trigger represents a GTM trigger.
type Trigger struct {
	// TriggerID is the container-unique trigger identifier
	TriggerID string `json:"triggerId" validate:"required"`

	// Name is the human-readable trigger name
	Name string `json:"name" validate:"required"`

	// Type is the trigger event type (PAGEVIEW, HISTORY_CHANGE, CLICK, ...)
	Type string `json:"type" validate:"required"`

	// Paused is true when the trigger is disabled
	Paused bool `json:"paused,omitempty"`

	// Filters are the page-level conditions of the trigger
	Filters []Condition `json:"filter,omitempty"`

	// CustomEventFilters are the event name conditions of CUSTOM_EVENT triggers
	CustomEventFilters []Condition `json:"customEventFilter,omitempty"`

	// AutoEventFilters are the element conditions of click/form triggers
	AutoEventFilters []Condition `json:"autoEventFilter,omitempty"`

	// Parameters are the remaining trigger fields (timer interval, trigger group members, ...)
	Parameters []Parameter `json:"parameter,omitempty"`
}

// Condition is a single trigger filter such as "{{Page Path}} equals /checkout".
type Condition struct {
	// Type is the comparison operator (EQUALS, CONTAINS, MATCH_REGEX, ...)
	Type string `json:"type"`

	// Parameters hold the operands, conventionally keyed arg0 and arg1
	Parameters []Parameter `json:"parameter,omitempty"`
}

// Variable represents a user-defined GTM variable.
type Variable struct {
	// VariableID is the container-unique variable identifier
	VariableID string `json:"variableId" validate:"required"`

	// Name is the variable name referenced as {{Name}}
	Name string `json:"name" validate:"required"`

	// Type is the variable template (v, smm, remm, jsm, d, c, ...)
	Type string `json:"type" validate:"required"`

	// Parameters are the variable template fields
	Parameters []Parameter `json:"parameter,omitempty"`
}

// BuiltInVariable is a GTM-provided variable such as "Page URL".
type BuiltInVariable struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// EntityKind discriminates the three GTM entity collections.
// GTM numbers tags, triggers and variables independently, so an ID is only
// unique together with its kind.
type EntityKind string

const (
	KindTag      EntityKind = "tag"
	KindTrigger  EntityKind = "trigger"
	KindVariable EntityKind = "variable"
)

// Built-in trigger IDs that never appear in the trigger array.
const (
	BuiltInAllPagesTriggerID       = "2147479553"
	BuiltInConsentInitTriggerID    = "2147479572"
	BuiltInInitializationTriggerID = "2147479573"
)

// IsBuiltInTriggerID reports whether id references a GTM built-in trigger.
func IsBuiltInTriggerID(id string) bool {
	switch id {
	case BuiltInAllPagesTriggerID, BuiltInConsentInitTriggerID, BuiltInInitializationTriggerID:
		return true
	}
	return false
}

// EntityID returns the tag ID, or the synthetic "#<index>" ID when the
// export omitted it.
func (t *Tag) EntityID(index int) string {
	return entityID(t.TagID, index)
}

// EntityID returns the trigger ID or its synthetic fallback.
func (t *Trigger) EntityID(index int) string {
	return entityID(t.TriggerID, index)
}

// EntityID returns the variable ID or its synthetic fallback.
func (v *Variable) EntityID(index int) string {
	return entityID(v.VariableID, index)
}

func entityID(id string, index int) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return "#" + strconv.Itoa(index)
}

// IsCustomHTML reports whether the tag is a Custom-HTML tag.
func (t *Tag) IsCustomHTML() bool {
	return strings.EqualFold(t.Type, "html")
}

// Script returns the Custom-HTML body of the tag, preferring the explicit
// html field over the html parameter.
func (t *Tag) Script() string {
	if t.HTML != "" {
		return t.HTML
	}
	if p, ok := FindParameter(t.Parameters, "html"); ok {
		return p.Value
	}
	return ""
}

// Conditions returns every filter of the trigger in a fixed order:
// page filters, custom event filters, then auto event filters.
func (t *Trigger) Conditions() []Condition {
	all := make([]Condition, 0, len(t.Filters)+len(t.CustomEventFilters)+len(t.AutoEventFilters))
	all = append(all, t.Filters...)
	all = append(all, t.CustomEventFilters...)
	all = append(all, t.AutoEventFilters...)
	return all
}

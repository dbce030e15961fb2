package models

import (
	"strings"
)

// Parameter types used by GTM's recursive parameter encoding.
const (
	ParamTemplate         = "TEMPLATE"
	ParamBoolean          = "BOOLEAN"
	ParamInteger          = "INTEGER"
	ParamList             = "LIST"
	ParamMap              = "MAP"
	ParamTagReference     = "TAG_REFERENCE"
	ParamTriggerReference = "TRIGGER_REFERENCE"
)

// Parameter is one node of GTM's recursive parameter tree.
//
// Scalar parameters carry Value; LIST parameters carry List; MAP parameters
// carry Map, whose entries are keyed parameters. Any scalar Value may
// contain {{Name}} placeholders.
type Parameter struct {
	// Type discriminates the variant (TEMPLATE, BOOLEAN, LIST, MAP, ...)
	Type string `json:"type,omitempty"`

	// Key names the parameter inside its parent
	Key string `json:"key,omitempty"`

	// Value is the scalar value (always a string after decoding)
	Value string `json:"value,omitempty"`

	// List holds the children of a LIST parameter
	List []Parameter `json:"list,omitempty"`

	// Map holds the keyed children of a MAP parameter
	Map []Parameter `json:"map,omitempty"`
}

// IsScalar reports whether the parameter has neither list nor map children.
func (p Parameter) IsScalar() bool {
	return len(p.List) == 0 && len(p.Map) == 0
}

// Bool interprets the scalar value as a GTM boolean. The second result is
// false when the value is not a recognizable boolean.
func (p Parameter) Bool() (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(p.Value)) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	}
	return false, false
}

// Get returns the child of a MAP parameter with the given key.
func (p Parameter) Get(key string) (Parameter, bool) {
	return FindParameter(p.Map, key)
}

// FindParameter returns the first parameter with the given key.
// Missing keys yield the zero Parameter and false; it never panics.
func FindParameter(params []Parameter, key string) (Parameter, bool) {
	for _, p := range params {
		if p.Key == key {
			return p, true
		}
	}
	return Parameter{}, false
}

// ParameterValue returns the scalar value of the parameter with the given key.
func ParameterValue(params []Parameter, key string) (string, bool) {
	p, ok := FindParameter(params, key)
	if !ok {
		return "", false
	}
	return p.Value, true
}

// HasParameter reports whether a parameter with the given key exists.
func HasParameter(params []Parameter, key string) bool {
	_, ok := FindParameter(params, key)
	return ok
}

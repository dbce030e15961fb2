package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// A field that cannot be understood decodes as absent. Only an entity that
// is not a JSON object is skipped, and it is recorded in
// Container.DecodeWarnings.

// UnmarshalJSON decodes a bare container or a GTM export envelope.
func (c *Container) UnmarshalJSON(data []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return fmt.Errorf("container must be a JSON object: %w", err)
	}
	if inner, ok := top["containerVersion"]; ok {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(inner, &nested); err == nil {
			top = nested
		}
	}

	*c = Container{}
	c.Tags = decodeEntities[Tag](top["tag"], "tag", &c.DecodeWarnings)
	c.Triggers = decodeEntities[Trigger](top["trigger"], "trigger", &c.DecodeWarnings)
	c.Variables = decodeEntities[Variable](top["variable"], "variable", &c.DecodeWarnings)
	c.BuiltInVariables = decodeEntities[BuiltInVariable](top["builtInVariable"], "builtInVariable", &c.DecodeWarnings)
	return nil
}

func decodeEntities[T any](raw json.RawMessage, kind string, warnings *[]string) []T {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] != '[' {
		*warnings = append(*warnings, fmt.Sprintf("%s: expected an array", kind))
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		*warnings = append(*warnings, fmt.Sprintf("%s: %v", kind, err))
		return nil
	}
	out := make([]T, 0, len(items))
	for i, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			*warnings = append(*warnings, fmt.Sprintf("%s[%d]: %v", kind, i, err))
			continue
		}
		out = append(out, v)
	}
	return out
}

// UnmarshalJSON decodes a tag, tolerating loosely typed fields.
func (t *Tag) UnmarshalJSON(data []byte) error {
	var w struct {
		TagID           flexString       `json:"tagId"`
		Name            flexString       `json:"name"`
		Type            flexString       `json:"type"`
		Paused          flexBool         `json:"paused"`
		Parameters      parameterList    `json:"parameter"`
		Firing          flexStrings      `json:"firingTriggerId"`
		Blocking        flexStrings      `json:"blockingTriggerId"`
		HTML            flexString       `json:"html"`
		ConsentSettings *ConsentSettings `json:"consentSettings"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode tag: %w", err)
	}
	*t = Tag{
		TagID:              string(w.TagID),
		Name:               string(w.Name),
		Type:               string(w.Type),
		Paused:             bool(w.Paused),
		Parameters:         w.Parameters,
		FiringTriggerIDs:   w.Firing,
		BlockingTriggerIDs: w.Blocking,
		HTML:               string(w.HTML),
		ConsentSettings:    w.ConsentSettings,
	}
	return nil
}

// UnmarshalJSON decodes a consent block; anything but an object is empty.
func (cs *ConsentSettings) UnmarshalJSON(data []byte) error {
	*cs = ConsentSettings{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil
	}
	var w struct {
		Status      flexString      `json:"consentStatus"`
		ConsentType json.RawMessage `json:"consentType"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return nil
	}
	cs.Status = string(w.Status)
	if len(bytes.TrimSpace(w.ConsentType)) > 0 && string(bytes.TrimSpace(w.ConsentType)) != "null" {
		p := decodeParameter(w.ConsentType)
		cs.ConsentType = &p
	}
	return nil
}

// UnmarshalJSON decodes a trigger, tolerating loosely typed fields.
func (t *Trigger) UnmarshalJSON(data []byte) error {
	var w struct {
		TriggerID   flexString    `json:"triggerId"`
		Name        flexString    `json:"name"`
		Type        flexString    `json:"type"`
		Paused      flexBool      `json:"paused"`
		Filter      conditionList `json:"filter"`
		CustomEvent conditionList `json:"customEventFilter"`
		AutoEvent   conditionList `json:"autoEventFilter"`
		Parameters  parameterList `json:"parameter"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode trigger: %w", err)
	}
	*t = Trigger{
		TriggerID:          string(w.TriggerID),
		Name:               string(w.Name),
		Type:               string(w.Type),
		Paused:             bool(w.Paused),
		Filters:            w.Filter,
		CustomEventFilters: w.CustomEvent,
		AutoEventFilters:   w.AutoEvent,
		Parameters:         w.Parameters,
	}
	return nil
}

// UnmarshalJSON decodes a variable, tolerating loosely typed fields.
func (v *Variable) UnmarshalJSON(data []byte) error {
	var w struct {
		VariableID flexString    `json:"variableId"`
		Name       flexString    `json:"name"`
		Type       flexString    `json:"type"`
		Parameters parameterList `json:"parameter"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode variable: %w", err)
	}
	*v = Variable{
		VariableID: string(w.VariableID),
		Name:       string(w.Name),
		Type:       string(w.Type),
		Parameters: w.Parameters,
	}
	return nil
}

// UnmarshalJSON decodes a built-in variable entry.
func (b *BuiltInVariable) UnmarshalJSON(data []byte) error {
	var w struct {
		Name flexString `json:"name"`
		Type flexString `json:"type"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode built-in variable: %w", err)
	}
	*b = BuiltInVariable{Name: string(w.Name), Type: string(w.Type)}
	return nil
}

// UnmarshalJSON decodes a trigger condition.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var w struct {
		Type       flexString    `json:"type"`
		Parameters parameterList `json:"parameter"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode condition: %w", err)
	}
	*c = Condition{Type: string(w.Type), Parameters: w.Parameters}
	return nil
}

// UnmarshalJSON decodes one node of the recursive parameter encoding.
func (p *Parameter) UnmarshalJSON(data []byte) error {
	*p = decodeParameter(data)
	return nil
}

type conditionList []Condition

func (l *conditionList) UnmarshalJSON(data []byte) error {
	*l = nil
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	for _, r := range raw {
		var c Condition
		if err := json.Unmarshal(r, &c); err != nil {
			continue
		}
		*l = append(*l, c)
	}
	return nil
}

type parameterList []Parameter

func (l *parameterList) UnmarshalJSON(data []byte) error {
	*l = decodeParameters(data)
	return nil
}

func decodeParameters(data []byte) []Parameter {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil
		}
		out := make([]Parameter, 0, len(raw))
		for _, r := range raw {
			out = append(out, decodeParameter(r))
		}
		return out
	case '{':
		return []Parameter{decodeParameter(data)}
	}
	return nil
}

func decodeParameter(data []byte) Parameter {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		// bare scalar inside a list
		return Parameter{Type: ParamTemplate, Value: scalarString(data)}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Parameter{}
	}
	if !looksLikeParameter(fields) {
		return objectParameter("", fields)
	}
	p := Parameter{
		Type: scalarString(fields["type"]),
		Key:  scalarString(fields["key"]),
		List: decodeParameters(fields["list"]),
		Map:  decodeParameters(fields["map"]),
	}
	applyValue(&p, fields["value"])
	return p
}

func looksLikeParameter(fields map[string]json.RawMessage) bool {
	for _, k := range []string{"type", "key", "value", "list", "map"} {
		if _, ok := fields[k]; ok {
			return true
		}
	}
	return false
}

// objectParameter turns an arbitrary JSON object into a MAP parameter with
// one child per field, in key order.
func objectParameter(key string, fields map[string]json.RawMessage) Parameter {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	p := Parameter{Type: ParamMap, Key: key}
	for _, k := range keys {
		child := Parameter{Key: k}
		applyValue(&child, fields[k])
		if child.Type == "" {
			child.Type = ParamTemplate
		}
		p.Map = append(p.Map, child)
	}
	return p
}

func applyValue(p *Parameter, raw json.RawMessage) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return
	}
	switch raw[0] {
	case '[':
		p.List = append(p.List, decodeParameters(raw)...)
		if p.Type == "" {
			p.Type = ParamList
		}
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return
		}
		if looksLikeParameter(fields) {
			p.Map = append(p.Map, decodeParameter(raw))
		} else {
			p.Map = append(p.Map, objectParameter("", fields).Map...)
		}
		if p.Type == "" {
			p.Type = ParamMap
		}
	default:
		p.Value = scalarString(raw)
	}
}

type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	*s = flexString(scalarString(data))
	return nil
}

type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	v, _ := Parameter{Value: scalarString(data)}.Bool()
	*b = flexBool(v)
	return nil
}

type flexStrings []string

func (s *flexStrings) UnmarshalJSON(data []byte) error {
	*s = nil
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	if data[0] != '[' {
		if v := scalarString(data); v != "" {
			*s = flexStrings{v}
		}
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	for _, r := range raw {
		if v := scalarString(r); v != "" {
			*s = append(*s, v)
		}
	}
	return nil
}

// scalarString renders a JSON scalar as a string. Objects, arrays and null
// yield "".
func scalarString(data []byte) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ""
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return ""
		}
		return s
	case '{', '[', 'n':
		return ""
	}
	return string(data)
}

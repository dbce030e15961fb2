package usage

import (
	"fmt"
	"strings"

	"evalgo.org/tagscope/models"
)

// standardBuiltIns are the GTM built-in variable names assumed enabled when
// the export carries no builtInVariable list.
var standardBuiltIns = []string{
	"Event", "Container ID", "Container Version", "Debug Mode", "Random Number",
	"HTML ID", "Environment Name",
	"Page URL", "Page Hostname", "Page Path", "Referrer",
	"Click Element", "Click Classes", "Click ID", "Click Target", "Click URL", "Click Text",
	"Form Element", "Form Classes", "Form ID", "Form Target", "Form URL", "Form Text",
	"Error Message", "Error URL", "Error Line",
	"New History Fragment", "Old History Fragment", "New History State", "Old History State", "History Source",
	"Video Provider", "Video Status", "Video URL", "Video Title", "Video Duration", "Video Current Time", "Video Percent", "Video Visible",
	"Scroll Depth Threshold", "Scroll Depth Units", "Scroll Direction",
	"Percent Visible", "On-Screen Duration",
}

// Resolver answers whether placeholder names and trigger IDs exist.
type Resolver struct {
	names    map[string]struct{}
	triggers map[string]struct{}
}

// NewResolver indexes the names of variables, built-in variables and
// triggers, and the IDs of triggers.
func NewResolver(c *models.Container) *Resolver {
	r := &Resolver{
		names:    make(map[string]struct{}),
		triggers: make(map[string]struct{}),
	}
	if c == nil {
		return r
	}
	for _, v := range c.Variables {
		r.addName(v.Name)
	}
	if len(c.BuiltInVariables) == 0 {
		for _, n := range standardBuiltIns {
			r.addName(n)
		}
	} else {
		r.addName("Event")
		for _, b := range c.BuiltInVariables {
			r.addName(b.Name)
		}
	}
	for i, t := range c.Triggers {
		r.addName(t.Name)
		r.triggers[t.EntityID(i)] = struct{}{}
	}
	return r
}

func (r *Resolver) addName(n string) {
	if n = strings.TrimSpace(n); n != "" {
		r.names[n] = struct{}{}
	}
}

// ResolvesName reports whether {{name}} refers to a known entity.
func (r *Resolver) ResolvesName(name string) bool {
	_, ok := r.names[strings.TrimSpace(name)]
	return ok
}

// ResolvesTrigger reports whether id is a trigger of the container or a
// GTM built-in trigger.
func (r *Resolver) ResolvesTrigger(id string) bool {
	id = strings.TrimSpace(id)
	if models.IsBuiltInTriggerID(id) {
		return true
	}
	_, ok := r.triggers[id]
	return ok
}

// DanglingIssues reports tag trigger references to unknown triggers
// (major) and placeholders that resolve to no variable, built-in or
// trigger (minor).
func DanglingIssues(c *models.Container, g *Graph) []models.Issue {
	if c == nil {
		return nil
	}
	r := NewResolver(c)
	var issues []models.Issue

	// entities sharing a duplicate ID share one References entry
	reported := make(map[string]bool)
	names := func(kind models.EntityKind, id, name string) {
		key := models.EntityKey(kind, id)
		if reported[key] {
			return
		}
		reported[key] = true
		issues = append(issues, danglingNames(g, r, kind, id, name)...)
	}

	for i := range c.Tags {
		t := &c.Tags[i]
		id := t.EntityID(i)
		seen := make(map[string]bool)
		refs := make([]string, 0, len(t.FiringTriggerIDs)+len(t.BlockingTriggerIDs))
		refs = append(refs, t.FiringTriggerIDs...)
		refs = append(refs, t.BlockingTriggerIDs...)
		for _, ref := range refs {
			ref = strings.TrimSpace(ref)
			if ref == "" || seen[ref] || r.ResolvesTrigger(ref) {
				continue
			}
			seen[ref] = true
			issues = append(issues, models.Issue{
				EntityKind: models.KindTag,
				EntityID:   id,
				EntityName: t.Name,
				Categories: []string{models.CategoryDanglingTrigger},
				Severity:   models.SeverityMajor,
				Reason:     fmt.Sprintf("references trigger %s, which does not exist", ref),
				Suggestion: "Remove the reference or restore the missing trigger.",
			})
		}
		names(models.KindTag, id, t.Name)
	}

	for i := range c.Triggers {
		t := &c.Triggers[i]
		names(models.KindTrigger, t.EntityID(i), t.Name)
	}
	for i := range c.Variables {
		v := &c.Variables[i]
		names(models.KindVariable, v.EntityID(i), v.Name)
	}
	return issues
}

func danglingNames(g *Graph, r *Resolver, kind models.EntityKind, id, name string) []models.Issue {
	if g == nil {
		return nil
	}
	var issues []models.Issue
	for _, ref := range g.References[models.EntityKey(kind, id)] {
		if r.ResolvesName(ref) {
			continue
		}
		issues = append(issues, models.Issue{
			EntityKind: kind,
			EntityID:   id,
			EntityName: name,
			Categories: []string{models.CategoryDanglingVar},
			Severity:   models.SeverityMinor,
			Reason:     fmt.Sprintf("references {{%s}}, which matches no variable", ref),
			Suggestion: "Create the variable, enable the built-in variable, or fix the name.",
		})
	}
	return issues
}

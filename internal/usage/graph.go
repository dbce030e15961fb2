// Package usage builds the reference graph of a GTM container.
//
// The graph records every {{Name}} placeholder found in any parameter of
// any tag, trigger or variable, and every trigger ID cited by a tag's
// firing or blocking list or by a TRIGGER_REFERENCE parameter. Analyzers
// use it to detect unused variables and triggers, and to report references
// that resolve to nothing.
//
// Detection is a text scan. A name that only appears inside a string
// assembled at runtime by Custom JavaScript is invisible to it.
package usage

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"evalgo.org/tagscope/models"
)

// DefaultMaxDepth bounds parameter recursion when no limit is configured.
const DefaultMaxDepth = 50

var placeholderRe = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// Graph is the set of names and trigger IDs referenced in a container.
type Graph struct {
	// Names are the trimmed inner texts of all {{...}} placeholders
	Names map[string]struct{}

	// TriggerIDs are the trigger IDs cited anywhere in the container
	TriggerIDs map[string]struct{}

	// References maps an entity key ("<kind>:<id>") to the sorted names
	// its own parameters reference
	References map[string][]string
}

// Build scans the container. maxDepth <= 0 means DefaultMaxDepth.
func Build(c *models.Container, maxDepth int) *Graph {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	g := &Graph{
		Names:      make(map[string]struct{}),
		TriggerIDs: make(map[string]struct{}),
		References: make(map[string][]string),
	}
	if c == nil {
		return g
	}

	for i := range c.Tags {
		t := &c.Tags[i]
		s := g.scanner(models.KindTag, t.EntityID(i), maxDepth)
		s.params(t.Parameters)
		s.text(t.HTML)
		if t.ConsentSettings != nil && t.ConsentSettings.ConsentType != nil {
			s.param(*t.ConsentSettings.ConsentType, 0)
		}
		for _, id := range t.FiringTriggerIDs {
			g.addTriggerID(id)
		}
		for _, id := range t.BlockingTriggerIDs {
			g.addTriggerID(id)
		}
		s.finish()
	}

	for i := range c.Triggers {
		t := &c.Triggers[i]
		s := g.scanner(models.KindTrigger, t.EntityID(i), maxDepth)
		for _, cond := range t.Conditions() {
			s.params(cond.Parameters)
		}
		s.params(t.Parameters)
		s.finish()
	}

	for i := range c.Variables {
		v := &c.Variables[i]
		s := g.scanner(models.KindVariable, v.EntityID(i), maxDepth)
		s.params(v.Parameters)
		s.finish()
	}

	return g
}

// HasName reports whether name is referenced as {{name}} anywhere.
func (g *Graph) HasName(name string) bool {
	_, ok := g.Names[strings.TrimSpace(name)]
	return ok
}

// HasTriggerID reports whether the trigger ID is cited anywhere.
func (g *Graph) HasTriggerID(id string) bool {
	_, ok := g.TriggerIDs[strings.TrimSpace(id)]
	return ok
}

// SortedNames returns the referenced names in lexical order.
func (g *Graph) SortedNames() []string {
	return sortedKeys(g.Names)
}

// SortedTriggerIDs returns the referenced trigger IDs in numeric-aware order.
func (g *Graph) SortedTriggerIDs() []string {
	ids := sortedKeys(g.TriggerIDs)
	sort.SliceStable(ids, func(a, b int) bool { return models.CompareIDs(ids[a], ids[b]) < 0 })
	return ids
}

// MarshalJSON renders the graph with sorted arrays.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Names      []string `json:"referenced_names"`
		TriggerIDs []string `json:"referenced_trigger_ids"`
	}{
		Names:      nonNil(g.SortedNames()),
		TriggerIDs: nonNil(g.SortedTriggerIDs()),
	})
}

// UnmarshalJSON restores a graph rendered by MarshalJSON. References are
// not part of the rendering and stay empty.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var raw struct {
		Names      []string `json:"referenced_names"`
		TriggerIDs []string `json:"referenced_trigger_ids"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	g.Names = make(map[string]struct{}, len(raw.Names))
	for _, n := range raw.Names {
		g.Names[n] = struct{}{}
	}
	g.TriggerIDs = make(map[string]struct{}, len(raw.TriggerIDs))
	for _, id := range raw.TriggerIDs {
		g.TriggerIDs[id] = struct{}{}
	}
	g.References = make(map[string][]string)
	return nil
}

// ExtractPlaceholders returns the trimmed names of all {{...}} placeholders
// in s, in order of appearance. Empty placeholders are dropped.
func ExtractPlaceholders(s string) []string {
	if !strings.Contains(s, "{{") {
		return nil
	}
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(s, -1) {
		if name := strings.TrimSpace(m[1]); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func (g *Graph) addTriggerID(id string) {
	if id = strings.TrimSpace(id); id != "" {
		g.TriggerIDs[id] = struct{}{}
	}
}

type scanner struct {
	g        *Graph
	key      string
	maxDepth int
	names    map[string]struct{}
}

func (g *Graph) scanner(kind models.EntityKind, id string, maxDepth int) *scanner {
	return &scanner{
		g:        g,
		key:      models.EntityKey(kind, id),
		maxDepth: maxDepth,
		names:    make(map[string]struct{}),
	}
}

func (s *scanner) params(params []models.Parameter) {
	for _, p := range params {
		s.param(p, 0)
	}
}

func (s *scanner) param(p models.Parameter, depth int) {
	if depth >= s.maxDepth {
		return
	}
	if p.Type == models.ParamTriggerReference {
		s.g.addTriggerID(p.Value)
	}
	s.text(p.Value)
	for _, child := range p.List {
		s.param(child, depth+1)
	}
	for _, child := range p.Map {
		s.param(child, depth+1)
	}
}

func (s *scanner) text(v string) {
	for _, name := range ExtractPlaceholders(v) {
		s.g.Names[name] = struct{}{}
		s.names[name] = struct{}{}
	}
}

func (s *scanner) finish() {
	if len(s.names) == 0 {
		return
	}
	// duplicate IDs share one entry
	for _, name := range s.g.References[s.key] {
		s.names[name] = struct{}{}
	}
	s.g.References[s.key] = sortedKeys(s.names)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

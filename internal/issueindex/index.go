// Package issueindex builds the lookup maps the presentation layer uses to
// filter entities by issue category and to list the issues of one entity.
package issueindex

import (
	"sort"

	"evalgo.org/tagscope/models"
)

// Index maps categories to entity keys and entity keys to issues. Entity
// keys have the form "<kind>:<id>".
type Index struct {
	ByCategory map[string][]string       `json:"byCategory"`
	ByID       map[string][]models.Issue `json:"byId"`

	members map[string]map[string]bool
}

// Build indexes a merged issue list. Issue order inside ByID follows the
// input order; entity keys inside ByCategory are sorted.
func Build(issues []models.Issue) *Index {
	idx := &Index{
		ByCategory: make(map[string][]string),
		ByID:       make(map[string][]models.Issue),
		members:    make(map[string]map[string]bool),
	}
	for _, i := range issues {
		key := i.Key()
		idx.ByID[key] = append(idx.ByID[key], i)
		for _, c := range i.Categories {
			set, ok := idx.members[c]
			if !ok {
				set = make(map[string]bool)
				idx.members[c] = set
			}
			if !set[key] {
				set[key] = true
				idx.ByCategory[c] = append(idx.ByCategory[c], key)
			}
		}
	}
	for c := range idx.ByCategory {
		keys := idx.ByCategory[c]
		sort.SliceStable(keys, func(a, b int) bool { return lessKey(keys[a], keys[b]) })
	}
	return idx
}

// Has reports whether the entity has at least one issue of the category.
func (idx *Index) Has(category, key string) bool {
	if idx == nil {
		return false
	}
	if idx.members == nil {
		idx.rebuildMembers()
	}
	return idx.members[category][key]
}

// IssuesFor returns the issues of one entity.
func (idx *Index) IssuesFor(key string) []models.Issue {
	if idx == nil {
		return nil
	}
	return idx.ByID[key]
}

// Categories returns the indexed categories in sorted order.
func (idx *Index) Categories() []string {
	if idx == nil {
		return nil
	}
	out := make([]string, 0, len(idx.ByCategory))
	for c := range idx.ByCategory {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// rebuildMembers restores the membership sets of an index decoded from
// JSON.
func (idx *Index) rebuildMembers() {
	idx.members = make(map[string]map[string]bool, len(idx.ByCategory))
	for c, keys := range idx.ByCategory {
		set := make(map[string]bool, len(keys))
		for _, k := range keys {
			set[k] = true
		}
		idx.members[c] = set
	}
}

func lessKey(a, b string) bool {
	ka, ia := split(a)
	kb, ib := split(b)
	if ka != kb {
		return ka < kb
	}
	return models.CompareIDs(ia, ib) < 0
}

func split(key string) (string, string) {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i], key[i+1:]
		}
	}
	return "", key
}

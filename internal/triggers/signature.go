package triggers

import (
	"sort"
	"strconv"
	"strings"

	"evalgo.org/tagscope/models"
)

const maxParamDepth = 50

// Signature is the canonical form of a trigger's firing behavior: its type,
// its filters of every kind and its parameters. Names and IDs are ignored,
// and condition order does not matter.
func Signature(t *models.Trigger) string {
	var b strings.Builder
	b.WriteString(normalizeType(t.Type))
	writeConditions(&b, "filter", t.Filters)
	writeConditions(&b, "custom", t.CustomEventFilters)
	writeConditions(&b, "auto", t.AutoEventFilters)
	b.WriteString("|params:")
	b.WriteString(canonicalParams(t.Parameters, 0))
	return b.String()
}

func writeConditions(b *strings.Builder, label string, conds []models.Condition) {
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		parts = append(parts, strings.ToUpper(strings.TrimSpace(c.Type))+"("+canonicalParams(c.Parameters, 0)+")")
	}
	sort.Strings(parts)
	b.WriteString("|")
	b.WriteString(label)
	b.WriteString(":")
	b.WriteString(strings.Join(parts, ";"))
}

// canonicalParams renders keyed parameters sorted by key; list order is
// significant and kept.
func canonicalParams(params []models.Parameter, depth int) string {
	if depth >= maxParamDepth || len(params) == 0 {
		return ""
	}
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, canonicalParam(p, depth))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func canonicalParam(p models.Parameter, depth int) string {
	var b strings.Builder
	b.WriteString(p.Key)
	b.WriteString("=")
	b.WriteString(strings.ToUpper(p.Type))
	b.WriteString(":")
	b.WriteString(strconv.Quote(p.Value))
	if len(p.List) > 0 && depth+1 < maxParamDepth {
		b.WriteString("[")
		for i, c := range p.List {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(canonicalParam(c, depth+1))
		}
		b.WriteString("]")
	}
	if len(p.Map) > 0 {
		b.WriteString("{")
		b.WriteString(canonicalParams(p.Map, depth+1))
		b.WriteString("}")
	}
	return b.String()
}

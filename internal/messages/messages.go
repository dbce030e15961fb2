// Package messages holds the presentation texts attached to analyzer
// results, keyed by analyzer and status.
package messages

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"evalgo.org/tagscope/models"
)

// Analyzer keys of the catalog.
const (
	Quality   = "quality"
	Tags      = "tags"
	Consent   = "consent"
	Triggers  = "triggers"
	Variables = "variables"
	HTML      = "html"
)

// Text is one catalog entry.
type Text struct {
	Title   string `yaml:"title"`
	Summary string `yaml:"summary"`
	CTA     string `yaml:"cta"`
}

// Catalog maps analyzer and status to texts.
type Catalog map[string]map[models.Status]Text

//go:embed messages.yaml
var catalogYAML []byte

var (
	defaultOnce    sync.Once
	defaultCatalog Catalog
)

// Default returns the built-in catalog.
func Default() Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(catalogYAML)
		if err != nil {
			panic(fmt.Sprintf("messages: embedded catalog: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Parse decodes a YAML catalog.
func Parse(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse message catalog: %w", err)
	}
	return c, nil
}

// Message builds the envelope for an analyzer status. Unknown entries get
// the status as title so the envelope is never empty.
func (c Catalog) Message(analyzer string, status models.Status) models.Message {
	t, ok := c[analyzer][status]
	if !ok {
		return models.Message{Status: status, Title: string(status)}
	}
	return models.Message{Status: status, Title: t.Title, Summary: t.Summary, CTA: t.CTA}
}

// For builds an envelope from the default catalog.
func For(analyzer string, status models.Status) models.Message {
	return Default().Message(analyzer, status)
}

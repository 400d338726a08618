// Package search indexes classification labels with Bleve so clients can
// find the slug for an activity, group or segment by typing part of its name.
package search

import (
	"github.com/gabriellymonarca/Ecotrack/internal/normalize"
)

// LabelDocument is one classification label in the index.
type LabelDocument struct {
	ID     string `json:"id"`
	Sector string `json:"sector"`
	Kind   string `json:"kind"`
	Label  string `json:"label"`
	Slug   string `json:"slug"`
}

// NewLabelDocument builds the indexed form of a lookup label.
// The id is "<sector>:<kind>:<slug>", so accent-only variants share a document.
func NewLabelDocument(sector, kind, label string) *LabelDocument {
	slug := normalize.Slugify(label)
	return &LabelDocument{
		ID:     sector + ":" + kind + ":" + slug,
		Sector: sector,
		Kind:   kind,
		Label:  label,
		Slug:   slug,
	}
}

// ToMap converts the document to the lowercase field names of the mapping.
func (d *LabelDocument) ToMap() map[string]any {
	return map[string]any{
		"id":     d.ID,
		"sector": d.Sector,
		"kind":   d.Kind,
		"label":  d.Label,
		"slug":   d.Slug,
	}
}

package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/char/asciifolding"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
)

// labelAnalyzer folds accents before tokenizing, so "servico" finds "Serviços".
const labelAnalyzer = "label_folded"

// buildIndexMapping creates the Bleve mapping for label documents.
func buildIndexMapping() (mapping.IndexMapping, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(labelAnalyzer, map[string]any{
		"type":          custom.Name,
		"char_filters":  []string{asciifolding.Name},
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, err
	}
	indexMapping.DefaultAnalyzer = labelAnalyzer

	docMapping := bleve.NewDocumentMapping()

	labelField := bleve.NewTextFieldMapping()
	labelField.Analyzer = labelAnalyzer
	labelField.Store = true
	labelField.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("label", labelField)

	// Keyword fields: exact match and facets.
	for _, name := range []string{"id", "sector", "kind", "slug"} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = keyword.Name
		f.Store = true
		docMapping.AddFieldMappingsAt(name, f)
	}

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping, nil
}

package services

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var defaultTaxonomyYAML []byte

// Taxonomy maps scraped category labels onto principal categories and
// knows the display order of the principal categories.
// It is read-only after construction and safe for concurrent use.
type Taxonomy struct {
	mapping map[string]string
	order   []string
	rank    map[string]int
}

type taxonomyFile struct {
	Version int               `yaml:"version"`
	Order   []string          `yaml:"order"`
	Mapping map[string]string `yaml:"mapping"`
}

// NewTaxonomy builds a Taxonomy from a mapping table and a display order.
func NewTaxonomy(mapping map[string]string, order []string) *Taxonomy {
	t := &Taxonomy{
		mapping: make(map[string]string, len(mapping)),
		order:   make([]string, 0, len(order)),
		rank:    make(map[string]int, len(order)),
	}
	for k, v := range mapping {
		t.mapping[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	for _, cat := range order {
		cat = strings.TrimSpace(cat)
		if _, dup := t.rank[cat]; dup || cat == "" {
			continue
		}
		t.rank[cat] = len(t.order)
		t.order = append(t.order, cat)
	}
	return t
}

// DefaultTaxonomy returns the taxonomy embedded in the binary.
func DefaultTaxonomy() *Taxonomy {
	t, err := ParseTaxonomy(defaultTaxonomyYAML)
	if err != nil {
		panic(fmt.Sprintf("taxonomy: embedded default is invalid: %v", err))
	}
	return t
}

// LoadTaxonomy reads a YAML taxonomy from path. An empty path yields the
// embedded default.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	if path == "" {
		return DefaultTaxonomy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("taxonomy: read %q: %w", path, err)
	}
	return ParseTaxonomy(data)
}

// ParseTaxonomy decodes a YAML taxonomy document.
func ParseTaxonomy(data []byte) (*Taxonomy, error) {
	var f taxonomyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("taxonomy: decode: %w", err)
	}
	if len(f.Order) == 0 {
		return nil, errors.New("taxonomy: order list is empty")
	}
	for raw, principal := range f.Mapping {
		if strings.TrimSpace(principal) == "" {
			return nil, fmt.Errorf("taxonomy: %q maps to an empty category", raw)
		}
	}
	return NewTaxonomy(f.Mapping, f.Order), nil
}

// Map returns the principal category for a raw label. Labels the table does
// not know come back unchanged; hierarchical labels ("A > B") need their own
// entry in the mapping.
func (t *Taxonomy) Map(raw string) string {
	label := strings.TrimSpace(raw)
	if p, ok := t.mapping[label]; ok {
		return p
	}
	return label
}

// Order returns the display order of the known principal categories.
func (t *Taxonomy) Order() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// SortCategories orders cats by display order, appending unknown categories
// in the order first encountered. Duplicates are dropped.
func (t *Taxonomy) SortCategories(cats []string) []string {
	present := make(map[string]bool, len(cats))
	var extra []string
	for _, c := range cats {
		if present[c] {
			continue
		}
		present[c] = true
		if _, known := t.rank[c]; !known {
			extra = append(extra, c)
		}
	}

	out := make([]string, 0, len(present))
	for _, c := range t.order {
		if present[c] {
			out = append(out, c)
		}
	}
	return append(out, extra...)
}

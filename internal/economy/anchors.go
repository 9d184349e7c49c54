package economy

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed anchors.yaml
var defaultAnchorsYAML []byte

// Anchor is the observed state of one campaign year.
type Anchor struct {
	Year         int     `yaml:"year" json:"year"`
	GDP          float64 `yaml:"gdp" json:"gdp"`
	Inflation    float64 `yaml:"inflation" json:"inflation"`
	Unemployment float64 `yaml:"unemployment" json:"unemployment"`
}

// AnchorTable maps campaign years to anchors. The zero value is an empty
// table; lookups on it always miss.
type AnchorTable struct {
	years  []int
	byYear map[int]Anchor
}

// ParseAnchors decodes a YAML anchor document.
func ParseAnchors(raw []byte) (*AnchorTable, error) {
	var doc struct {
		Years []Anchor `yaml:"years"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("anchors: %w", err)
	}
	if len(doc.Years) == 0 {
		return nil, errors.New("anchors: no years")
	}

	t := &AnchorTable{byYear: make(map[int]Anchor, len(doc.Years))}
	for _, a := range doc.Years {
		if _, dup := t.byYear[a.Year]; dup {
			return nil, fmt.Errorf("anchors: duplicate year %d", a.Year)
		}
		if a.GDP < 0 {
			return nil, fmt.Errorf("anchors: year %d has negative gdp", a.Year)
		}
		t.byYear[a.Year] = a
		t.years = append(t.years, a.Year)
	}
	sort.Ints(t.years)
	return t, nil
}

// LoadAnchors reads an anchor table from a YAML file.
func LoadAnchors(path string) (*AnchorTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseAnchors(raw)
}

// DefaultAnchors returns the embedded campaign table.
func DefaultAnchors() *AnchorTable {
	t, err := ParseAnchors(defaultAnchorsYAML)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the anchor for year.
func (t *AnchorTable) Lookup(year int) (Anchor, bool) {
	if t == nil {
		return Anchor{}, false
	}
	a, ok := t.byYear[year]
	return a, ok
}

// Next returns the first anchored year strictly after year.
func (t *AnchorTable) Next(year int) (int, bool) {
	if t == nil {
		return 0, false
	}
	i := sort.SearchInts(t.years, year+1)
	if i >= len(t.years) {
		return 0, false
	}
	return t.years[i], true
}

// First returns the earliest anchored year.
func (t *AnchorTable) First() (int, bool) {
	if t == nil || len(t.years) == 0 {
		return 0, false
	}
	return t.years[0], true
}

// Len returns the number of anchored years.
func (t *AnchorTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.years)
}

// All returns the anchors in year order.
func (t *AnchorTable) All() []Anchor {
	if t == nil {
		return nil
	}
	out := make([]Anchor, 0, len(t.years))
	for _, y := range t.years {
		out = append(out, t.byYear[y])
	}
	return out
}

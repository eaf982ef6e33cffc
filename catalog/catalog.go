// Package catalog serves the bundled plant catalog.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"govor-biljaka/model"
)

//go:embed plants.json
var plantsJSON []byte

type Catalog struct {
	plants []model.Plant
	byID   map[int]model.Plant
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	var plants []model.Plant
	if err := json.Unmarshal(plantsJSON, &plants); err != nil {
		return nil, fmt.Errorf("parse bundled catalog: %w", err)
	}
	return New(plants), nil
}

// New builds a catalog from plants, ordered by name the way a Serbian
// reader expects, ignoring case and ordering "č" after "c".
func New(plants []model.Plant) *Catalog {
	sorted := make([]model.Plant, len(plants))
	copy(sorted, plants)

	col := collate.New(language.MustParse("sr-Latn"), collate.IgnoreCase)
	sort.SliceStable(sorted, func(i, j int) bool {
		return col.CompareString(sorted[i].Name, sorted[j].Name) < 0
	})

	byID := make(map[int]model.Plant, len(sorted))
	for _, p := range sorted {
		byID[p.ID] = p
	}
	return &Catalog{plants: sorted, byID: byID}
}

// All returns every plant, ordered by name.
func (c *Catalog) All() []model.Plant {
	out := make([]model.Plant, len(c.plants))
	copy(out, c.plants)
	return out
}

func (c *Catalog) Get(id int) (model.Plant, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Search returns the plants whose name or scientific name contains term,
// ignoring case. The term is matched as given, whitespace included; only an
// empty term matches everything.
func (c *Catalog) Search(term string) []model.Plant {
	if term == "" {
		return c.All()
	}
	needle := strings.ToLower(term)
	out := []model.Plant{}
	for _, p := range c.plants {
		if strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.ScientificName), needle) {
			out = append(out, p)
		}
	}
	return out
}

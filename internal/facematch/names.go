package facematch

import (
	"sort"

	"github.com/kozaktomas/face-registry/internal/database"
)

// NameGroup is every spelling of one person's name with the total record count.
type NameGroup struct {
	Name       string   `json:"name"`
	Normalized string   `json:"normalized"`
	Count      int      `json:"count"`
	Spellings  []string `json:"spellings,omitempty"`
}

// GroupNames merges names that only differ in case, diacritics, dashes or spacing.
// The first spelling seen is used as the display name.
func GroupNames(names []database.NameCount) []NameGroup {
	byKey := make(map[string]*NameGroup)
	var order []string

	for _, nc := range names {
		key := NormalizePersonName(nc.Name)
		g, ok := byKey[key]
		if !ok {
			g = &NameGroup{Name: nc.Name, Normalized: key}
			byKey[key] = g
			order = append(order, key)
		}
		g.Count += nc.Count
		g.Spellings = append(g.Spellings, nc.Name)
	}

	groups := make([]NameGroup, 0, len(order))
	for _, key := range order {
		g := byKey[key]
		if len(g.Spellings) == 1 {
			g.Spellings = nil
		}
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Normalized < groups[j].Normalized })
	return groups
}

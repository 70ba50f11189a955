package achievement

import (
	"strings"

	"gorahrib/internal/models"
)

// Stats is a snapshot of one user's visited peaks plus catalog totals,
// read once before evaluation.
type Stats struct {
	TotalVisited      int
	VisitedNames      map[string]struct{}
	VisitedByRange    map[models.MountainRange]int
	CatalogByRange    map[models.MountainRange]int
	VisitedElevations []int
}

// NewStats builds a snapshot from the user's visited peaks and the number of
// catalog peaks per range.
func NewStats(visited []models.Peak, catalogByRange map[models.MountainRange]int) Stats {
	s := Stats{
		TotalVisited:      len(visited),
		VisitedNames:      make(map[string]struct{}, len(visited)),
		VisitedByRange:    make(map[models.MountainRange]int),
		CatalogByRange:    make(map[models.MountainRange]int, len(catalogByRange)),
		VisitedElevations: make([]int, 0, len(visited)),
	}
	for _, p := range visited {
		s.VisitedNames[peakKey(p.Name)] = struct{}{}
		s.VisitedByRange[p.MountainRange]++
		s.VisitedElevations = append(s.VisitedElevations, p.Elevation)
	}
	for r, n := range catalogByRange {
		s.CatalogByRange[r] = n
	}
	return s
}

func peakKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// HasVisited reports whether a peak with the given name (case-insensitive) was visited.
func (s Stats) HasVisited(name string) bool {
	_, ok := s.VisitedNames[peakKey(name)]
	return ok
}

// VisitedTriglav reports whether Triglav is among the visited peaks.
func (s Stats) VisitedTriglav() bool {
	return s.HasVisited(models.TriglavName)
}

// CountAtOrAbove returns the number of visited peaks at or above meters.
func (s Stats) CountAtOrAbove(meters int) int {
	n := 0
	for _, e := range s.VisitedElevations {
		if e >= meters {
			n++
		}
	}
	return n
}

// DistinctRegions returns how many mountain ranges, Ostale included, have at
// least one visited peak.
func (s Stats) DistinctRegions() int {
	n := 0
	for r, count := range s.VisitedByRange {
		if count > 0 && r.Valid() {
			n++
		}
	}
	return n
}

// Eval reports whether the criterion holds for s. Unknown criteria never hold.
func (c Criterion) Eval(s Stats) bool {
	switch c.Kind {
	case KindCountTotal:
		return s.TotalVisited >= c.N
	case KindSpecificPeak:
		return s.HasVisited(c.Name)
	case KindCountInRegion:
		return s.VisitedByRange[c.Region] >= c.N
	case KindAllInRegion:
		total := s.CatalogByRange[c.Region]
		return total > 0 && s.VisitedByRange[c.Region] >= total
	case KindCountAboveElevation:
		return s.CountAtOrAbove(c.Meters) >= c.N
	case KindAnyAboveElevation:
		return s.CountAtOrAbove(c.Meters) >= 1
	case KindRegionsVisited:
		return s.DistinctRegions() >= c.N
	default:
		return false
	}
}

// Entry pairs a catalog achievement with its parsed criterion.
type Entry struct {
	Achievement models.Achievement
	Criterion   Criterion
}

// Catalog is the achievement catalog with criteria parsed once.
type Catalog struct {
	Entries []Entry
	byID    map[uint]int
}

// ParseCatalog parses the criteria of every achievement.
func ParseCatalog(list []models.Achievement) Catalog {
	c := Catalog{
		Entries: make([]Entry, 0, len(list)),
		byID:    make(map[uint]int, len(list)),
	}
	for _, a := range list {
		c.byID[a.ID] = len(c.Entries)
		c.Entries = append(c.Entries, Entry{Achievement: a, Criterion: Parse(a.Criteria)})
	}
	return c
}

// Lookup returns the catalog entry for an achievement ID.
func (c Catalog) Lookup(id uint) (Entry, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Entry{}, false
	}
	return c.Entries[i], true
}

// Unknown returns the achievements whose criteria could not be parsed.
func (c Catalog) Unknown() []models.Achievement {
	var out []models.Achievement
	for _, e := range c.Entries {
		if e.Criterion.Kind == KindUnknown {
			out = append(out, e.Achievement)
		}
	}
	return out
}

// ComputeEligible returns the IDs of every achievement whose criterion holds for stats.
func ComputeEligible(stats Stats, catalog Catalog) map[uint]struct{} {
	eligible := make(map[uint]struct{})
	for _, e := range catalog.Entries {
		if e.Criterion.Eval(stats) {
			eligible[e.Achievement.ID] = struct{}{}
		}
	}
	return eligible
}

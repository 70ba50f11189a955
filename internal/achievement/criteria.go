// Package achievement turns free-text achievement criteria into typed rules
// and decides which achievements a user's hiking statistics satisfy.
//
// Criteria are written in Slovenian domain vocabulary ("Obišči 5 vrhov",
// "Obišči vse vrhove v Julijskih Alpah", "Obišči vrh nad 2500 m") and the
// equivalent English phrasing is accepted too. Anything the parser does not
// recognise becomes KindUnknown, which never evaluates true.
package achievement

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gorahrib/internal/models"
)

// Kind tags the variant held by a Criterion.
type Kind int

const (
	KindUnknown Kind = iota
	KindCountTotal
	KindSpecificPeak
	KindCountInRegion
	KindAllInRegion
	KindCountAboveElevation
	KindAnyAboveElevation
	KindRegionsVisited
)

var kindNames = map[Kind]string{
	KindUnknown:             "unknown",
	KindCountTotal:          "countTotal",
	KindSpecificPeak:        "specificPeak",
	KindCountInRegion:       "countInRegion",
	KindAllInRegion:         "allInRegion",
	KindCountAboveElevation: "countAboveElevation",
	KindAnyAboveElevation:   "anyAboveElevation",
	KindRegionsVisited:      "regionsVisited",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Criterion is a parsed achievement rule. Only the fields relevant to Kind are set.
type Criterion struct {
	Kind   Kind
	N      int
	Name   string
	Region models.MountainRange
	Meters int
}

func (c Criterion) String() string {
	switch c.Kind {
	case KindCountTotal:
		return fmt.Sprintf("countTotal(%d)", c.N)
	case KindSpecificPeak:
		return fmt.Sprintf("specificPeak(%s)", c.Name)
	case KindCountInRegion:
		return fmt.Sprintf("countInRegion(%d, %s)", c.N, c.Region)
	case KindAllInRegion:
		return fmt.Sprintf("allInRegion(%s)", c.Region)
	case KindCountAboveElevation:
		return fmt.Sprintf("countAboveElevation(%d, %dm)", c.N, c.Meters)
	case KindAnyAboveElevation:
		return fmt.Sprintf("anyAboveElevation(%dm)", c.Meters)
	case KindRegionsVisited:
		return fmt.Sprintf("regionsVisited(%d)", c.N)
	default:
		return "unknown"
	}
}

// defaultRegionCount is used by "v vseh regijah" without an explicit number.
const defaultRegionCount = 4

var (
	regionsRe     = regexp.MustCompile(`\b(?:v\s+vseh|v|in\s+all|in)\s+(\d+)?\s*(?:regijah|regije|regij|regions?)\b`)
	elevationRe   = regexp.MustCompile(`(?:nad|above|over)\s+(\d+)\s*(?:m\b|metr|meters?)?`)
	countRe       = regexp.MustCompile(`(\d+)\s+(?:vrhov|vrhove|vrha|vrh|peaks|peak)\b`)
	allPeaksRe    = regexp.MustCompile(`\b(?:vse\s+vrhove|vseh\s+vrhov|all\s+(?:the\s+)?peaks)\b`)
	allInRegionRe = regexp.MustCompile(`(?:vse\s+vrhove|vseh\s+vrhov|all\s+(?:the\s+)?peaks)\s+(?:v|na|in|on)\s+(.+)`)
	inRegionRe    = regexp.MustCompile(`\b(?:v|na|in|on)\s+(.+)`)
)

// Parse converts a criteria string into a Criterion. It never fails;
// unrecognised text yields KindUnknown.
func Parse(criteria string) Criterion {
	text := normalize(criteria)
	if text == "" {
		return Criterion{Kind: KindUnknown}
	}

	if loc := regionsRe.FindStringSubmatchIndex(text); loc != nil {
		n := defaultRegionCount
		if loc[2] >= 0 {
			n = atoi(text[loc[2]:loc[3]])
		}
		// regionsVisited holds only N; any other qualifier leaves the rule unknown.
		rest := text[:loc[0]] + " " + text[loc[1]:]
		if n <= 0 || countRe.MatchString(rest) || allPeaksRe.MatchString(rest) || elevationRe.MatchString(rest) {
			return Criterion{Kind: KindUnknown}
		}
		return Criterion{Kind: KindRegionsVisited, N: n}
	}

	if loc := elevationRe.FindStringSubmatchIndex(text); loc != nil {
		meters := atoi(text[loc[2]:loc[3]])
		if meters <= 0 {
			return Criterion{Kind: KindUnknown}
		}
		rest := text[:loc[0]] + " " + text[loc[1]:]
		if allPeaksRe.MatchString(rest) {
			return Criterion{Kind: KindUnknown}
		}
		if m := inRegionRe.FindStringSubmatch(rest); m != nil {
			if _, ok := ResolveRegion(m[1]); ok {
				return Criterion{Kind: KindUnknown}
			}
		}
		if m := countRe.FindStringSubmatch(rest); m != nil {
			if n := atoi(m[1]); n > 0 {
				return Criterion{Kind: KindCountAboveElevation, N: n, Meters: meters}
			}
		}
		return Criterion{Kind: KindAnyAboveElevation, Meters: meters}
	}

	if m := allInRegionRe.FindStringSubmatch(text); m != nil {
		if region, ok := ResolveRegion(m[1]); ok {
			return Criterion{Kind: KindAllInRegion, Region: region}
		}
		return Criterion{Kind: KindUnknown}
	}

	if loc := countRe.FindStringSubmatchIndex(text); loc != nil {
		n := atoi(text[loc[2]:loc[3]])
		if n <= 0 {
			return Criterion{Kind: KindUnknown}
		}
		tail := text[loc[1]:]
		if m := inRegionRe.FindStringSubmatch(tail); m != nil {
			if region, ok := ResolveRegion(m[1]); ok {
				return Criterion{Kind: KindCountInRegion, N: n, Region: region}
			}
			// A region qualifier we cannot resolve must not widen into a total count.
			return Criterion{Kind: KindUnknown}
		}
		return Criterion{Kind: KindCountTotal, N: n}
	}

	if strings.Contains(text, "triglav") {
		return Criterion{Kind: KindSpecificPeak, Name: models.TriglavName}
	}

	return Criterion{Kind: KindUnknown}
}

// normalize lowercases, folds Slovenian diacritics, treats hyphens as spaces
// and collapses whitespace.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = diacriticFolder.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

var diacriticFolder = strings.NewReplacer(
	"š", "s", "č", "c", "ž", "z", "ć", "c", "đ", "d",
	"-", " ", "–", " ", ".", " ", ",", " ", "!", " ",
)

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

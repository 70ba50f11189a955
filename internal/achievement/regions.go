package achievement

import (
	"strings"

	"gorahrib/internal/models"
)

// regionStems maps inflection-independent stems to canonical ranges. Slovenian
// declension only changes word endings ("Julijske Alpe", "Julijskih Alpah"),
// so matching on the stem covers every grammatical case.
var regionStems = []struct {
	stem   string
	region models.MountainRange
}{
	{"kamnisk", models.RangeKamnikSavinjaAlps},
	{"savinjsk", models.RangeKamnikSavinjaAlps},
	{"kamnik", models.RangeKamnikSavinjaAlps},
	{"julijsk", models.RangeJulianAlps},
	{"julian", models.RangeJulianAlps},
	{"karavank", models.RangeKaravanke},
	{"pohorj", models.RangePohorje},
	{"ostal", models.RangeOther},
	{"other", models.RangeOther},
}

// ResolveRegion maps any inflected or differently spelled region name to its
// canonical MountainRange.
func ResolveRegion(s string) (models.MountainRange, bool) {
	text := normalize(s)
	if text == "" {
		return "", false
	}
	for _, entry := range regionStems {
		if strings.Contains(text, entry.stem) {
			return entry.region, true
		}
	}
	return "", false
}

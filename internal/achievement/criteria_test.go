package achievement

import (
	"testing"

	"gorahrib/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		criteria string
		want     Criterion
	}{
		{"Obišči 1 vrh", Criterion{Kind: KindCountTotal, N: 1}},
		{"Obišči 2 vrha", Criterion{Kind: KindCountTotal, N: 2}},
		{"Obišči 3 vrhove", Criterion{Kind: KindCountTotal, N: 3}},
		{"Obišči 10 vrhov", Criterion{Kind: KindCountTotal, N: 10}},
		{"OBIŠČI 25 VRHOV", Criterion{Kind: KindCountTotal, N: 25}},
		{"visit 5 peaks", Criterion{Kind: KindCountTotal, N: 5}},
		{"Visit 1 peak", Criterion{Kind: KindCountTotal, N: 1}},
		{"Obišči Triglav", Criterion{Kind: KindSpecificPeak, Name: "Triglav"}},
		{"visit peak Triglav", Criterion{Kind: KindSpecificPeak, Name: "Triglav"}},
		{"Obišči 3 vrhove v Karavankah", Criterion{Kind: KindCountInRegion, N: 3, Region: models.RangeKaravanke}},
		{"Obišči 5 vrhov na Pohorju", Criterion{Kind: KindCountInRegion, N: 5, Region: models.RangePohorje}},
		{"visit 2 peaks in Julian Alps", Criterion{Kind: KindCountInRegion, N: 2, Region: models.RangeJulianAlps}},
		{"Obišči vse vrhove v Julijskih Alpah", Criterion{Kind: KindAllInRegion, Region: models.RangeJulianAlps}},
		{"Obišči vse vrhove v Kamniško-Savinjskih Alpah", Criterion{Kind: KindAllInRegion, Region: models.RangeKamnikSavinjaAlps}},
		{"obisci vse vrhove v kamnisko savinjskih alpah", Criterion{Kind: KindAllInRegion, Region: models.RangeKamnikSavinjaAlps}},
		{"visit all peaks in Karavanke", Criterion{Kind: KindAllInRegion, Region: models.RangeKaravanke}},
		{"Obišči 3 vrhove nad 2000 m", Criterion{Kind: KindCountAboveElevation, N: 3, Meters: 2000}},
		{"visit 2 peaks above 2500m", Criterion{Kind: KindCountAboveElevation, N: 2, Meters: 2500}},
		{"Obišči vrh nad 2800 m", Criterion{Kind: KindAnyAboveElevation, Meters: 2800}},
		{"visit a peak above 2000m", Criterion{Kind: KindAnyAboveElevation, Meters: 2000}},
		{"Obišči vrhove v vseh 4 regijah", Criterion{Kind: KindRegionsVisited, N: 4}},
		{"Obišči vrh v vseh regijah", Criterion{Kind: KindRegionsVisited, N: 4}},
		{"visit peaks in all 4 regions", Criterion{Kind: KindRegionsVisited, N: 4}},
		{"fly to the moon", Criterion{Kind: KindUnknown}},
		{"", Criterion{Kind: KindUnknown}},
		{"Obišči 0 vrhov", Criterion{Kind: KindUnknown}},
		{"visit all peaks in Narnia", Criterion{Kind: KindUnknown}},
		{"visit 3 peaks in Narnia", Criterion{Kind: KindUnknown}},
		{"Obišči 10 vrhov v 2 regijah", Criterion{Kind: KindUnknown}},
		{"Obišči vse vrhove v 3 regijah", Criterion{Kind: KindUnknown}},
		{"Obišči vrh nad 2000 m v 3 regijah", Criterion{Kind: KindUnknown}},
		{"Obišči vse vrhove nad 2000 m", Criterion{Kind: KindUnknown}},
		{"visit all peaks above 2500m", Criterion{Kind: KindUnknown}},
		{"Obišči 3 vrhove nad 2000 m v Julijskih Alpah", Criterion{Kind: KindUnknown}},
		{"visit peaks within 3 regions", Criterion{Kind: KindUnknown}},
		{"visit peaks in 3 regionsx", Criterion{Kind: KindUnknown}},
	}

	for _, tt := range tests {
		t.Run(tt.criteria, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.criteria))
		})
	}
}

func TestResolveRegion(t *testing.T) {
	tests := map[string]models.MountainRange{
		"Julijske Alpe":             models.RangeJulianAlps,
		"Julijskih Alpah":           models.RangeJulianAlps,
		"Karavankah":                models.RangeKaravanke,
		"Kamniško-Savinjske Alpe":   models.RangeKamnikSavinjaAlps,
		"Kamniško Savinjskih Alpah": models.RangeKamnikSavinjaAlps,
		"KAMNISKO-SAVINJSKE ALPE":   models.RangeKamnikSavinjaAlps,
		"Pohorju":                   models.RangePohorje,
		"Ostale":                    models.RangeOther,
	}
	for in, want := range tests {
		got, ok := ResolveRegion(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ResolveRegion("Dolomiti")
	assert.False(t, ok)
}

func TestCriterionString(t *testing.T) {
	assert.Equal(t, "countInRegion(3, Karavanke)", Parse("Obišči 3 vrhove v Karavankah").String())
	assert.Equal(t, "unknown", Parse("fly to the moon").String())
	assert.Equal(t, "allInRegion", KindAllInRegion.String())
}

package models

import (
	"strings"
	"time"
)

// MountainRange is one of the fixed Slovenian ranges a peak belongs to.
type MountainRange string

const (
	RangeJulianAlps        MountainRange = "Julijske Alpe"
	RangeKaravanke         MountainRange = "Karavanke"
	RangeKamnikSavinjaAlps MountainRange = "Kamniško-Savinjske Alpe"
	RangePohorje           MountainRange = "Pohorje"
	RangeOther             MountainRange = "Ostale"
)

// MountainRanges lists every valid range in display order.
var MountainRanges = []MountainRange{
	RangeJulianAlps,
	RangeKaravanke,
	RangeKamnikSavinjaAlps,
	RangePohorje,
	RangeOther,
}

// Valid reports whether r is one of the known ranges.
func (r MountainRange) Valid() bool {
	for _, known := range MountainRanges {
		if r == known {
			return true
		}
	}
	return false
}

// TriglavName is the catalog name of the highest Slovenian peak.
const TriglavName = "Triglav"

// Peak is an entry in the mountain catalog.
type Peak struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	Name          string        `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Elevation     int           `gorm:"not null" json:"elevation"`
	MountainRange MountainRange `gorm:"type:varchar(40);not null;index" json:"mountain_range"`
	Latitude      float64       `json:"latitude"`
	Longitude     float64       `json:"longitude"`
	Description   string        `gorm:"type:text" json:"description,omitempty"`
	ImageURL      string        `json:"image_url,omitempty"`
	ClimbCount    int64         `gorm:"not null;default:0;check:chk_peaks_climb_count,climb_count >= 0" json:"climb_count"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Peak) TableName() string {
	return "peaks"
}

// IsTriglav reports whether the peak is Triglav, ignoring case.
func (p Peak) IsTriglav() bool {
	return strings.EqualFold(strings.TrimSpace(p.Name), TriglavName)
}

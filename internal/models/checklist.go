package models

import "time"

// ChecklistStatus is the state of a peak in a user's checklist.
type ChecklistStatus string

const (
	ChecklistWishlist ChecklistStatus = "Wishlist"
	ChecklistVisited  ChecklistStatus = "Visited"
)

// MaxChecklistPictures caps pictures attached to one checklist item.
const MaxChecklistPictures = 3

// ChecklistItem links a user to a peak they plan to climb or have climbed.
type ChecklistItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"not null;uniqueIndex:idx_checklist_user_peak" json:"user_id"`
	PeakID      uint            `gorm:"not null;uniqueIndex:idx_checklist_user_peak;index" json:"peak_id"`
	Status      ChecklistStatus `gorm:"type:varchar(10);not null;default:'Wishlist'" json:"status"`
	VisitedDate *time.Time      `json:"visited_date,omitempty"`
	Pictures    StringList      `gorm:"type:text" json:"pictures"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	Peak Peak `gorm:"foreignKey:PeakID" json:"peak"`
}

// TableName specifies the table name for GORM
func (ChecklistItem) TableName() string {
	return "checklist_items"
}

// IsVisited reports whether the item has been marked as climbed.
func (c ChecklistItem) IsVisited() bool {
	return c.Status == ChecklistVisited
}

package models

import "time"

// Rarity grades how hard an achievement is to unlock.
type Rarity string

const (
	RarityCommon    Rarity = "Common"
	RarityUncommon  Rarity = "Uncommon"
	RarityRare      Rarity = "Rare"
	RarityEpic      Rarity = "Epic"
	RarityLegendary Rarity = "Legendary"
)

// Valid reports whether r is a known rarity.
func (r Rarity) Valid() bool {
	switch r {
	case RarityCommon, RarityUncommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	}
	return false
}

// Achievement is a catalog entry. Criteria is free text understood by the
// achievement package.
type Achievement struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:100;uniqueIndex;not null" json:"title"`
	Description string    `gorm:"size:500;not null" json:"description"`
	Badge       string    `gorm:"size:16" json:"badge"`
	Criteria    string    `gorm:"size:300;not null" json:"criteria"`
	Rarity      Rarity    `gorm:"type:varchar(10);not null;default:'Common'" json:"rarity"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Achievement) TableName() string {
	return "achievements"
}

// UserAchievement records that a user holds an achievement.
type UserAchievement struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;uniqueIndex:idx_user_achievement" json:"user_id"`
	AchievementID uint      `gorm:"not null;uniqueIndex:idx_user_achievement;index" json:"achievement_id"`
	UnlockedAt    time.Time `gorm:"not null" json:"unlocked_at"`

	Achievement Achievement `gorm:"foreignKey:AchievementID" json:"achievement"`
}

// TableName specifies the table name for GORM
func (UserAchievement) TableName() string {
	return "user_achievements"
}

// AchievementSummary is the compact form sent to clients after award or revoke.
type AchievementSummary struct {
	ID     uint   `json:"id"`
	Title  string `json:"title"`
	Badge  string `json:"badge"`
	Rarity Rarity `json:"rarity"`
}

// Summary returns the compact representation of a.
func (a Achievement) Summary() AchievementSummary {
	return AchievementSummary{ID: a.ID, Title: a.Title, Badge: a.Badge, Rarity: a.Rarity}
}

// Summaries converts a list of achievements. It never returns nil.
func Summaries(list []Achievement) []AchievementSummary {
	out := make([]AchievementSummary, 0, len(list))
	for _, a := range list {
		out = append(out, a.Summary())
	}
	return out
}

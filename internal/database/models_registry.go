package database

import "gorahrib/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Peak{},
		&models.ChecklistItem{},
		&models.Achievement{},
		&models.UserAchievement{},
		&models.Friendship{},
		&models.ForumPost{},
		&models.Comment{},
		&models.PostLike{},
	}
}

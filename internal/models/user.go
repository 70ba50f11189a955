// Package models contains data structures for the application's domain models.
package models

import "time"

// UserRole is the authorization role of a user.
type UserRole string

const (
	RoleUser  UserRole = "USER"
	RoleAdmin UserRole = "ADMIN"
)

// UserStatus marks whether an account may sign in.
type UserStatus string

const (
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusInactive UserStatus = "INACTIVE"
)

// MaxUsernameLength is the column width of users.username.
const MaxUsernameLength = 20

// User is a registered hiker. The *Count columns are denormalized from the
// checklist, friendship and achievement tables and are only changed inside the
// transaction that changes those rows.
type User struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	Username           string     `gorm:"size:20;uniqueIndex;not null" json:"username"`
	Email              string     `gorm:"uniqueIndex;not null" json:"email"`
	Password           string     `gorm:"not null" json:"-"`
	Role               UserRole   `gorm:"type:varchar(10);not null;default:'USER'" json:"role"`
	Status             UserStatus `gorm:"type:varchar(10);not null;default:'ACTIVE'" json:"status"`
	ProfilePicture     string     `json:"profile_picture,omitempty"`
	ProfileCropX       float64    `gorm:"not null;default:0" json:"profile_crop_x"`
	ProfileCropY       float64    `gorm:"not null;default:0" json:"profile_crop_y"`
	ProfileCropZoom    float64    `gorm:"not null;default:1" json:"profile_crop_zoom"`
	PeaksCount         int64      `gorm:"not null;default:0;check:chk_users_peaks_count,peaks_count >= 0" json:"peaks_count"`
	FinishedPeaksCount int64      `gorm:"not null;default:0;check:chk_users_finished_peaks_count,finished_peaks_count >= 0" json:"finished_peaks_count"`
	FriendsCount       int64      `gorm:"not null;default:0;check:chk_users_friends_count,friends_count >= 0" json:"friends_count"`
	AchievementsCount  int64      `gorm:"not null;default:0;check:chk_users_achievements_count,achievements_count >= 0" json:"achievements_count"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// IsAdmin reports whether the user holds the ADMIN role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// IsActive reports whether the account is allowed to sign in.
func (u *User) IsActive() bool {
	return u != nil && u.Status != UserStatusInactive
}

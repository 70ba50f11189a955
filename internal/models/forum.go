package models

import "time"

// PostCategory separates user hike reports from system announcements.
type PostCategory string

const (
	CategoryHike        PostCategory = "Hike"
	CategoryAchievement PostCategory = "Achievement"
)

const (
	MaxPostTitleLength = 150
	MaxPostPictures    = 5
)

// ForumPost is a forum entry. A post with AchievementID set is an
// announcement owned by the achievement service.
type ForumPost struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	UserID        uint         `gorm:"not null;index" json:"user_id"`
	AchievementID *uint        `gorm:"index" json:"achievement_id,omitempty"`
	PeakID        *uint        `gorm:"index" json:"peak_id,omitempty"`
	Title         string       `gorm:"size:150;not null" json:"title"`
	Content       string       `gorm:"type:text;not null" json:"content"`
	Category      PostCategory `gorm:"type:varchar(20);not null;default:'Hike'" json:"category"`
	Likes         int64        `gorm:"not null;default:0;check:chk_forum_posts_likes,likes >= 0" json:"likes"`
	CommentCount  int64        `gorm:"not null;default:0;check:chk_forum_posts_comment_count,comment_count >= 0" json:"comment_count"`
	Pictures      StringList   `gorm:"type:text" json:"pictures"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`

	User User  `gorm:"foreignKey:UserID" json:"user"`
	Peak *Peak `gorm:"foreignKey:PeakID" json:"peak,omitempty"`
	// Liked is computed per viewer and never persisted.
	Liked bool `gorm:"-" json:"liked"`
}

// TableName specifies the table name for GORM
func (ForumPost) TableName() string {
	return "forum_posts"
}

// IsAnnouncement reports whether the post was created by an achievement unlock.
func (p ForumPost) IsAnnouncement() bool {
	return p.AchievementID != nil
}

// Comment is a reply to a forum post.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"user"`
}

// TableName specifies the table name for GORM
func (Comment) TableName() string {
	return "comments"
}

// PostLike is the source of truth for ForumPost.Likes.
type PostLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_post_like" json:"post_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_post_like;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (PostLike) TableName() string {
	return "post_likes"
}

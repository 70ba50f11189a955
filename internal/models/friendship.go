package models

import "time"

// FriendshipStatus represents the status of a friendship request.
type FriendshipStatus string

const (
	// FriendshipStatusPending indicates a request waiting for the addressee.
	FriendshipStatusPending FriendshipStatus = "Pending"
	// FriendshipStatusAccepted indicates a symmetric friendship.
	FriendshipStatusAccepted FriendshipStatus = "Accepted"
)

// Friendship represents a friendship relationship between two users.
// At most one row exists per unordered pair of users.
type Friendship struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	RequesterID uint             `gorm:"not null;uniqueIndex:idx_friendship_users" json:"requester_id"`
	AddresseeID uint             `gorm:"not null;uniqueIndex:idx_friendship_users;index" json:"addressee_id"`
	Status      FriendshipStatus `gorm:"type:varchar(20);not null;default:'Pending';index:idx_friendships_status" json:"status"`
	RequestedAt time.Time        `gorm:"autoCreateTime" json:"requested_at"`
	AcceptedAt  *time.Time       `json:"accepted_at,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`

	// Relationships
	Requester User `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	Addressee User `gorm:"foreignKey:AddresseeID" json:"addressee,omitempty"`
}

// TableName specifies the table name for GORM
func (Friendship) TableName() string {
	return "friendships"
}

// OtherUserID returns the participant that is not userID.
func (f Friendship) OtherUserID(userID uint) uint {
	if f.RequesterID == userID {
		return f.AddresseeID
	}
	return f.RequesterID
}

// Involves reports whether userID is one side of the friendship.
func (f Friendship) Involves(userID uint) bool {
	return f.RequesterID == userID || f.AddresseeID == userID
}

package notifications

import "encoding/json"

// Realtime event types pushed to user channels.
const (
	EventAchievementUnlocked = "achievement_unlocked"
	EventAchievementRevoked  = "achievement_revoked"
	EventFriendRequest       = "friend_request"
	EventFriendAccepted      = "friend_accepted"
	EventPostLiked           = "post_liked"
	EventPostCommented       = "post_commented"
	EventFriendsOnline       = "friends_online_snapshot"
)

// Event is the envelope every realtime message uses.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// EncodeEvent marshals an event envelope.
func EncodeEvent(eventType string, payload interface{}) (string, error) {
	b, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

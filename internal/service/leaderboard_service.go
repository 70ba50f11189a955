package service

import (
	"context"

	"gorahrib/internal/cache"
	"gorahrib/internal/models"
	"gorahrib/internal/repository"
)

const leaderboardLimit = 100

// LeaderboardEntry is one ranked hiker. Equal finished counts share a rank.
type LeaderboardEntry struct {
	Rank               int    `json:"rank"`
	UserID             uint   `json:"userId"`
	Username           string `json:"username"`
	ProfilePicture     string `json:"profilePicture,omitempty"`
	FinishedPeaksCount int64  `json:"finishedPeaksCount"`
	AchievementsCount  int64  `json:"achievementsCount"`
}

// LeaderboardService ranks users by climbed peaks.
type LeaderboardService struct {
	users   repository.UserRepository
	friends repository.FriendRepository
}

func NewLeaderboardService(users repository.UserRepository, friends repository.FriendRepository) *LeaderboardService {
	return &LeaderboardService{users: users, friends: friends}
}

// Global ranks every user with at least one climbed peak. The result is
// cached briefly and dropped whenever a visit changes.
func (s *LeaderboardService) Global(ctx context.Context) ([]LeaderboardEntry, error) {
	entries := []LeaderboardEntry{}
	err := cache.Aside(ctx, cache.GlobalLeaderboardKey, &entries, cache.LeaderboardTTL, func() error {
		users, err := s.users.Ranked(ctx, nil, leaderboardLimit)
		if err != nil {
			return err
		}
		entries = rank(users)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Friends ranks the user and their accepted friends. A user without friends
// gets an empty list.
func (s *LeaderboardService) Friends(ctx context.Context, userID uint) ([]LeaderboardEntry, error) {
	ids, err := s.friends.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []LeaderboardEntry{}, nil
	}
	users, err := s.users.Ranked(ctx, append(ids, userID), leaderboardLimit)
	if err != nil {
		return nil, err
	}
	return rank(users), nil
}

// rank expects users sorted by finished_peaks_count descending.
func rank(users []models.User) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(users))
	for i, u := range users {
		r := i + 1
		if i > 0 && u.FinishedPeaksCount == users[i-1].FinishedPeaksCount {
			r = entries[i-1].Rank
		}
		entries = append(entries, LeaderboardEntry{
			Rank:               r,
			UserID:             u.ID,
			Username:           u.Username,
			ProfilePicture:     u.ProfilePicture,
			FinishedPeaksCount: u.FinishedPeaksCount,
			AchievementsCount:  u.AchievementsCount,
		})
	}
	return entries
}

package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix        = "user:%d"
	PeakKeyPrefix        = "peak:%d"
	PeakListKeyPrefix    = "peaks:list:%s:%d:%d"
	PeakListPattern      = "peaks:list:*"
	GlobalLeaderboardKey = "leaderboard:global"
)

const (
	UserTTL        = 5 * time.Minute
	PeakTTL        = 30 * time.Minute
	LeaderboardTTL = 2 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func PeakKey(peakID uint) string {
	return fmt.Sprintf(PeakKeyPrefix, peakID)
}

// PeakListKey identifies one filtered page of the peak catalog.
func PeakListKey(mountainRange string, limit, offset int) string {
	if mountainRange == "" {
		mountainRange = "all"
	}
	return fmt.Sprintf(PeakListKeyPrefix, mountainRange, limit, offset)
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidateUser(ctx context.Context, userIDs ...uint) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, UserKey(id))
	}
	Invalidate(ctx, keys...)
}

// InvalidatePeak drops a cached peak and every cached catalog page, since
// climb counts appear in both.
func InvalidatePeak(ctx context.Context, peakID uint) {
	Invalidate(ctx, PeakKey(peakID))
	InvalidatePattern(ctx, PeakListPattern)
}

// InvalidatePattern deletes every key matching pattern using SCAN.
func InvalidatePattern(ctx context.Context, pattern string) {
	if client == nil {
		return
	}
	iter := client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

// InvalidateLeaderboard drops the cached global ranking.
func InvalidateLeaderboard(ctx context.Context) {
	Invalidate(ctx, GlobalLeaderboardKey)
}

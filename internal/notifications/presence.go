package notifications

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"gorahrib/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	defaultOnlineSetKey   = "ws:online_users"
	defaultLastSeenPrefix = "ws:last_seen:"
	defaultLastSeenTTL    = 90 * time.Second
	defaultOfflineGrace   = 5 * time.Second
	defaultReaperInterval = 60 * time.Second
)

// PresenceConfig controls how long a user stays online after their last
// socket closes and how often stale redis entries are reaped.
type PresenceConfig struct {
	LastSeenTTL        time.Duration
	OfflineGracePeriod time.Duration
	ReaperInterval     time.Duration
}

// Presence tracks which users hold an open websocket. Local connection counts
// are authoritative for this process; redis shares presence across instances.
type Presence struct {
	rdb *redis.Client

	mu            sync.RWMutex
	local         map[uint]int
	offlineTimers map[uint]*time.Timer

	lastSeenTTL    time.Duration
	offlineGrace   time.Duration
	reaperInterval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewPresence returns a tracker. The reaper only runs when rdb is set.
func NewPresence(rdb *redis.Client, cfg PresenceConfig) *Presence {
	p := &Presence{
		rdb:            rdb,
		local:          make(map[uint]int),
		offlineTimers:  make(map[uint]*time.Timer),
		lastSeenTTL:    defaultLastSeenTTL,
		offlineGrace:   defaultOfflineGrace,
		reaperInterval: defaultReaperInterval,
		stopCh:         make(chan struct{}),
	}
	if cfg.LastSeenTTL > 0 {
		p.lastSeenTTL = cfg.LastSeenTTL
	}
	if cfg.OfflineGracePeriod > 0 {
		p.offlineGrace = cfg.OfflineGracePeriod
	}
	if cfg.ReaperInterval > 0 {
		p.reaperInterval = cfg.ReaperInterval
	}
	if p.rdb != nil {
		go p.reaperLoop()
	}
	return p
}

func (p *Presence) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.mu.Lock()
		for id, t := range p.offlineTimers {
			t.Stop()
			delete(p.offlineTimers, id)
		}
		p.mu.Unlock()
	})
}

// Register counts a new connection and cancels a pending offline transition.
func (p *Presence) Register(ctx context.Context, userID uint) {
	p.mu.Lock()
	if t, ok := p.offlineTimers[userID]; ok {
		t.Stop()
		delete(p.offlineTimers, userID)
	}
	p.local[userID]++
	p.mu.Unlock()
	p.Touch(ctx, userID)
}

// Touch refreshes the user's last-seen key.
func (p *Presence) Touch(ctx context.Context, userID uint) {
	if p.rdb == nil {
		return
	}
	uid := strconv.FormatUint(uint64(userID), 10)
	if err := p.rdb.SAdd(ctx, defaultOnlineSetKey, uid).Err(); err != nil {
		middleware.Logger.Warn("presence SADD failed", slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
	}
	if err := p.rdb.SetEx(ctx, lastSeenKey(userID), time.Now().Unix(), p.lastSeenTTL).Err(); err != nil {
		middleware.Logger.Warn("presence SETEX failed", slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
	}
}

// Unregister drops a connection. The user goes offline after the grace
// period unless they reconnect first.
func (p *Presence) Unregister(userID uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := p.local[userID]; n > 1 {
		p.local[userID] = n - 1
		return
	}
	delete(p.local, userID)
	if t, ok := p.offlineTimers[userID]; ok {
		t.Stop()
	}
	p.offlineTimers[userID] = time.AfterFunc(p.offlineGrace, func() {
		p.finalizeOffline(context.Background(), userID)
	})
}

// IsOnline reports a local connection, a pending grace period, or a fresh
// last-seen key written by any instance.
func (p *Presence) IsOnline(ctx context.Context, userID uint) bool {
	p.mu.RLock()
	_, pending := p.offlineTimers[userID]
	online := p.local[userID] > 0 || pending
	p.mu.RUnlock()
	if online || p.rdb == nil {
		return online
	}
	n, err := p.rdb.Exists(ctx, lastSeenKey(userID)).Result()
	return err == nil && n > 0
}

// OnlineAmong filters ids down to the users currently online.
func (p *Presence) OnlineAmong(ctx context.Context, ids []uint) []uint {
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if p.IsOnline(ctx, id) {
			out = append(out, id)
		}
	}
	return out
}

func (p *Presence) finalizeOffline(ctx context.Context, userID uint) {
	p.mu.Lock()
	delete(p.offlineTimers, userID)
	stillLocal := p.local[userID] > 0
	p.mu.Unlock()
	if stillLocal || p.rdb == nil {
		return
	}
	if err := p.rdb.Del(ctx, lastSeenKey(userID)).Err(); err != nil {
		middleware.Logger.Warn("presence DEL failed", slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
	}
	_ = p.rdb.SRem(ctx, defaultOnlineSetKey, strconv.FormatUint(uint64(userID), 10)).Err()
}

// reapOnce drops set members whose last-seen key expired, which happens when
// an instance dies without closing its sockets.
func (p *Presence) reapOnce(ctx context.Context) int {
	members, err := p.rdb.SMembers(ctx, defaultOnlineSetKey).Result()
	if err != nil {
		return 0
	}
	reaped := 0
	for _, raw := range members {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			_ = p.rdb.SRem(ctx, defaultOnlineSetKey, raw).Err()
			continue
		}
		if n, err := p.rdb.Exists(ctx, lastSeenKey(uint(id))).Result(); err != nil || n > 0 {
			continue
		}
		p.mu.RLock()
		hasLocal := p.local[uint(id)] > 0
		p.mu.RUnlock()
		if hasLocal {
			continue
		}
		_ = p.rdb.SRem(ctx, defaultOnlineSetKey, raw).Err()
		reaped++
	}
	return reaped
}

func (p *Presence) reaperLoop() {
	ticker := time.NewTicker(p.reaperInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			if n := p.reapOnce(context.Background()); n > 0 {
				middleware.Logger.Info("reaped stale presence", slog.Int("users", n))
			}
		}
	}
}

func lastSeenKey(userID uint) string {
	return defaultLastSeenPrefix + strconv.FormatUint(uint64(userID), 10)
}

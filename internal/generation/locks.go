package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"showrunner/internal/coord"
	"showrunner/internal/logger"
)

const (
	groupLockPrefix   = "lock:group:"
	productionFlagKey = "production:active"
)

// Locker wraps the coordination store's lock primitives. Group locks fail
// closed: an unreachable store blocks generation rather than letting it run
// unguarded. The production flag is the opposite, best-effort on every path.
type Locker struct {
	kv coord.KV
}

// NewLocker creates a locker over the shared coordination store.
func NewLocker(kv coord.KV) *Locker {
	return &Locker{kv: kv}
}

// AcquireGroup takes the per-group exclusivity lock. The returned release
// function is safe to call on every exit path; it only deletes the lock while
// this worker's token still holds it, so an expired-and-reacquired lock is
// never stolen back.
func (l *Locker) AcquireGroup(ctx context.Context, groupID string, ttl time.Duration) (release func(), acquired bool, err error) {
	key := groupLockPrefix + groupID
	token := uuid.NewString()

	ok, err := l.kv.SetIfAbsent(ctx, key, token, ttl)
	if err != nil {
		return nil, false, fmt.Errorf("lock store unreachable: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release = func() {
		if err := l.kv.Release(context.Background(), key, token); err != nil {
			logger.Warn("Failed to release group lock; TTL will reclaim it",
				"group", groupID, "error", err.Error())
		}
	}
	return release, true, nil
}

// ProductionFlag names the in-flight group and episode.
type ProductionFlag struct {
	GroupID   string `json:"group_id"`
	EpisodeID string `json:"episode_id"`
}

// RaiseProductionFlag raises the global cooperative pause signal. Failures
// are logged and swallowed: the flag is a contention hint, not a barrier.
func (l *Locker) RaiseProductionFlag(ctx context.Context, groupID, episodeID string, ttl time.Duration) func() {
	payload, _ := json.Marshal(ProductionFlag{GroupID: groupID, EpisodeID: episodeID})

	ok, err := l.kv.SetIfAbsent(ctx, productionFlagKey, string(payload), ttl)
	if err != nil {
		logger.Warn("Failed to raise production flag", "group", groupID, "error", err.Error())
		return func() {}
	}
	if !ok {
		logger.Debug("Production flag already raised by another run", "group", groupID)
		return func() {}
	}

	return func() {
		if err := l.kv.Release(context.Background(), productionFlagKey, string(payload)); err != nil {
			logger.Warn("Failed to lower production flag; TTL will reclaim it",
				"group", groupID, "error", err.Error())
		}
	}
}

// CurrentProduction reports the raised flag, if any. Ingestion and review
// consumers check this before dequeuing new work.
func (l *Locker) CurrentProduction(ctx context.Context) (*ProductionFlag, error) {
	value, found, err := l.kv.Get(ctx, productionFlagKey)
	if err != nil || !found {
		return nil, err
	}
	var flag ProductionFlag
	if err := json.Unmarshal([]byte(value), &flag); err != nil {
		return nil, nil
	}
	return &flag, nil
}

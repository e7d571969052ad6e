package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/libertycall/ivr-gateway/internal/logging"
)

// presenceTTL bounds how long a call's Redis presence key survives a
// process crash that skips teardown, so a dead gateway replica's calls
// don't linger forever in cross-process views of "active calls".
const presenceTTL = 6 * time.Hour

// PresenceMirror publishes active-call presence to Redis so an operator
// tool or a second gateway process can see `_active_calls` without either
// sharing memory or querying this process directly — the same "optional
// shared backing store" role the teacher's stack reaches for go-redis to
// fill (as a cache, never as the authoritative call state: the in-memory
// Registry always wins in this process).
type PresenceMirror struct {
	client *redis.Client
	prefix string
	log    logging.Logger
}

// NewPresenceMirror wraps an already-configured *redis.Client. A nil
// client disables presence mirroring entirely (every method becomes a
// no-op), so the gateway can run with no Redis dependency configured.
func NewPresenceMirror(client *redis.Client, log logging.Logger) *PresenceMirror {
	if log == nil {
		log = logging.NewNop()
	}
	return &PresenceMirror{client: client, prefix: "ivr-gateway:call:", log: log}
}

// MarkActive records call_id as live, refreshing its TTL.
func (p *PresenceMirror) MarkActive(ctx context.Context, callID, clientID string) {
	if p.client == nil {
		return
	}
	key := p.prefix + callID
	if err := p.client.Set(ctx, key, clientID, presenceTTL).Err(); err != nil {
		p.log.Warnw("presence_mark_active_failed", "call_id", callID, "error", err)
	}
}

// MarkInactive removes call_id's presence key at teardown.
func (p *PresenceMirror) MarkInactive(ctx context.Context, callID string) {
	if p.client == nil {
		return
	}
	if err := p.client.Del(ctx, p.prefix+callID).Err(); err != nil {
		p.log.Warnw("presence_mark_inactive_failed", "call_id", callID, "error", err)
	}
}

// ActiveCount returns the number of live presence keys, or -1 if presence
// mirroring is disabled or Redis is unreachable.
func (p *PresenceMirror) ActiveCount(ctx context.Context) int {
	if p.client == nil {
		return -1
	}
	var (
		cursor uint64
		count  int
	)
	for {
		keys, next, err := p.client.Scan(ctx, cursor, p.prefix+"*", 100).Result()
		if err != nil {
			p.log.Warnw("presence_scan_failed", "error", err)
			return -1
		}
		count += len(keys)
		if next == 0 {
			break
		}
		cursor = next
	}
	return count
}

// NewRedisClient builds a *redis.Client from config, returning nil (not an
// error) when addr is empty so presence mirroring can be disabled by
// configuration alone.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("lifecycle: redis ping %s: %w", addr, err)
	}
	return client, nil
}

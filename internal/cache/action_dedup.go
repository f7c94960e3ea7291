// Package cache provides the short-lived seen-set that makes operator
// actions at-most-once. Discord redelivers interactions on slow acks, and
// double-clicks produce near-identical actions; deduplicating by action ID
// keeps the fill ledger and the state machine from being double-applied.
package cache

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"trade-signal-bot/config"

	"github.com/redis/go-redis/v9"
)

// DedupKeyPrefix namespaces dedup keys in Redis.
// Format: signalbot:action:{actionID}
const DedupKeyPrefix = "signalbot:action"

// DefaultDedupTTL bounds the dedup window. Redeliveries arrive within
// seconds; anything later is a genuinely new operator action.
const DefaultDedupTTL = 60 * time.Second

// redisRetryInterval spaces reconnect probes while degraded, so a down
// Redis costs at most one ping per interval instead of one per action.
const redisRetryInterval = 30 * time.Second

// ActionDedup is a time-bounded seen-set keyed by action identifier,
// independent of signal identity. It is Redis-backed when Redis is
// configured and healthy, degrades to a per-process map on failure and
// periodically re-probes Redis to recover.
type ActionDedup struct {
	client *redis.Client
	ttl    time.Duration

	mu        sync.Mutex
	healthy   bool
	lastProbe time.Time
	seen      map[string]time.Time // fallback seen-set
}

// NewActionDedup creates the dedup cache. A failed Redis connection is not
// fatal; the cache starts in degraded (in-memory) mode and recovers once
// Redis answers a probe.
func NewActionDedup(cfg config.RedisConfig, ttl time.Duration) *ActionDedup {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}

	d := &ActionDedup{
		ttl:  ttl,
		seen: make(map[string]time.Time),
	}

	if !cfg.Enabled {
		return d
	}

	d.client = redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.client.Ping(ctx).Err(); err != nil {
		log.Printf("[DEDUP] Initial Redis connection failed, using in-memory fallback: %v", err)
		d.lastProbe = time.Now()
		return d
	}
	d.healthy = true
	return d
}

// FirstDelivery reports whether this action ID is seen for the first time
// within the dedup window. Repeated IDs return false and the caller must
// drop the action.
func (d *ActionDedup) FirstDelivery(ctx context.Context, actionID string) bool {
	if actionID == "" {
		return true
	}

	if d.client != nil {
		if !d.isHealthy() && d.shouldProbe(time.Now()) {
			if err := d.client.Ping(ctx).Err(); err == nil {
				log.Printf("[DEDUP] Redis connection restored")
				d.setHealthy(true)
			}
		}
		if d.isHealthy() {
			key := fmt.Sprintf("%s:%s", DedupKeyPrefix, actionID)
			ok, err := d.client.SetNX(ctx, key, "1", d.ttl).Result()
			if err == nil {
				return ok
			}
			log.Printf("[DEDUP] Redis SetNX failed, degrading to in-memory: %v", err)
			d.setHealthy(false)
		}
	}

	return d.firstDeliveryLocal(actionID)
}

func (d *ActionDedup) firstDeliveryLocal(actionID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for id, seenAt := range d.seen {
		if now.Sub(seenAt) > d.ttl {
			delete(d.seen, id)
		}
	}

	if _, ok := d.seen[actionID]; ok {
		return false
	}
	d.seen[actionID] = now
	return true
}

func (d *ActionDedup) isHealthy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.healthy
}

func (d *ActionDedup) setHealthy(healthy bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.healthy = healthy
	if !healthy {
		d.lastProbe = time.Now()
	}
}

// shouldProbe reports whether the retry interval has elapsed since the
// last reconnect attempt, claiming the probe slot when it has.
func (d *ActionDedup) shouldProbe(now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if now.Sub(d.lastProbe) < redisRetryInterval {
		return false
	}
	d.lastProbe = now
	return true
}

// Close releases the Redis connection
func (d *ActionDedup) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}

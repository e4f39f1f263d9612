// Package dedup suppresses duplicate webhook deliveries. Smartlead retries
// delivery aggressively; the cache keeps fingerprints of recently handled
// events so a retry storm produces exactly one forward call. The cache is
// memory-resident and best-effort: a restart clears all history, which is
// acceptable because a duplicate notification is a tolerable failure mode.
package dedup

import (
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/jzakirov/openclaw-smartlead/internal/extract"
)

// Fingerprint returns a deterministic id for an event. The stats id is used
// preferentially because the platform issues a fresh one per delivery
// attempt; the composite fallback may coalesce genuinely distinct but
// field-sparse events, which is an accepted approximation.
func Fingerprint(c *extract.Context) string {
	if c.StatsID != "" {
		return hashString("stats:" + c.StatsID)
	}

	parts := []string{
		c.EventType,
		formatID(c.CampaignID),
		formatID(c.LeadID),
		c.LeadEmail,
		c.Timestamp,
	}
	return hashString(strings.Join(parts, "|"))
}

func hashString(s string) string {
	sum := blake3.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func formatID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

// Cache is a TTL-pruned set of event fingerprints. Entries are only removed
// by Prune or process restart. Mutations are mutex-guarded: unlike the
// source platform's single-threaded runtime, net/http serves each request on
// its own goroutine.
type Cache struct {
	mu  sync.Mutex
	ttl time.Duration

	// fingerprint -> arrival time, milliseconds since epoch
	entries map[string]int64
}

// NewCache creates a cache with the given TTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Second
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]int64),
	}
}

// Seen reports whether the cache holds an unexpired entry for fp.
func (c *Cache) Seen(fp string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	at, ok := c.entries[fp]
	if !ok {
		return false
	}
	return now.UnixMilli()-at <= c.ttl.Milliseconds()
}

// Record inserts or refreshes the arrival timestamp for fp.
func (c *Cache) Record(fp string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fp] = now.UnixMilli()
}

// Prune removes all entries older than the TTL. Invoked once per incoming
// request before lookup; O(n) over current cache size.
func (c *Cache) Prune(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := now.UnixMilli() - c.ttl.Milliseconds()
	for fp, at := range c.entries {
		if at < cutoff {
			delete(c.entries, fp)
		}
	}
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

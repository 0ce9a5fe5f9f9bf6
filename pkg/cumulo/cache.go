package cumulo

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cumulo-io/cumulo-client/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrCacheKeyNotFound  = errors.New("key not found in cache")
	ErrCacheEntryExpired = errors.New("cache entry expired")
	ErrCacheValueTooBig  = errors.New("value exceeds maximum cache size")
)

// Cache is a pluggable backend for cached response payloads.
type Cache interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Set(ctx context.Context, key string, entry *CacheEntry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Has(ctx context.Context, key string) bool
}

// CacheEntry is one cached payload with its expiry.
type CacheEntry struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
	RequestID string    `json:"request_id,omitempty"`
}

// Expired reports whether the entry's TTL has passed.
func (e *CacheEntry) Expired() bool {
	return !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt)
}

// CacheOptions are common knobs applied to any backend.
type CacheOptions struct {
	// DefaultTTL is used when a Set does not specify a TTL.
	DefaultTTL time.Duration

	// MaxValueSize rejects oversized payloads. 0 means no limit.
	MaxValueSize int

	// KeyPrefix namespaces keys, useful when a backend is shared.
	KeyPrefix string
}

// DefaultCacheOptions returns the default cache options.
func DefaultCacheOptions() *CacheOptions {
	return &CacheOptions{
		DefaultTTL:   constants.DefaultCacheTTL,
		MaxValueSize: constants.MaxCacheValueSize,
	}
}

// MemoryCache is an in-process Cache with TTL expiry and size-bounded
// eviction. Safe for concurrent use.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
	maxSize int
	quit    chan struct{}
	once    sync.Once
}

// NewMemoryCache creates a memory cache holding at most maxSize entries.
// maxSize <= 0 means unbounded.
func NewMemoryCache(maxSize int) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*CacheEntry),
		maxSize: maxSize,
		quit:    make(chan struct{}),
	}
}

// Get retrieves an entry. Expired entries are removed and reported as
// expired.
func (c *MemoryCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, ErrCacheKeyNotFound
	}

	if entry.Expired() {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()

		return nil, ErrCacheEntryExpired
	}

	return entry, nil
}

// Set stores an entry, evicting the entry closest to expiry when the cache
// is full.
func (c *MemoryCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, exists := c.entries[key]
	if !exists && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = entry

	return nil
}

// Delete removes an entry.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()

	return nil
}

// Clear removes all entries.
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]*CacheEntry)
	c.mu.Unlock()

	return nil
}

// Has reports whether a live entry exists for key.
func (c *MemoryCache) Has(ctx context.Context, key string) bool {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	return ok && !entry.Expired()
}

// Cleanup sweeps expired entries.
func (c *MemoryCache) Cleanup() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if !entry.ExpiresAt.IsZero() && now.After(entry.ExpiresAt) {
			delete(c.entries, key)
		}
	}
}

// StartJanitor sweeps expired entries every interval until Close is called.
func (c *MemoryCache) StartJanitor(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.Cleanup()
			case <-c.quit:
				return
			}
		}
	}()
}

// Close stops the janitor, if running.
func (c *MemoryCache) Close() {
	c.once.Do(func() {
		close(c.quit)
	})
}

// evictOldest drops the entry closest to expiry. Caller holds the lock.
func (c *MemoryCache) evictOldest() {
	var (
		oldestKey string
		oldest    time.Time
	)

	for key, entry := range c.entries {
		if oldestKey == "" || entry.ExpiresAt.Before(oldest) {
			oldestKey = key
			oldest = entry.ExpiresAt
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// CacheStats counts cache manager activity.
type CacheStats struct {
	Hits    int64 `json:"hits"    yaml:"hits"`
	Misses  int64 `json:"misses"  yaml:"misses"`
	Sets    int64 `json:"sets"    yaml:"sets"`
	Deletes int64 `json:"deletes" yaml:"deletes"`
}

// GetHitRate returns hits divided by total lookups, or 0 with no lookups.
func (s *CacheStats) GetHitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

// CachingPolicy decides which action responses are cacheable.
type CachingPolicy struct {
	// CacheReads enables caching of Describe/List/Get actions.
	CacheReads bool

	// CacheMutations enables caching of all other actions. Rarely wanted.
	CacheMutations bool

	// CacheErrors enables caching of non-2xx responses.
	CacheErrors bool

	// IncludeActions, when non-empty, restricts caching to these actions.
	IncludeActions []string

	// ExcludeActions are never cached.
	ExcludeActions []string

	// DefaultTTL applies when Set is called without a TTL.
	DefaultTTL time.Duration
}

// DefaultCachingPolicy caches successful read actions for the default TTL.
func DefaultCachingPolicy() *CachingPolicy {
	return &CachingPolicy{
		CacheReads: true,
		DefaultTTL: constants.DefaultCacheTTL,
	}
}

// ShouldCache reports whether the response of action with the given HTTP
// status is cacheable under this policy.
func (p *CachingPolicy) ShouldCache(action string, statusCode int) bool {
	for _, excluded := range p.ExcludeActions {
		if action == excluded {
			return false
		}
	}

	if len(p.IncludeActions) > 0 {
		included := false

		for _, candidate := range p.IncludeActions {
			if action == candidate {
				included = true

				break
			}
		}

		if !included {
			return false
		}
	}

	if !p.CacheErrors && (statusCode < 200 || statusCode >= 300) {
		return false
	}

	if isReadAction(action) {
		return p.CacheReads
	}

	return p.CacheMutations
}

func isReadAction(action string) bool {
	return strings.HasPrefix(action, "Describe") ||
		strings.HasPrefix(action, "List") ||
		strings.HasPrefix(action, "Get")
}

// CacheManager couples a Cache backend with a policy and bookkeeping. A nil
// backend disables caching while keeping the manager usable.
type CacheManager struct {
	cache  Cache
	policy *CachingPolicy

	mu    sync.Mutex
	stats CacheStats
}

// NewCacheManager creates a manager over cache. A nil policy uses
// DefaultCachingPolicy.
func NewCacheManager(cache Cache, policy *CachingPolicy) *CacheManager {
	if policy == nil {
		policy = DefaultCachingPolicy()
	}

	return &CacheManager{
		cache:  cache,
		policy: policy,
	}
}

// Policy returns the active caching policy.
func (m *CacheManager) Policy() *CachingPolicy {
	return m.policy
}

// GetCacheKey builds a deterministic key from service, action and the
// remote-cased request parameters.
func (m *CacheManager) GetCacheKey(service, action string, params map[string]string) string {
	key := service + ":" + action

	if len(params) == 0 {
		return key
	}

	names := make([]string, 0, len(params))

	for name := range params {
		names = append(names, name)
	}

	sort.Strings(names)

	pairs := make([]string, 0, len(names))

	for _, name := range names {
		pairs = append(pairs, name+"="+params[name])
	}

	return key + ":" + strings.Join(pairs, "&")
}

// Get returns cached data for key, counting hit or miss.
func (m *CacheManager) Get(ctx context.Context, key string) ([]byte, error) {
	if m.cache == nil {
		m.count(func(s *CacheStats) { s.Misses++ })

		return nil, ErrCacheKeyNotFound
	}

	entry, err := m.cache.Get(ctx, key)
	if err != nil {
		m.count(func(s *CacheStats) { s.Misses++ })

		return nil, err
	}

	m.count(func(s *CacheStats) { s.Hits++ })

	return entry.Data, nil
}

// Set stores data under key for ttl. ttl <= 0 uses the policy default.
func (m *CacheManager) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return m.SetWithRequestID(ctx, key, data, "", ttl)
}

// SetWithRequestID stores data along with the request ID of the response it
// came from.
func (m *CacheManager) SetWithRequestID(ctx context.Context, key string, data []byte, requestID string, ttl time.Duration) error {
	if m.cache == nil {
		return nil
	}

	if ttl <= 0 {
		ttl = m.policy.DefaultTTL
	}

	if ttl <= 0 {
		ttl = constants.DefaultCacheSetTTL
	}

	entry := &CacheEntry{
		Data:      data,
		ExpiresAt: time.Now().Add(ttl),
		RequestID: requestID,
	}

	err := m.cache.Set(ctx, key, entry)
	if err != nil {
		return err
	}

	m.count(func(s *CacheStats) { s.Sets++ })

	return nil
}

// Delete removes one key.
func (m *CacheManager) Delete(ctx context.Context, key string) error {
	if m.cache == nil {
		return nil
	}

	err := m.cache.Delete(ctx, key)
	if err != nil {
		return err
	}

	m.count(func(s *CacheStats) { s.Deletes++ })

	return nil
}

// Clear removes everything.
func (m *CacheManager) Clear(ctx context.Context) error {
	if m.cache == nil {
		return nil
	}

	return m.cache.Clear(ctx)
}

// GetStats returns a snapshot of the manager's counters.
func (m *CacheManager) GetStats() CacheStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.stats
}

func (m *CacheManager) count(update func(*CacheStats)) {
	m.mu.Lock()
	update(&m.stats)
	m.mu.Unlock()
}

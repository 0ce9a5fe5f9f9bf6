package cumulo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cast"
	"golang.org/x/sync/singleflight"
)

// FetchFunc loads the full attribute set for one entity.
type FetchFunc func(ctx context.Context) (AttributeTree, error)

// Model is a lazily populated, cached view of one remote entity.
// Construction performs no network activity; the first attribute access
// fetches the full attribute set and caches it. Concurrent first reads on
// the same instance share a single in-flight fetch. Two Models built for the
// same identifier are independent caches.
type Model struct {
	id    string
	fetch FetchFunc

	mu     sync.RWMutex
	attrs  AttributeTree
	loaded bool
	gen    uint64

	group singleflight.Group
}

// NewModel creates a Model for the entity identified by id. fetch is invoked
// lazily on first access and again after Refresh or Invalidate.
func NewModel(id string, fetch FetchFunc) *Model {
	return &Model{
		id:    id,
		fetch: fetch,
	}
}

// ID returns the entity identifier the Model was constructed with.
func (m *Model) ID() string {
	return m.id
}

// Loaded reports whether attributes are currently cached.
func (m *Model) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.loaded
}

// EnsureLoaded fetches and caches the attribute set if it is not cached yet.
// Concurrent callers share one fetch; later callers receive the in-flight
// result instead of issuing their own call.
func (m *Model) EnsureLoaded(ctx context.Context) error {
	m.mu.RLock()
	loaded := m.loaded
	startGen := m.gen
	m.mu.RUnlock()

	if loaded {
		return nil
	}

	_, err, _ := m.group.Do("fetch", func() (interface{}, error) {
		attrs, err := m.fetch(ctx)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		// An Invalidate that raced the fetch wins: drop the stale result.
		if m.gen == startGen {
			m.attrs = attrs
			m.loaded = true
		}
		m.mu.Unlock()

		return attrs, nil
	})
	if err != nil {
		return fmt.Errorf("fetching attributes for %s: %w", m.id, err)
	}

	return nil
}

// Attributes returns the full cached attribute set, fetching it first if
// needed.
func (m *Model) Attributes(ctx context.Context) (AttributeTree, error) {
	err := m.EnsureLoaded(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.attrs, nil
}

// Attribute returns one attribute value, fetching the attribute set on first
// access. A fetch failure is returned as-is, never as an absent attribute;
// ErrAttributeNotFound means the service responded without that attribute.
func (m *Model) Attribute(ctx context.Context, name string) (interface{}, error) {
	attrs, err := m.Attributes(ctx)
	if err != nil {
		return nil, err
	}

	value, ok := attrs.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", m.id, name, ErrAttributeNotFound)
	}

	return value, nil
}

// StringAttribute returns one attribute coerced to a string.
func (m *Model) StringAttribute(ctx context.Context, name string) (string, error) {
	value, err := m.Attribute(ctx, name)
	if err != nil {
		return "", err
	}

	return cast.ToString(value), nil
}

// IntAttribute returns one attribute coerced to an int.
func (m *Model) IntAttribute(ctx context.Context, name string) (int, error) {
	value, err := m.Attribute(ctx, name)
	if err != nil {
		return 0, err
	}

	return cast.ToInt(value), nil
}

// BoolAttribute returns one attribute coerced to a bool.
func (m *Model) BoolAttribute(ctx context.Context, name string) (bool, error) {
	value, err := m.Attribute(ctx, name)
	if err != nil {
		return false, err
	}

	return cast.ToBool(value), nil
}

// TimeAttribute returns one attribute coerced to a time.Time.
func (m *Model) TimeAttribute(ctx context.Context, name string) (time.Time, error) {
	value, err := m.Attribute(ctx, name)
	if err != nil {
		return time.Time{}, err
	}

	parsed, err := cast.ToTimeE(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s.%s: %w", m.id, name, err)
	}

	return parsed, nil
}

// Refresh drops the cached attributes unconditionally. The next access
// fetches fresh data.
func (m *Model) Refresh() {
	m.invalidate()
}

// Invalidate drops the cached attributes. Mutating operations call this so
// stale state is never served after a write.
func (m *Model) Invalidate() {
	m.invalidate()
}

// Reload drops the cache and immediately fetches fresh attributes.
func (m *Model) Reload(ctx context.Context) error {
	m.invalidate()

	return m.EnsureLoaded(ctx)
}

func (m *Model) invalidate() {
	m.mu.Lock()
	m.attrs = nil
	m.loaded = false
	m.gen++
	m.mu.Unlock()

	// Readers arriving after this point must not join a fetch that started
	// before the invalidation.
	m.group.Forget("fetch")
}

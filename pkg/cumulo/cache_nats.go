package cumulo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cumulo-io/cumulo-client/internal/constants"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSKVConfig configures the NATS JetStream key-value cache backend, used
// to share cached responses across processes.
type NATSKVConfig struct {
	// URL is the NATS server URL; defaults to nats.DefaultURL.
	URL string

	// Bucket is the KV bucket name; created when absent. Defaults to
	// "cumulo-client-cache".
	Bucket string

	// TTL applies bucket-wide in addition to per-entry expiry.
	TTL time.Duration

	// Optional authentication.
	Username  string
	Password  string
	Token     string
	CredsFile string

	// ConnectTimeout bounds the initial connection.
	ConnectTimeout time.Duration
}

// NATSKVCache is a Cache backed by a NATS JetStream key-value bucket.
// Entries are stored JSON-encoded so heterogeneous clients can share the
// bucket.
type NATSKVCache struct {
	conn *nats.Conn
	kv   jetstream.KeyValue
}

// NewNATSKVCache connects to NATS and ensures the configured bucket exists.
func NewNATSKVCache(config *NATSKVConfig) (*NATSKVCache, error) {
	if config == nil {
		return nil, ErrNATSConfigRequired
	}

	url := config.URL
	if url == "" {
		url = nats.DefaultURL
	}

	bucket := config.Bucket
	if bucket == "" {
		bucket = "cumulo-client-cache"
	}

	opts := []nats.Option{nats.Name("cumulo-client-cache")}

	if config.Username != "" {
		opts = append(opts, nats.UserInfo(config.Username, config.Password))
	}

	if config.Token != "" {
		opts = append(opts, nats.Token(config.Token))
	}

	if config.CredsFile != "" {
		opts = append(opts, nats.UserCredentials(config.CredsFile))
	}

	if config.ConnectTimeout > 0 {
		opts = append(opts, nats.Timeout(config.ConnectTimeout))
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.ShortHTTPTimeout)
	defer cancel()

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    config.TTL,
	})
	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("ensuring KV bucket %q: %w", bucket, err)
	}

	return &NATSKVCache{
		conn: conn,
		kv:   kv,
	}, nil
}

// Get retrieves and decodes an entry.
func (c *NATSKVCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	kvEntry, err := c.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrCacheKeyNotFound
		}

		return nil, fmt.Errorf("reading key %q: %w", key, err)
	}

	var entry CacheEntry

	err = json.Unmarshal(kvEntry.Value(), &entry)
	if err != nil {
		return nil, fmt.Errorf("decoding cached entry for %q: %w", key, err)
	}

	if entry.Expired() {
		_ = c.kv.Delete(ctx, key)

		return nil, ErrCacheEntryExpired
	}

	return &entry, nil
}

// Set encodes and stores an entry.
func (c *NATSKVCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding cache entry for %q: %w", key, err)
	}

	_, err = c.kv.Put(ctx, key, data)
	if err != nil {
		return fmt.Errorf("writing key %q: %w", key, err)
	}

	return nil
}

// Delete removes an entry. Missing keys are not an error.
func (c *NATSKVCache) Delete(ctx context.Context, key string) error {
	err := c.kv.Delete(ctx, key)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("deleting key %q: %w", key, err)
	}

	return nil
}

// Clear purges every key in the bucket.
func (c *NATSKVCache) Clear(ctx context.Context) error {
	lister, err := c.kv.ListKeys(ctx)
	if err != nil {
		return fmt.Errorf("listing keys: %w", err)
	}

	for key := range lister.Keys() {
		err = c.kv.Purge(ctx, key)
		if err != nil {
			return fmt.Errorf("purging key %q: %w", key, err)
		}
	}

	return nil
}

// Has reports whether a live entry exists for key.
func (c *NATSKVCache) Has(ctx context.Context, key string) bool {
	_, err := c.Get(ctx, key)

	return err == nil
}

// Close drains the NATS connection.
func (c *NATSKVCache) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

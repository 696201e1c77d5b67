package ssh

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// ConnectionError reports that every candidate host was tried and none
// accepted the connection. It wraps the error of the last attempt.
type ConnectionError struct {
	Key  string
	Last error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to any host for %s: %v", e.Key, e.Last)
}

func (e *ConnectionError) Unwrap() error {
	return e.Last
}

// Cache owns the live connections, keyed by "user@host". The key always uses
// the primary host name, so a handle obtained through the fallback host is
// still found under the primary key on the next acquire.
type Cache struct {
	dialer       Dialer
	defaultHost  string
	fallbackHost string
	identityFile string
	logger       *slog.Logger

	mu      sync.Mutex
	entries map[string]Client
	locks   map[string]*sync.Mutex
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithFallbackHost sets the host to try when the primary (default) host is
// unreachable.
func WithFallbackHost(host string) CacheOption {
	return func(c *Cache) { c.fallbackHost = host }
}

// WithIdentityFile sets the private key used for every connection.
func WithIdentityFile(path string) CacheOption {
	return func(c *Cache) { c.identityFile = path }
}

// WithConnectTimeout bounds each individual connection attempt.
func WithConnectTimeout(timeout time.Duration) CacheOption {
	return func(c *Cache) {
		if d, ok := c.dialer.(*XCryptoDialer); ok && timeout > 0 {
			d.ConnectTimeout = timeout
		}
	}
}

// NewCache builds a connection cache. defaultHost is the host the fallback
// applies to; a nil dialer selects the x/crypto dialer.
func NewCache(dialer Dialer, defaultHost string, logger *slog.Logger, opts ...CacheOption) *Cache {
	if dialer == nil {
		dialer = &XCryptoDialer{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Cache{
		dialer:      dialer,
		defaultHost: defaultHost,
		logger:      logger,
		entries:     make(map[string]Client),
		locks:       make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// keyLock returns the mutex serializing all cache operations for one key.
// Lock values are created on demand and never removed; the key space is the
// small set of configured targets.
func (c *Cache) keyLock(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	return l
}

// Acquire returns a live connection for user@host, reusing the cached one
// when it is still alive. A dead handle is evicted before any reconnect for
// the same key. The check-connect-insert sequence is serialized per key, so
// two concurrent acquires for one key produce exactly one dial.
func (c *Cache) Acquire(ctx context.Context, user, host string) (Client, error) {
	key := user + "@" + host
	l := c.keyLock(key)
	l.Lock()
	defer l.Unlock()
	return c.acquireLocked(ctx, key, user, host)
}

func (c *Cache) acquireLocked(ctx context.Context, key, user, host string) (Client, error) {
	c.mu.Lock()
	cached := c.entries[key]
	c.mu.Unlock()

	if cached != nil {
		if cached.Alive() {
			return cached, nil
		}
		c.logger.InfoContext(ctx, "evicting stale connection", "key", key)
		_ = cached.Close()
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
	}

	candidates := []string{host}
	if host == c.defaultHost && c.fallbackHost != "" {
		candidates = append(candidates, c.fallbackHost)
	}

	var lastErr error
	for _, candidate := range candidates {
		c.logger.InfoContext(ctx, "connecting", "user", user, "host", candidate)
		client, err := c.dialer.Dial(ctx, ConnectionParams{
			Host:         candidate,
			User:         user,
			IdentityFile: c.identityFile,
		})
		if err == nil {
			c.mu.Lock()
			c.entries[key] = client
			c.mu.Unlock()
			c.logger.InfoContext(ctx, "connected", "key", key, "host", candidate)
			return client, nil
		}
		c.logger.WarnContext(ctx, "connect failed", "user", user, "host", candidate, "error", err.Error())
		lastErr = err
	}

	return nil, &ConnectionError{Key: key, Last: lastErr}
}

// Execute runs a command through the cached connection for user@host,
// connecting first if needed. The key lock is held for the whole call, so
// command issuance against one cached session is serialized.
func (c *Cache) Execute(ctx context.Context, user, host, command string, timeout time.Duration) (ExecResult, error) {
	key := user + "@" + host
	l := c.keyLock(key)
	l.Lock()
	defer l.Unlock()

	client, err := c.acquireLocked(ctx, key, user, host)
	if err != nil {
		return ExecResult{}, err
	}
	return client.Execute(ctx, command, timeout)
}

// SFTP opens a bulk-transfer sub-channel on the cached connection for
// user@host, connecting first if needed.
func (c *Cache) SFTP(ctx context.Context, user, host string) (SFTPClient, error) {
	key := user + "@" + host
	l := c.keyLock(key)
	l.Lock()
	defer l.Unlock()

	client, err := c.acquireLocked(ctx, key, user, host)
	if err != nil {
		return nil, err
	}
	return client.SFTP()
}

// Len reports the number of cached connections.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close closes every cached connection and empties the cache.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, client := range c.entries {
		_ = client.Close()
		delete(c.entries, key)
	}
}

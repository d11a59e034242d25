package recent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

const keyPrefix = "dashboard:"

// MemcachedStore implements Store on memcached. Entries never expire.
type MemcachedStore struct {
	client *memcache.Client
}

// NewMemcachedStore creates a MemcachedStore. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). Zero timeout or
// maxIdleConns keep the client defaults.
func NewMemcachedStore(addrs string, timeout time.Duration, maxIdleConns int) *MemcachedStore {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedStore{client: client}
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (m *MemcachedStore) Get(ctx context.Context, key string) ([]string, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	item, err := m.client.Get(keyPrefix + key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	list, err := decode(item.Value)
	if err != nil {
		return nil, false, err
	}
	return list, true, nil
}

func (m *MemcachedStore) Set(ctx context.Context, key string, value []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := encode(value)
	if err != nil {
		return err
	}
	return m.client.Set(&memcache.Item{Key: keyPrefix + key, Value: raw})
}

// Ping checks that every server is reachable.
func (m *MemcachedStore) Ping() error {
	return m.client.Ping()
}

// Close releases idle connections. Call during shutdown.
func (m *MemcachedStore) Close() error {
	return m.client.Close()
}

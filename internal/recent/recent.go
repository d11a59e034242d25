// Package recent keeps the most-recently-searched place names and persists
// them through a small key/value Store.
package recent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

const (
	// Key is the single store key holding the list.
	Key = "recentSearches"

	// MaxEntries bounds the list length.
	MaxEntries = 5
)

// Store persists the recent list. Get returns ok=false when nothing was stored yet.
type Store interface {
	Get(ctx context.Context, key string) ([]string, bool, error)
	Set(ctx context.Context, key string, value []string) error
}

// Push moves name to the front, removing any earlier occurrence, and keeps
// at most MaxEntries. Comparison is exact. list is not modified.
func Push(list []string, name string) []string {
	out := make([]string, 0, MaxEntries)
	out = append(out, name)
	for _, s := range list {
		if len(out) == MaxEntries {
			break
		}
		if s != name {
			out = append(out, s)
		}
	}
	return out
}

// Load reads the list under Key. A missing entry is an empty list.
func Load(ctx context.Context, s Store) ([]string, error) {
	list, ok, err := s.Get(ctx, Key)
	if err != nil {
		observability.RecentStoreOperationsTotal.WithLabelValues("get", "error").Inc()
		return nil, fmt.Errorf("load recent searches: %w", err)
	}
	if !ok {
		observability.RecentStoreOperationsTotal.WithLabelValues("get", "miss").Inc()
		return []string{}, nil
	}
	observability.RecentStoreOperationsTotal.WithLabelValues("get", "hit").Inc()
	return clean(list), nil
}

// clean drops repeated names, keeping the first occurrence, and caps the list at MaxEntries.
func clean(list []string) []string {
	out := make([]string, 0, MaxEntries)
	seen := make(map[string]struct{}, len(list))
	for _, s := range list {
		if len(out) == MaxEntries {
			break
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Save writes list under Key.
func Save(ctx context.Context, s Store, list []string) error {
	if err := s.Set(ctx, Key, list); err != nil {
		observability.RecentStoreOperationsTotal.WithLabelValues("set", "error").Inc()
		return fmt.Errorf("save recent searches: %w", err)
	}
	observability.RecentStoreOperationsTotal.WithLabelValues("set", "success").Inc()
	return nil
}

func encode(list []string) ([]byte, error) {
	if list == nil {
		list = []string{}
	}
	return json.Marshal(list)
}

func decode(raw []byte) ([]string, error) {
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode recent searches: %w", err)
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}

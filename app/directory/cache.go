package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/lysyi3m/mp-rss/app/metrics"
	"golang.org/x/sync/singleflight"
)

type snapshot struct {
	accounts []Account
	byPUID   map[string]int
}

func newSnapshot(accounts []Account) *snapshot {
	byPUID := make(map[string]int, len(accounts))
	for i, a := range accounts {
		byPUID[a.PUID] = i
	}
	return &snapshot{accounts: accounts, byPUID: byPUID}
}

// Cache holds the last successfully loaded account list. Readers load an
// immutable snapshot through an atomic pointer; a reload builds a new
// snapshot off to the side and swaps it in only on success.
type Cache struct {
	loader  Loader
	current atomic.Pointer[snapshot]
	group   singleflight.Group
}

func NewCache(loader Loader) *Cache {
	return &Cache{loader: loader}
}

// Accounts returns the cached accounts, loading them on first use.
func (c *Cache) Accounts(ctx context.Context) ([]Account, error) {
	s, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(s.accounts), nil
}

// Get resolves a puid to its account.
func (c *Cache) Get(ctx context.Context, puid string) (Account, error) {
	s, err := c.snapshot(ctx)
	if err != nil {
		return Account{}, err
	}

	i, ok := s.byPUID[puid]
	if !ok {
		return Account{}, fmt.Errorf("%w: %s", ErrNotFound, puid)
	}
	return s.accounts[i], nil
}

// Refresh forces a reload. On failure the previous snapshot stays in
// place and the error is returned.
func (c *Cache) Refresh(ctx context.Context) ([]Account, error) {
	s, err := c.reload(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(s.accounts), nil
}

// Loaded reports whether a snapshot is available.
func (c *Cache) Loaded() bool {
	return c.current.Load() != nil
}

// Size returns the number of cached accounts, 0 before the first load.
func (c *Cache) Size() int {
	if s := c.current.Load(); s != nil {
		return len(s.accounts)
	}
	return 0
}

func (c *Cache) snapshot(ctx context.Context) (*snapshot, error) {
	if s := c.current.Load(); s != nil {
		return s, nil
	}
	return c.reload(ctx)
}

func (c *Cache) reload(ctx context.Context) (*snapshot, error) {
	v, err, shared := c.group.Do("load", func() (interface{}, error) {
		// Shared by every waiter, so one caller going away must not fail it.
		accounts, err := c.loader.Load(context.WithoutCancel(ctx))
		if err != nil {
			metrics.DirectoryLoads.WithLabelValues("failure").Inc()
			return nil, err
		}
		s := newSnapshot(accounts)
		c.current.Store(s)
		metrics.DirectoryLoads.WithLabelValues("success").Inc()
		return s, nil
	})
	if err != nil {
		slog.Error("Account directory load failed", "shared", shared, "stale_available", c.Loaded(), "error", err)
		if !errors.Is(err, ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		}
		return nil, err
	}
	return v.(*snapshot), nil
}

package directory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLoader struct {
	mu       sync.Mutex
	accounts []Account
	err      error
	calls    atomic.Int32
}

func (l *stubLoader) Load(ctx context.Context) ([]Account, error) {
	l.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	return append([]Account(nil), l.accounts...), nil
}

func (l *stubLoader) set(accounts []Account, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts = accounts
	l.err = err
}

func TestCacheLoadsLazilyOnce(t *testing.T) {
	loader := &stubLoader{accounts: []Account{{PUID: "ab12", Name: "Test Feed"}}}
	cache := NewCache(loader)

	assert.False(t, cache.Loaded())
	assert.Equal(t, 0, cache.Size())

	account, err := cache.Get(context.Background(), "ab12")
	require.NoError(t, err)
	assert.Equal(t, "Test Feed", account.Name)

	_, err = cache.Accounts(context.Background())
	require.NoError(t, err)

	assert.True(t, cache.Loaded())
	assert.Equal(t, 1, cache.Size())
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestCacheGetUnknownPUID(t *testing.T) {
	cache := NewCache(&stubLoader{accounts: []Account{{PUID: "ab12"}}})

	_, err := cache.Get(context.Background(), "zz99")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCacheFailedRefreshKeepsPreviousSnapshot(t *testing.T) {
	loader := &stubLoader{accounts: []Account{{PUID: "ab12", Name: "Old"}}}
	cache := NewCache(loader)

	_, err := cache.Accounts(context.Background())
	require.NoError(t, err)

	loader.set(nil, fmt.Errorf("%w: disk gone", ErrSourceUnavailable))
	_, err = cache.Refresh(context.Background())
	require.ErrorIs(t, err, ErrSourceUnavailable)

	account, err := cache.Get(context.Background(), "ab12")
	require.NoError(t, err)
	assert.Equal(t, "Old", account.Name)

	loader.set([]Account{{PUID: "cd34", Name: "New"}}, nil)
	accounts, err := cache.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	_, err = cache.Get(context.Background(), "ab12")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCacheFirstLoadFailureWrapsSourceError(t *testing.T) {
	cache := NewCache(&stubLoader{err: errors.New("boom")})

	_, err := cache.Accounts(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.False(t, cache.Loaded())
}

func TestCacheAccountsReturnsCopy(t *testing.T) {
	cache := NewCache(&stubLoader{accounts: []Account{{PUID: "ab12", Name: "Test Feed"}}})

	accounts, err := cache.Accounts(context.Background())
	require.NoError(t, err)
	accounts[0].Name = "mutated"

	account, err := cache.Get(context.Background(), "ab12")
	require.NoError(t, err)
	assert.Equal(t, "Test Feed", account.Name)
}

func TestCacheConcurrentReadsDuringRefresh(t *testing.T) {
	oldSet := []Account{{PUID: "p1", Name: "old"}, {PUID: "p2", Name: "old"}}
	newSet := []Account{{PUID: "p1", Name: "new"}, {PUID: "p2", Name: "new"}}
	loader := &stubLoader{accounts: oldSet}
	cache := NewCache(loader)
	_, err := cache.Accounts(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 64)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				accounts, err := cache.Accounts(context.Background())
				if err != nil {
					errs <- err
					return
				}
				// A snapshot is never a mix of old and new.
				if accounts[0].Name != accounts[1].Name {
					errs <- fmt.Errorf("partial snapshot: %v", accounts)
					return
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			loader.set(newSet, nil)
		} else {
			loader.set(oldSet, nil)
		}
		_, err := cache.Refresh(context.Background())
		require.NoError(t, err)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestCacheLoadIgnoresCallerCancellation(t *testing.T) {
	loader := &stubLoader{accounts: []Account{{PUID: "ab12", Name: "Test Feed"}}}
	cache := NewCache(loader)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	accounts, err := cache.Accounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
	assert.True(t, cache.Loaded())
}

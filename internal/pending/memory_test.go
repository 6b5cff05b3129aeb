package pending

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id string) Entry {
	return Entry{
		ID:            id,
		OwnerID:       "user-1",
		DeclaredType:  "financial",
		ExtractedText: "Fatura de energia",
		CreatedAt:     time.Now(),
	}
}

func TestMemoryStorePutGetTake(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, entry("a")))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.OwnerID)

	taken, err := s.Take(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", taken.ID)

	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreTakeIsExclusive(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, entry("a")))

	_, err := s.Take(ctx, "a")
	require.NoError(t, err)

	_, err = s.Take(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound, "second take finds nothing")
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore(20 * time.Millisecond)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, entry("a")))

	require.Eventually(t, func() bool {
		_, err := s.Get(ctx, "a")
		return err != nil
	}, time.Second, 5*time.Millisecond)

	_, err := s.Take(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, s.Len())
}

func TestMemoryStoreDeleteIsIdempotent(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, entry("a")))
	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "missing"))
}

func TestMemoryStorePutOverwritesEntry(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	e := entry("a")
	require.NoError(t, s.Put(ctx, e))
	e.DeclaredType = "budget"
	require.NoError(t, s.Put(ctx, e))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "budget", got.DeclaredType)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStoreStaleTimerDoesNotEvictFreshEntry(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, entry("a")))
	staleGen := s.entries["a"].gen
	require.NoError(t, s.Put(ctx, entry("a")))

	// a timer armed for the first put can fire after losing the Stop race;
	// it must not remove the entry stored by the second put
	s.expire("a", staleGen)

	_, err := s.Get(ctx, "a")
	assert.NoError(t, err)

	s.expire("a", s.entries["a"].gen)
	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreReputNearExpiryKeepsFreshTTL(t *testing.T) {
	s := NewMemoryStore(40 * time.Millisecond)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, entry("a")))
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, s.Put(ctx, entry("a")))

	// past the first timer's deadline, within the second's
	time.Sleep(20 * time.Millisecond)
	_, err := s.Get(ctx, "a")
	assert.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := s.Get(ctx, "a")
		return err != nil
	}, time.Second, 5*time.Millisecond)
}

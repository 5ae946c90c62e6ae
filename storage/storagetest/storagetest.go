// Package storagetest holds the behavioral suite every storage.CollectionStore must pass.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/poiesic/agentmatrix/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) storage.CollectionStore

// Run exercises the CollectionStore contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("load missing collection", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		_, rev, err := s.LoadCollection(context.Background(), "agents")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.Equal(t, storage.NoRevision, rev)
	})

	t.Run("save and load", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		rev, err := s.SaveCollection(ctx, "agents", []byte(`{"agents": []}`), storage.NoRevision)
		require.NoError(t, err)
		assert.NotEqual(t, storage.NoRevision, rev)

		data, loaded, err := s.LoadCollection(ctx, "agents")
		require.NoError(t, err)
		assert.Equal(t, `{"agents": []}`, string(data))
		assert.Equal(t, rev, loaded)
	})

	t.Run("nested names", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		_, err := s.SaveCollection(ctx, "index/agents_by_tenant", []byte(`{}`), storage.NoRevision)
		require.NoError(t, err)

		data, _, err := s.LoadCollection(ctx, "index/agents_by_tenant")
		require.NoError(t, err)
		assert.Equal(t, `{}`, string(data))

		_, _, err = s.LoadCollection(ctx, "agents_by_tenant")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("stale revision conflicts", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		rev1, err := s.SaveCollection(ctx, "agents", []byte(`{"v":1}`), storage.NoRevision)
		require.NoError(t, err)

		_, err = s.SaveCollection(ctx, "agents", []byte(`{"v":2}`), rev1)
		require.NoError(t, err)

		_, err = s.SaveCollection(ctx, "agents", []byte(`{"v":3}`), rev1)
		assert.ErrorIs(t, err, storage.ErrConflict)

		_, err = s.SaveCollection(ctx, "agents", []byte(`{"v":3}`), storage.NoRevision)
		assert.ErrorIs(t, err, storage.ErrConflict, "creating an existing collection conflicts")

		data, _, err := s.LoadCollection(ctx, "agents")
		require.NoError(t, err)
		assert.Equal(t, `{"v":2}`, string(data), "a rejected save leaves the previous document")
	})

	t.Run("saving to a missing collection with a revision conflicts", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		_, err := s.SaveCollection(context.Background(), "users", []byte(`{}`), storage.Revision("bogus"))
		assert.ErrorIs(t, err, storage.ErrConflict)
	})

	t.Run("concurrent compare and swap loses no update", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		const writers = 8
		const perWriter = 10

		var wg sync.WaitGroup
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perWriter; i++ {
					for {
						data, rev, err := s.LoadCollection(ctx, "counter")
						n := 0
						if err == nil {
							_, _ = fmt.Sscanf(string(data), "%d", &n)
						}
						_, err = s.SaveCollection(ctx, "counter", []byte(fmt.Sprint(n+1)), rev)
						if err == nil {
							break
						}
						if !assert.ErrorIs(t, err, storage.ErrConflict) {
							return
						}
					}
				}
			}()
		}
		wg.Wait()

		data, _, err := s.LoadCollection(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprint(writers*perWriter), string(data))
	})

	t.Run("log append and read", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		entries, err := s.ReadLog(ctx, "conv_missing")
		require.NoError(t, err)
		assert.Empty(t, entries)

		for i := 1; i <= 5; i++ {
			require.NoError(t, s.AppendLog(ctx, "conv_a", []byte(fmt.Sprintf(`{"n":%d}`, i))))
		}
		require.NoError(t, s.AppendLog(ctx, "conv_b", []byte(`{"n":99}`)))

		entries, err = s.ReadLog(ctx, "conv_a")
		require.NoError(t, err)
		require.Len(t, entries, 5)
		for i, e := range entries {
			assert.Equal(t, fmt.Sprintf(`{"n":%d}`, i+1), string(e))
		}

		tail, err := s.TailLog(ctx, "conv_a", 2)
		require.NoError(t, err)
		require.Len(t, tail, 2)
		assert.Equal(t, `{"n":4}`, string(tail[0]))
		assert.Equal(t, `{"n":5}`, string(tail[1]))

		tail, err = s.TailLog(ctx, "conv_a", 50)
		require.NoError(t, err)
		assert.Len(t, tail, 5)

		tail, err = s.TailLog(ctx, "conv_a", 0)
		require.NoError(t, err)
		assert.Empty(t, tail)

		tail, err = s.TailLog(ctx, "conv_missing", 3)
		require.NoError(t, err)
		assert.Empty(t, tail)
	})

	t.Run("concurrent appends keep every entry", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 40; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.AppendLog(ctx, "conv_busy", []byte(fmt.Sprintf(`{"n":%d}`, i))))
			}()
		}
		wg.Wait()

		entries, err := s.ReadLog(ctx, "conv_busy")
		require.NoError(t, err)
		assert.Len(t, entries, 40)
	})

	t.Run("invalid names", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		_, _, err := s.LoadCollection(ctx, "../escape")
		assert.ErrorIs(t, err, storage.ErrInvalidName)
		_, err = s.SaveCollection(ctx, "a/../../b", []byte(`{}`), storage.NoRevision)
		assert.ErrorIs(t, err, storage.ErrInvalidName)
		assert.ErrorIs(t, s.AppendLog(ctx, "conv_../../x", []byte(`{}`)), storage.ErrInvalidName)
	})

	t.Run("canceled context", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, _, err := s.LoadCollection(ctx, "agents")
		assert.ErrorIs(t, err, context.Canceled)
		_, err = s.SaveCollection(ctx, "agents", []byte(`{}`), storage.NoRevision)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("closed store", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Close())

		_, _, err := s.LoadCollection(context.Background(), "agents")
		assert.ErrorIs(t, err, storage.ErrStorageClosed)
		assert.ErrorIs(t, s.AppendLog(context.Background(), "conv_a", []byte(`{}`)), storage.ErrStorageClosed)
	})
}

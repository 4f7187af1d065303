package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socraticlabs/coach/pkg/agent"
)

func newTestStore() *MemoryStore {
	return NewMemoryStore(func(moduleType, sessionID string, ctx map[string]any) (agent.Agent, error) {
		return agent.New(moduleType, sessionID, ctx, nil)
	})
}

func TestStoreCreateAndGet(t *testing.T) {
	store := newTestStore()

	id, a, err := store.Create(agent.ModuleCoaching, map[string]any{"correct_answer": "A"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NotNil(t, a)

	got, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, id, got.State().SessionID)
}

func TestStoreGetMissIsNotAnError(t *testing.T) {
	store := newTestStore()
	_, ok := store.Get("unknown")
	assert.False(t, ok)
}

func TestStoreCreateUnsupportedModule(t *testing.T) {
	store := newTestStore()
	_, _, err := store.Create("surgery", nil)
	assert.ErrorIs(t, err, agent.ErrModuleNotSupported)
}

func TestStoreDeleteIdempotentAtInterface(t *testing.T) {
	store := newTestStore()
	id, _, err := store.Create(agent.ModuleCoaching, nil)
	require.NoError(t, err)

	assert.True(t, store.Delete(id))
	// Repeated delete reports not-found, not success.
	assert.False(t, store.Delete(id))
}

func TestStoreDoUnknownSession(t *testing.T) {
	store := newTestStore()
	err := store.Do("missing", func(agent.Agent) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreDoSerializesPerSession(t *testing.T) {
	store := newTestStore()
	id, _, err := store.Create(agent.ModuleCoaching, map[string]any{"correct_answer": "Z"})
	require.NoError(t, err)

	// Concurrent wrong answers must be applied one at a time; the count
	// is exact when no increment is lost.
	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Do(id, func(a agent.Agent) error {
				_, err := a.ProcessInput(context.Background(), agent.InputSelectOption,
					map[string]any{"option_id": "A"})
				return err
			})
		}()
	}
	wg.Wait()

	a, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, n, a.State().WrongCount)
}

func TestStoreIndependentSessionsProceed(t *testing.T) {
	store := newTestStore()
	var ids []string
	for i := 0; i < 5; i++ {
		id, _, err := store.Create(agent.ModuleCoaching, map[string]any{"tag": fmt.Sprint(i)})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = store.Do(id, func(a agent.Agent) error {
				a.Reset()
				return nil
			})
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		a, ok := store.Get(id)
		require.True(t, ok)
		assert.Equal(t, 1, a.State().CurrentPhase)
	}
}

package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/typex/internal/model"
)

// slowLog records saves in the order they are applied.
type slowLog struct {
	*Memory
	mu     sync.Mutex
	levels []int
}

func (s *slowLog) Save(ctx context.Context, p model.UserProfile) error {
	time.Sleep(time.Millisecond)
	s.mu.Lock()
	s.levels = append(s.levels, p.Level)
	s.mu.Unlock()
	return s.Memory.Save(ctx, p)
}

func TestWriterAppliesInOrder(t *testing.T) {
	backend := &slowLog{Memory: NewMemory()}
	w := NewWriter(backend, backend, quietLogger(), time.Second)

	for lvl := 1; lvl <= 20; lvl++ {
		p := model.NewProfile("ada")
		p.Level = lvl
		require.NoError(t, w.SaveProfile(p))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.Close(ctx))

	want := make([]int, 20)
	for i := range want {
		want[i] = i + 1
	}
	assert.Equal(t, want, backend.levels)
	got, err := backend.Load(context.Background(), "ada")
	require.NoError(t, err)
	assert.Equal(t, 20, got.Level, "last issued save wins")
}

func TestWriterCommit(t *testing.T) {
	mem := NewMemory()
	w := NewWriter(mem, mem, quietLogger(), 0)
	p := model.NewProfile("ada")
	w.Commit(p, model.EntryFromScore("ada", model.ScoreRecord{Level: 1, WPM: 25, Timestamp: when}))
	require.NoError(t, w.Close(context.Background()))

	_, err := mem.Load(context.Background(), "ada")
	require.NoError(t, err)
	entries, err := mem.Query(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 25, entries[0].WPM)
}

func TestWriterRejectsAfterClose(t *testing.T) {
	mem := NewMemory()
	w := NewWriter(mem, mem, quietLogger(), 0)
	require.NoError(t, w.Close(context.Background()))
	require.NoError(t, w.Close(context.Background()))
	assert.ErrorIs(t, w.SaveProfile(model.NewProfile("ada")), ErrWriterClosed)
}

// gatedStore blocks every save until release is closed.
type gatedStore struct {
	*Memory
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedStore) Save(ctx context.Context, p model.UserProfile) error {
	g.once.Do(func() { close(g.started) })
	<-g.release
	return g.Memory.Save(ctx, p)
}

func TestWriterDropsWhenQueueFull(t *testing.T) {
	backend := &gatedStore{Memory: NewMemory(), started: make(chan struct{}), release: make(chan struct{})}
	w := NewWriter(backend, backend, quietLogger(), 5*time.Second)

	require.NoError(t, w.SaveProfile(model.NewProfile("ada")))
	<-backend.started
	for i := 0; i < queueSize; i++ {
		require.NoError(t, w.SaveProfile(model.NewProfile("ada")))
	}

	done := make(chan error, 1)
	go func() { done <- w.SaveProfile(model.NewProfile("ada")) }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrQueueFull)
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a full queue")
	}

	close(backend.release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.Close(ctx))
}

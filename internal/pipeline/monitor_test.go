package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedSource struct {
	mu    sync.Mutex
	snaps []Snapshot
	reads int
}

// Status returns the scripted snapshots in order and then repeats the last one.
func (s *scriptedSource) Status() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.reads
	if i >= len(s.snaps) {
		i = len(s.snaps) - 1
	}
	s.reads++
	return s.snaps[i]
}

func TestMonitor_PollUntilFinished(t *testing.T) {
	src := &scriptedSource{snaps: []Snapshot{
		{Version: 1, State: StateUploading, ActiveFile: FileVideo, Percentage: 10},
		{Version: 2, State: StateUploading, ActiveFile: FileVideo, Percentage: 70},
		{Version: 3, State: StateUploaded, Percentage: 100},
		{Version: 4, State: StateCatalogued, Percentage: 100},
	}}
	m := NewMonitor(src)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	snap, err := m.Poll(ctx, time.Millisecond, Finished)
	require.NoError(t, err)
	assert.Equal(t, StateCatalogued, snap.State)
	assert.Equal(t, 100, m.Progress())
}

func TestMonitor_PollHonoursContext(t *testing.T) {
	m := NewMonitor(&scriptedSource{snaps: []Snapshot{{State: StateUploading}}})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	snap, err := m.Poll(ctx, time.Millisecond, Finished)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateUploading, snap.State)
}

func TestMonitor_WatchEmitsChangesOnly(t *testing.T) {
	src := &scriptedSource{snaps: []Snapshot{
		{Version: 0, State: StateIdle},
		{Version: 0, State: StateIdle},
		{Version: 5, State: StateUploading},
		{Version: 5, State: StateUploading},
		{Version: 9, State: StateCatalogFailed},
	}}
	m := NewMonitor(src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []State
	for snap := range m.Watch(ctx, time.Millisecond) {
		got = append(got, snap.State)
		if snap.State.Terminal() {
			cancel()
		}
	}
	assert.Equal(t, []State{StateIdle, StateUploading, StateCatalogFailed}, got)
}

func TestMonitor_ReflectsLivePipeline(t *testing.T) {
	store := newFakeStore()
	store.gate = make(chan struct{})
	p := New(store, &fakeCatalog{}, newLedger(t))
	m := NewMonitor(p)

	h, err := p.Submit(context.Background(), writeInputs(t, validSRT))
	require.NoError(t, err)
	assert.Equal(t, StateUploading, m.Status().State)
	assert.Equal(t, h.ItemID, m.Status().ItemID)

	close(store.gate)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := m.Poll(ctx, time.Millisecond, Finished)
	require.NoError(t, err)
	assert.Equal(t, StateCatalogued, snap.State)
}

func TestState_JSONNames(t *testing.T) {
	text, err := StateCatalogFailed.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "catalog_failed", string(text))
	assert.Equal(t, "state(42)", State(42).String())
}

package refresh

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krisalay/swr-cache/types"
)

func TestStaleAfter(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewPolicy(10 * time.Second)
	require.NotNil(t, p)

	ent := &types.CacheEntry{Resolved: true, ResolvedAt: at}
	assert.False(t, p.IsStale(ent, at.Add(9*time.Second)))
	assert.True(t, p.IsStale(ent, at.Add(10*time.Second)))

	// nothing to serve yet, so nothing is stale
	assert.False(t, p.IsStale(&types.CacheEntry{}, at.Add(time.Hour)))
}

func TestNewPolicyNever(t *testing.T) {
	assert.Nil(t, NewPolicy(Never))
}

func TestBoundedDispatcherDropsWhenSaturated(t *testing.T) {
	d := NewBoundedDispatcher(1)

	release := make(chan struct{})
	started := make(chan struct{})
	require.True(t, d.Dispatch(func() {
		close(started)
		<-release
	}))
	<-started

	assert.False(t, d.Dispatch(func() {}), "second refresh must be dropped")

	close(release)
	d.Close()

	assert.False(t, d.Dispatch(func() {}), "closed dispatcher accepts nothing")
}

func TestUnboundedDispatcherCloseWaits(t *testing.T) {
	d := NewDispatcher(0)

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		require.True(t, d.Dispatch(func() {
			time.Sleep(5 * time.Millisecond)
			ran.Add(1)
		}))
	}
	d.Close()

	assert.Equal(t, int32(10), ran.Load())
	assert.False(t, d.Dispatch(func() {}))
}

package identity

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xsukax/securechat/api/common"
)

type fakeRegistry struct {
	live  map[string]bool
	count int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{live: make(map[string]bool)}
}

func (r *fakeRegistry) IsLive(id string) bool {
	return r.live[id]
}

func (r *fakeRegistry) GetSessionCount() int {
	if r.count > 0 {
		return r.count
	}
	return len(r.live)
}

func TestAllocateFormat(t *testing.T) {
	a := NewAllocator(newFakeRegistry(), time.Minute)

	for i := 0; i < 100; i++ {
		id, err := a.Allocate()
		require.NoError(t, err)
		require.Len(t, id, IDLength)
		for _, c := range id {
			require.True(t, strings.ContainsRune(Alphabet, c), "unexpected character %q in %q", c, id)
		}
	}
}

func TestAllocateUnique(t *testing.T) {
	registry := newFakeRegistry()
	a := NewAllocator(registry, time.Minute)

	for i := 0; i < 1000; i++ {
		id, err := a.Allocate()
		require.NoError(t, err)
		require.False(t, registry.live[id], "allocated a live id %q", id)
		registry.live[id] = true
	}
}

func TestAllocateAllCollisions(t *testing.T) {
	// every candidate reads as live, so retries must run out
	a := NewAllocator(&collidingRegistry{}, time.Minute)
	_, err := a.Allocate()
	require.Error(t, err)
	require.Equal(t, common.EXHAUSTED_NAMESPACE, common.CodeOf(err))
}

type collidingRegistry struct{}

func (r *collidingRegistry) IsLive(id string) bool { return true }
func (r *collidingRegistry) GetSessionCount() int  { return 1 }

func TestAllocateNamespaceBound(t *testing.T) {
	registry := newFakeRegistry()
	registry.count = namespaceSize / 2
	a := NewAllocator(registry, time.Minute)

	_, err := a.Allocate()
	require.Error(t, err)
	require.Equal(t, common.EXHAUSTED_NAMESPACE, common.CodeOf(err))
}

func TestReleaseCooldown(t *testing.T) {
	registry := newFakeRegistry()
	a := NewAllocator(registry, time.Hour)

	id, err := a.Allocate()
	require.NoError(t, err)
	a.Release(id)

	_, held := a.cooldown.Get(id)
	require.True(t, held)

	// released ids stay out of circulation for the cooldown window
	for i := 0; i < 1000; i++ {
		next, err := a.Allocate()
		require.NoError(t, err)
		require.NotEqual(t, id, next)
		registry.live[next] = true
	}
}

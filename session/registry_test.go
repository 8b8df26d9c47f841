package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocalink/core"
)

func newRegistrySession(t *testing.T, r *Registry, id string) (*Session, *fakeWriter) {
	t.Helper()
	writer := &fakeWriter{}
	s := New(id, writer, &fakeDriver{}, testSegmenter(), 16000, core.NewDevelopmentLogger())
	s.Start()
	require.NoError(t, r.Add(s))
	t.Cleanup(s.Close)
	return s, writer
}

func TestRegistryAddGetRemove(t *testing.T) {
	r := NewRegistry(core.NewDevelopmentLogger())
	s, _ := newRegistrySession(t, r, "a")

	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, r.Count())

	assert.Error(t, r.Add(s), "duplicate registration must fail")

	r.Remove("a")
	_, ok = r.Get("a")
	assert.False(t, ok)
	assert.Zero(t, r.Count())
}

func TestAddToGroupAndRoster(t *testing.T) {
	r := NewRegistry(core.NewDevelopmentLogger())
	newRegistrySession(t, r, "a")
	newRegistrySession(t, r, "b")

	joined, leftGroup, _, err := r.AddToGroup("room-1", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, joined)
	assert.Empty(t, leftGroup)

	joined, _, _, err = r.AddToGroup("room-1", "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, joined)
	assert.Equal(t, []string{"a", "b"}, r.GroupMembers("room-1"))
}

func TestAddToGroupMovesBetweenGroups(t *testing.T) {
	r := NewRegistry(core.NewDevelopmentLogger())
	sa, _ := newRegistrySession(t, r, "a")
	newRegistrySession(t, r, "b")

	_, _, _, err := r.AddToGroup("room-1", "a")
	require.NoError(t, err)
	_, _, _, err = r.AddToGroup("room-1", "b")
	require.NoError(t, err)

	joined, leftGroup, left, err := r.AddToGroup("room-2", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, joined)
	assert.Equal(t, "room-1", leftGroup)
	assert.Equal(t, []string{"b"}, left)
	assert.Equal(t, "room-2", sa.Group())
}

func TestAddToGroupIdempotent(t *testing.T) {
	r := NewRegistry(core.NewDevelopmentLogger())
	newRegistrySession(t, r, "a")

	_, _, _, err := r.AddToGroup("room-1", "a")
	require.NoError(t, err)
	joined, leftGroup, _, err := r.AddToGroup("room-1", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, joined)
	assert.Empty(t, leftGroup)
}

func TestRemoveFromGroupDeletesEmptyGroup(t *testing.T) {
	r := NewRegistry(core.NewDevelopmentLogger())
	newRegistrySession(t, r, "a")

	_, _, _, err := r.AddToGroup("room-1", "a")
	require.NoError(t, err)

	roster, err := r.RemoveFromGroup("room-1", "a")
	require.NoError(t, err)
	assert.Empty(t, roster)
	assert.Nil(t, r.GroupMembers("room-1"))

	// Removing an absent member is a no-op, not an error.
	roster, err = r.RemoveFromGroup("room-1", "a")
	require.NoError(t, err)
	assert.Empty(t, roster)
}

func TestRemoveLeavesGroup(t *testing.T) {
	r := NewRegistry(core.NewDevelopmentLogger())
	newRegistrySession(t, r, "a")
	newRegistrySession(t, r, "b")

	_, _, _, err := r.AddToGroup("room-1", "a")
	require.NoError(t, err)
	_, _, _, err = r.AddToGroup("room-1", "b")
	require.NoError(t, err)

	group, roster := r.Remove("a")
	assert.Equal(t, "room-1", group)
	assert.Equal(t, []string{"b"}, roster)
	assert.Equal(t, []string{"b"}, r.GroupMembers("room-1"))
}

func TestBroadcastSkipsSenderAndIsolatesFailures(t *testing.T) {
	r := NewRegistry(core.NewDevelopmentLogger())
	_, wa := newRegistrySession(t, r, "a")
	_, wb := newRegistrySession(t, r, "b")
	sc, wc := newRegistrySession(t, r, "c")

	for _, id := range []string{"a", "b", "c"} {
		_, _, _, err := r.AddToGroup("room-1", id)
		require.NoError(t, err)
	}

	// One member's connection is already gone; delivery to the rest must not
	// be affected and the dead member is pruned.
	sc.Close()

	r.Broadcast("room-1", []byte("hello"), "a")
	require.Eventually(t, func() bool { return wb.frameCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, wa.frameCount(), "sender must not receive its own broadcast")
	assert.Zero(t, wc.frameCount())
	assert.Equal(t, []string{"a", "b"}, r.GroupMembers("room-1"))
}

func TestCloseAll(t *testing.T) {
	r := NewRegistry(core.NewDevelopmentLogger())
	sa, _ := newRegistrySession(t, r, "a")
	sb, _ := newRegistrySession(t, r, "b")

	r.CloseAll()
	assert.True(t, sa.Closed())
	assert.True(t, sb.Closed())
	assert.Zero(t, r.Count())
}

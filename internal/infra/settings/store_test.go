package settings

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_GetUnknownGuild(t *testing.T) {
	s := openTestStore(t)

	g, err := s.Get(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, Guild{GuildID: "g1"}, g)

	_, _, ok, err := s.AnnounceChannel(context.Background(), "g1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_SetAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, Guild{GuildID: "g1", TextChannelID: "c1", AnnounceMessages: true}))
	require.NoError(t, s.Set(ctx, Guild{GuildID: "g2", TextChannelID: "c2"}))

	g, err := s.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, Guild{GuildID: "g1", TextChannelID: "c1", AnnounceMessages: true}, g)

	ch, messages, ok, err := s.AnnounceChannel(ctx, "g2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "c2", ch)
	assert.False(t, messages)
}

func TestStore_SetReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, Guild{GuildID: "g1", TextChannelID: "c1", AnnounceMessages: true}))
	require.NoError(t, s.Set(ctx, Guild{GuildID: "g1", TextChannelID: ""}))

	_, _, ok, err := s.AnnounceChannel(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, ok, "clearing the channel disables announcements")
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, Guild{GuildID: "g1", TextChannelID: "c1"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	g, err := s.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "c1", g.TextChannelID)
}

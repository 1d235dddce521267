package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/guild-leveling/internal/domain/guild"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "leveling.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_GetPut(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.GetGuild(ctx, "g1")
	require.ErrorIs(t, err, guild.ErrGuildNotFound)

	g := guild.NewGuild("g1")
	g.AddMember("m1")
	_, err = s.PutGuild(ctx, g)
	require.NoError(t, err)

	g.Members[0].XP = 77
	g.AddMember("m2")
	_, err = s.PutGuild(ctx, g)
	require.NoError(t, err)

	got, err := s.GetGuild(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, g, got)
}

func TestStore_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))
	_, err = s.PutGuild(ctx, guild.NewGuild("g1"))
	require.NoError(t, err)

	got, err := s.GetGuild(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, got.Members)
	assert.NotNil(t, got.Members)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

package jsonfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/guild-leveling/internal/domain/guild"
)

func TestConfig_Path(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "levels.json"), Config{Dir: "data", Name: "levels"}.Path())
	assert.Equal(t, "levels.json", Config{Name: "levels"}.Path())
}

func TestStore_PersistsKeyedDocuments(t *testing.T) {
	cfg := Config{Dir: t.TempDir(), Name: "levels"}
	ctx := context.Background()

	s, err := Open(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, s.Ping(ctx))

	_, err = s.GetGuild(ctx, "g1")
	require.ErrorIs(t, err, guild.ErrGuildNotFound)

	g := guild.NewGuild("g1")
	g.AddMember("m1")
	g.Members[0].XP = 5
	_, err = s.PutGuild(ctx, g)
	require.NoError(t, err)

	raw, err := os.ReadFile(cfg.Path())
	require.NoError(t, err)
	var doc map[string]guild.Guild
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, *g, doc["g1"])

	reopened, err := Open(cfg, nil)
	require.NoError(t, err)
	got, err := reopened.GetGuild(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, g, got)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s, err := Open(Config{Dir: t.TempDir(), Name: "levels"}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	g := guild.NewGuild("g1")
	g.AddMember("m1")
	_, err = s.PutGuild(ctx, g)
	require.NoError(t, err)

	g.Members[0].XP = 1000
	got, err := s.GetGuild(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Members[0].XP)
}

func TestStore_ImportsLegacyFlatFile(t *testing.T) {
	dir := t.TempDir()
	legacy := `[
		{"memberID": "m1", "guildID": "g1", "level": 3, "xp": 40},
		{"userID": "m2", "guildID": "g1", "level": 1, "xp": 0},
		{"memberID": "m1", "guildID": "g2", "level": 0, "xp": -4},
		{"memberID": "m1", "guildID": "g1", "level": 9, "xp": 9},
		{"memberID": "", "guildID": "g3", "level": 1, "xp": 1}
	]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.json"), []byte(legacy), 0o644))

	s, err := Open(Config{Dir: dir, Name: "old"}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	g1, err := s.GetGuild(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []guild.Member{
		{ID: "m1", Level: 3, XP: 40},
		{ID: "m2", Level: 1, XP: 0},
	}, g1.Members)

	g2, err := s.GetGuild(ctx, "g2")
	require.NoError(t, err)
	assert.Equal(t, []guild.Member{{ID: "m1", Level: 1, XP: 0}}, g2.Members)

	_, err = s.GetGuild(ctx, "g3")
	assert.ErrorIs(t, err, guild.ErrGuildNotFound)
}

func TestStore_SanitizesKeyedFile(t *testing.T) {
	dir := t.TempDir()
	doc := `{
		"g1": null,
		"g2": {"id": "g2", "members": [
			{"id": "m1", "level": 0, "xp": -7},
			{"id": "", "level": 2, "xp": 2},
			{"id": "m2", "level": 99999999, "xp": 99999999999},
			{"id": "m1", "level": 5, "xp": 5}
		]},
		"g3": {"members": null}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "levels.json"), []byte(doc), 0o644))

	s, err := Open(Config{Dir: dir, Name: "levels"}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.GetGuild(ctx, "g1")
	assert.ErrorIs(t, err, guild.ErrGuildNotFound)

	g2, err := s.GetGuild(ctx, "g2")
	require.NoError(t, err)
	assert.Equal(t, []guild.Member{
		{ID: "m1", Level: 1, XP: 0},
		{ID: "m2", Level: guild.MaxLevel, XP: guild.MaxXP},
	}, g2.Members)

	g3, err := s.GetGuild(ctx, "g3")
	require.NoError(t, err)
	assert.Equal(t, "g3", g3.ID)
	assert.Empty(t, g3.Members)
	assert.NotNil(t, g3.Members)
}

func TestOpen_RejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("not json"), 0o644))

	_, err := Open(Config{Dir: dir, Name: "bad"}, nil)
	assert.Error(t, err)

	_, err = Open(Config{Dir: dir}, nil)
	assert.Error(t, err)
}

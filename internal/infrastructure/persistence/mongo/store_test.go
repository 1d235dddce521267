package mongo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/alem-hub/guild-leveling/internal/domain/guild"
)

type fakeDocs struct {
	docs    map[string]guildDoc
	findErr error
}

func (f *fakeDocs) Find(_ context.Context, id string) (*guildDoc, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	doc, ok := f.docs[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return &doc, nil
}

func (f *fakeDocs) Replace(_ context.Context, doc guildDoc) error {
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeDocs) Ping(context.Context) error  { return nil }
func (f *fakeDocs) Close(context.Context) error { return nil }

func TestStore_GetPut(t *testing.T) {
	docs := &fakeDocs{docs: map[string]guildDoc{}}
	s := newStore(docs)
	ctx := context.Background()

	_, err := s.GetGuild(ctx, "g1")
	require.ErrorIs(t, err, guild.ErrGuildNotFound)

	g := guild.NewGuild("g1")
	g.AddMember("m1")
	g.Members[0].Level = 3
	_, err = s.PutGuild(ctx, g)
	require.NoError(t, err)

	stored := docs.docs["g1"]
	assert.Equal(t, "g1", stored.ID)
	assert.WithinDuration(t, time.Now(), stored.UpdatedAt, time.Minute)

	got, err := s.GetGuild(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, g, got)
}

func TestStore_EmptyGuildKeepsSlice(t *testing.T) {
	docs := &fakeDocs{docs: map[string]guildDoc{"g1": {ID: "g1"}}}
	got, err := newStore(docs).GetGuild(context.Background(), "g1")
	require.NoError(t, err)
	assert.NotNil(t, got.Members)
}

func TestStore_FindFailure(t *testing.T) {
	docs := &fakeDocs{docs: map[string]guildDoc{}, findErr: errors.New("server selection timeout")}
	_, err := newStore(docs).GetGuild(context.Background(), "g1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, guild.ErrGuildNotFound)
}

func TestStore_Live(t *testing.T) {
	uri := os.Getenv("LEVELING_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("LEVELING_TEST_MONGO_URI not set")
	}

	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.URI = uri
	cfg.Collection = "guilds_test"

	s, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer s.Close()

	g := guild.NewGuild("live")
	g.AddMember("m1")
	_, err = s.PutGuild(ctx, g)
	require.NoError(t, err)

	got, err := s.GetGuild(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, g, got)
}

package progression

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/guild-leveling/internal/domain/guild"
	"github.com/alem-hub/guild-leveling/internal/domain/shared"
	"github.com/alem-hub/guild-leveling/internal/infrastructure/persistence/memory"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// countingRepo wraps a store and counts round trips.
type countingRepo struct {
	inner guild.Repository

	mu      sync.Mutex
	reads   int
	writes  int
	getErr  error
	putErr  error
	pingErr error
}

func newCountingRepo() *countingRepo {
	return &countingRepo{inner: memory.New()}
}

func (r *countingRepo) GetGuild(ctx context.Context, id string) (*guild.Guild, error) {
	r.mu.Lock()
	r.reads++
	err := r.getErr
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.inner.GetGuild(ctx, id)
}

func (r *countingRepo) PutGuild(ctx context.Context, g *guild.Guild) (*guild.Guild, error) {
	r.mu.Lock()
	r.writes++
	err := r.putErr
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.inner.PutGuild(ctx, g)
}

func (r *countingRepo) Ping(context.Context) error {
	return r.pingErr
}

func (r *countingRepo) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads, r.writes
}

func newEngine(t *testing.T, opts ...Option) (*Engine, *countingRepo) {
	t.Helper()

	repo := newCountingRepo()
	e := New(repo, opts...)
	require.NoError(t, e.Init(context.Background()))
	t.Cleanup(func() { _ = e.Close() })
	return e, repo
}

// recorder collects every event published on the engine bus.
type recorder struct {
	mu     sync.Mutex
	events []shared.Event
}

func record(t *testing.T, e *Engine) *recorder {
	t.Helper()
	r := &recorder{}
	_, err := e.Events().SubscribeAll(func(ev shared.Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, ev)
		return nil
	})
	require.NoError(t, err)
	return r
}

func (r *recorder) ofType(t shared.EventType) []shared.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []shared.Event
	for _, ev := range r.events {
		if ev.EventType() == t {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) types() []shared.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shared.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventType())
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// READINESS
// ══════════════════════════════════════════════════════════════════════════════

func TestEngine_NotReadyBeforeInit(t *testing.T) {
	repo := newCountingRepo()
	e := New(repo)

	_, err := e.AddXP(context.Background(), "g1", "m1", 10)
	assert.ErrorIs(t, err, shared.ErrNotReady)

	_, err = e.Leaderboard(context.Background(), "g1")
	assert.True(t, shared.IsNotReady(err))

	reads, writes := repo.counts()
	assert.Zero(t, reads)
	assert.Zero(t, writes)
	assert.False(t, e.Ready())
}

func TestEngine_InitFailsWhenStoreUnreachable(t *testing.T) {
	repo := newCountingRepo()
	repo.pingErr = errors.New("dial tcp: connection refused")

	e := New(repo)
	err := e.Init(context.Background())
	assert.ErrorIs(t, err, shared.ErrStore)
	assert.False(t, e.Ready())
}

func TestEngine_CloseMakesNotReady(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.Close())

	_, err := e.Get(context.Background(), "g1", "m1")
	assert.ErrorIs(t, err, shared.ErrNotReady)
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

func TestEngine_EnsureMemberIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e, repo := newEngine(t)

	first, err := e.EnsureMember(ctx, "g1", "m1")
	require.NoError(t, err)
	second, err := e.EnsureMember(ctx, "g1", "m1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, guild.Member{ID: "m1", Level: 1, XP: 0}, first)

	_, writes := repo.counts()
	assert.Equal(t, 1, writes)
}

func TestEngine_EnsureGuildNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	e, repo := newEngine(t)

	_, err := e.SetXP(ctx, "g1", "m1", 10)
	require.NoError(t, err)
	_, writesBefore := repo.counts()

	g, err := e.EnsureGuild(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, g.Members, 1)
	assert.Equal(t, 10, g.Members[0].XP)

	_, writesAfter := repo.counts()
	assert.Equal(t, writesBefore, writesAfter)
}

func TestEngine_EnsureGuildCreatesEmptyRecord(t *testing.T) {
	ctx := context.Background()
	e, repo := newEngine(t)

	g, err := e.EnsureGuild(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "g1", g.ID)
	assert.Empty(t, g.Members)

	board, err := e.Leaderboard(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, board)

	_, writes := repo.counts()
	assert.Equal(t, 1, writes)
}

// ══════════════════════════════════════════════════════════════════════════════
// XP
// ══════════════════════════════════════════════════════════════════════════════

func TestEngine_FirstAddXPCreatesMember(t *testing.T) {
	e, _ := newEngine(t)

	m, err := e.AddXP(context.Background(), "g1", "m1", 50)
	require.NoError(t, err)
	assert.Equal(t, guild.Member{ID: "m1", Level: 1, XP: 50}, m)
}

func TestEngine_XPForNextLevel(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	need, err := e.XPForNextLevel(ctx, "g1", "m1")
	require.NoError(t, err)
	assert.Equal(t, 220, need)

	_, err = e.SetLevel(ctx, "g1", "m1", 4)
	require.NoError(t, err)

	need, err = e.XPForNextLevel(ctx, "g1", "m1")
	require.NoError(t, err)
	assert.Equal(t, 5*5*5+50*5+100, need)
}

func TestEngine_RemainingXP(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	_, err := e.AddXP(ctx, "g1", "m1", 200)
	require.NoError(t, err)

	left, err := e.RemainingXP(ctx, "g1", "m1")
	require.NoError(t, err)
	assert.Equal(t, 20, left)
}

func TestEngine_AddXPLevelsUpOnceWithResidual(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	rec := record(t, e)

	m, err := e.AddXP(ctx, "g1", "m1", 600)
	require.NoError(t, err)

	levels := rec.ofType(shared.EventNewLevel)
	require.Len(t, levels, 1)
	assert.Equal(t, map[string]interface{}{"guild_id": "g1", "member_id": "m1", "level": 2}, levels[0].Payload())

	assert.Equal(t, 2, m.Level)
	assert.Equal(t, 600-220, m.XP)
	// Residual stays above the level 3 threshold until the next addition.
	assert.GreaterOrEqual(t, m.XP, m.XPForNextLevel())

	stored, err := e.Get(ctx, "g1", "m1")
	require.NoError(t, err)
	assert.Equal(t, m, stored)

	// The next addition catches up by one more level.
	m, err = e.AddXP(ctx, "g1", "m1", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Level)
	assert.Equal(t, 380-295, m.XP)
	assert.Len(t, rec.ofType(shared.EventNewLevel), 2)
}

func TestEngine_AddXPExactThreshold(t *testing.T) {
	e, _ := newEngine(t)

	m, err := e.AddXP(context.Background(), "g1", "m1", 220)
	require.NoError(t, err)
	assert.Equal(t, guild.Member{ID: "m1", Level: 2, XP: 0}, m)
}

func TestEngine_CascadePolicy(t *testing.T) {
	e, _ := newEngine(t, WithPolicy(guild.PolicyCascade))
	rec := record(t, e)

	m, err := e.AddXP(context.Background(), "g1", "m1", 600)
	require.NoError(t, err)

	assert.Equal(t, 3, m.Level)
	assert.Equal(t, 85, m.XP)

	levels := rec.ofType(shared.EventNewLevel)
	require.Len(t, levels, 2)
	assert.Equal(t, 2, levels[0].(shared.NewLevelEvent).Level)
	assert.Equal(t, 3, levels[1].(shared.NewLevelEvent).Level)
}

func TestEngine_ResetOverflow(t *testing.T) {
	e, _ := newEngine(t, WithOverflow(guild.OverflowReset))

	m, err := e.AddXP(context.Background(), "g1", "m1", 600)
	require.NoError(t, err)
	assert.Equal(t, guild.Member{ID: "m1", Level: 2, XP: 0}, m)
}

func TestEngine_OverflowDefaultsToCarry(t *testing.T) {
	e, _ := newEngine(t, WithOverflow(guild.OverflowMode(99)))
	assert.Equal(t, guild.OverflowCarry, e.Overflow())

	m, err := e.AddXP(context.Background(), "g1", "m1", 300)
	require.NoError(t, err)
	assert.Equal(t, guild.Member{ID: "m1", Level: 2, XP: 80}, m)
}

func TestEngine_SubtractXPInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	e, repo := newEngine(t)
	rec := record(t, e)

	_, err := e.AddXP(ctx, "g1", "m1", 30)
	require.NoError(t, err)
	_, writesBefore := repo.counts()

	m, err := e.SubtractXP(ctx, "g1", "m1", 31)
	assert.ErrorIs(t, err, shared.ErrInsufficientBalance)
	assert.Equal(t, 30, m.XP)

	_, writesAfter := repo.counts()
	assert.Equal(t, writesBefore, writesAfter)
	assert.Empty(t, rec.ofType(shared.EventXPSubtracted))

	stored, err := e.Get(ctx, "g1", "m1")
	require.NoError(t, err)
	assert.Equal(t, 30, stored.XP)
}

func TestEngine_SubtractXP(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	_, err := e.AddXP(ctx, "g1", "m1", 30)
	require.NoError(t, err)

	m, err := e.SubtractXP(ctx, "g1", "m1", 30)
	require.NoError(t, err)
	assert.Equal(t, 0, m.XP)
}

func TestEngine_SetXPRoundTrip(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	_, err := e.SetXP(ctx, "g1", "m1", 42)
	require.NoError(t, err)

	m, err := e.Get(ctx, "g1", "m1")
	require.NoError(t, err)
	assert.Equal(t, 42, m.XP)
}

func TestEngine_SetXPDoesNotLevelUp(t *testing.T) {
	e, _ := newEngine(t)
	rec := record(t, e)

	m, err := e.SetXP(context.Background(), "g1", "m1", 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Level)
	assert.Empty(t, rec.ofType(shared.EventNewLevel))
}

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL
// ══════════════════════════════════════════════════════════════════════════════

func TestEngine_LevelOperations(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	m, err := e.AddLevel(ctx, "g1", "m1", 4)
	require.NoError(t, err)
	assert.Equal(t, 5, m.Level)

	m, err = e.SubtractLevel(ctx, "g1", "m1", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Level)

	m, err = e.SetLevel(ctx, "g1", "m1", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, m.Level)
	assert.Equal(t, 0, m.XP)
}

func TestEngine_SubtractLevelBelowOne(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	_, err := e.SetLevel(ctx, "g1", "m1", 2)
	require.NoError(t, err)

	m, err := e.SubtractLevel(ctx, "g1", "m1", 2)
	assert.True(t, shared.IsInsufficientBalance(err))
	assert.Equal(t, 2, m.Level)
}

func TestEngine_UnifiedOperations(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	_, err := e.Add(ctx, "g1", "m1", guild.PropertyXP, 10)
	require.NoError(t, err)
	_, err = e.Set(ctx, "g1", "m1", guild.PropertyLevel, 3)
	require.NoError(t, err)
	m, err := e.Subtract(ctx, "g1", "m1", guild.PropertyXP, 4)
	require.NoError(t, err)

	assert.Equal(t, guild.Member{ID: "m1", Level: 3, XP: 6}, m)

	_, err = e.Add(ctx, "g1", "m1", guild.Property("gold"), 1)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

// ══════════════════════════════════════════════════════════════════════════════
// VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

func TestEngine_Validation(t *testing.T) {
	ctx := context.Background()
	e, repo := newEngine(t)

	tests := []struct {
		name    string
		call    func() error
		message string
	}{
		{"blank guild", func() error { _, err := e.AddXP(ctx, "  ", "m1", 1); return err }, "guild_id must not be blank"},
		{"empty member", func() error { _, err := e.Get(ctx, "g1", ""); return err }, "member_id must not be blank"},
		{"long id", func() error { _, err := e.SetXP(ctx, strings.Repeat("g", 65), "m1", 1); return err }, "guild_id must be at most 64"},
		{"negative xp", func() error { _, err := e.AddXP(ctx, "g1", "m1", -5); return err }, "amount must be >= 0"},
		{"negative level", func() error { _, err := e.SubtractLevel(ctx, "g1", "m1", -1); return err }, "amount must be >= 0"},
		{"level zero", func() error { _, err := e.SetLevel(ctx, "g1", "m1", 0); return err }, "level must be >= 1"},
		{"xp amount above ceiling", func() error { _, err := e.AddXP(ctx, "g1", "m1", math.MaxInt); return err }, "amount must be <= 1000000000"},
		{"level amount above ceiling", func() error { _, err := e.AddLevel(ctx, "g1", "m1", math.MaxInt); return err }, "amount must be <= 1000000000"},
		{"level above ceiling", func() error { _, err := e.SetLevel(ctx, "g1", "m1", math.MaxInt-1); return err }, "level must be <= 10000"},
		{"zero limit", func() error { _, err := e.Top(ctx, "g1", 0); return err }, "limit must be >= 1"},
		{"blank leaderboard guild", func() error { _, err := e.Leaderboard(ctx, ""); return err }, "guild_id must not be blank"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}

	reads, writes := repo.counts()
	assert.Zero(t, reads)
	assert.Zero(t, writes)
}

func TestEngine_AddPastCeilingIsRejected(t *testing.T) {
	ctx := context.Background()
	e, repo := newEngine(t)
	rec := record(t, e)

	_, err := e.SetXP(ctx, "g1", "m1", guild.MaxXP-10)
	require.NoError(t, err)
	_, err = e.SetLevel(ctx, "g1", "m1", guild.MaxLevel-1)
	require.NoError(t, err)
	_, writesBefore := repo.counts()
	eventsBefore := len(rec.events)

	_, err = e.AddXP(ctx, "g1", "m1", 11)
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))

	_, err = e.AddLevel(ctx, "g1", "m1", 2)
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))

	_, writesAfter := repo.counts()
	assert.Equal(t, writesBefore, writesAfter)
	assert.Len(t, rec.events, eventsBefore)

	m, err := e.Get(ctx, "g1", "m1")
	require.NoError(t, err)
	assert.Equal(t, guild.Member{ID: "m1", Level: guild.MaxLevel - 1, XP: guild.MaxXP - 10}, m)

	m, err = e.AddLevel(ctx, "g1", "m1", 1)
	require.NoError(t, err)
	assert.Equal(t, guild.MaxLevel, m.Level)
}

func TestEngine_XPForNextLevelAtMaxLevel(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	_, err := e.SetLevel(ctx, "g1", "m1", guild.MaxLevel)
	require.NoError(t, err)

	threshold, err := e.XPForNextLevel(ctx, "g1", "m1")
	require.NoError(t, err)
	assert.Equal(t, guild.XPForLevel(guild.MaxLevel+1), threshold)
	assert.Greater(t, threshold, 0)
}

func TestEngine_CascadeWithLargeAddIsBounded(t *testing.T) {
	e, _ := newEngine(t, WithPolicy(guild.PolicyCascade))
	rec := record(t, e)

	m, err := e.AddXP(context.Background(), "g1", "m1", guild.MaxXP)
	require.NoError(t, err)

	assert.Greater(t, m.Level, 1)
	assert.GreaterOrEqual(t, m.XP, 0)
	assert.Less(t, m.XP, m.XPForNextLevel())
	assert.Len(t, rec.ofType(shared.EventNewLevel), m.Level-1)
}

// ══════════════════════════════════════════════════════════════════════════════
// STORE FAILURES
// ══════════════════════════════════════════════════════════════════════════════

func TestEngine_StoreFailures(t *testing.T) {
	ctx := context.Background()
	e, repo := newEngine(t)
	rec := record(t, e)

	repo.putErr = errors.New("disk full")
	_, err := e.AddXP(ctx, "g1", "m1", 500)
	assert.True(t, shared.IsStore(err))
	assert.Empty(t, rec.types())

	repo.putErr = nil
	repo.getErr = errors.New("connection reset")
	_, err = e.Leaderboard(ctx, "g1")
	assert.ErrorIs(t, err, shared.ErrStore)
	assert.False(t, shared.IsNotFound(err))
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENTS
// ══════════════════════════════════════════════════════════════════════════════

func TestEngine_EventOrder(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	rec := record(t, e)

	_, err := e.AddXP(ctx, "g1", "m1", 300)
	require.NoError(t, err)
	_, err = e.SetLevel(ctx, "g1", "m1", 5)
	require.NoError(t, err)

	assert.Equal(t, []shared.EventType{
		shared.EventXPAdded,
		shared.EventNewLevel,
		shared.EventLevelSet,
	}, rec.types())

	added := rec.ofType(shared.EventXPAdded)[0].(shared.MutationEvent)
	assert.Equal(t, 300, added.Amount)
	assert.Equal(t, 0, added.Old)
	assert.Equal(t, 80, added.New)
}

func TestEngine_MutationEventsDisabled(t *testing.T) {
	e, _ := newEngine(t, WithMutationEvents(false))
	rec := record(t, e)

	_, err := e.AddXP(context.Background(), "g1", "m1", 300)
	require.NoError(t, err)

	assert.Equal(t, []shared.EventType{shared.EventNewLevel}, rec.types())
}

func TestEngine_HandlerErrorsDoNotFailOperation(t *testing.T) {
	e, _ := newEngine(t)
	_, err := e.Events().Subscribe(shared.EventNewLevel, func(shared.Event) error {
		return errors.New("announce channel missing")
	})
	require.NoError(t, err)

	m, err := e.AddXP(context.Background(), "g1", "m1", 220)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Level)
}

func TestEngine_HandlerSeesPersistedRecord(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t, WithGuildLocks())

	var seen guild.Member
	_, err := e.Events().Once(shared.EventNewLevel, func(shared.Event) error {
		var err error
		seen, err = e.Get(ctx, "g1", "m1")
		return err
	})
	require.NoError(t, err)

	_, err = e.AddXP(ctx, "g1", "m1", 250)
	require.NoError(t, err)
	assert.Equal(t, guild.Member{ID: "m1", Level: 2, XP: 30}, seen)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

func seedLevels(t *testing.T, e *Engine, guildID string, levels map[string]int, order []string) {
	t.Helper()
	for _, id := range order {
		_, err := e.SetLevel(context.Background(), guildID, id, levels[id])
		require.NoError(t, err)
	}
}

func TestEngine_LeaderboardSortsByLevel(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	seedLevels(t, e, "g1", map[string]int{"a": 3, "b": 1, "c": 5, "d": 2}, []string{"a", "b", "c", "d"})

	board, err := e.Leaderboard(ctx, "g1")
	require.NoError(t, err)

	levels := make([]int, 0, len(board))
	for _, m := range board {
		levels = append(levels, m.Level)
	}
	assert.Equal(t, []int{5, 3, 2, 1}, levels)
}

func TestEngine_LeaderboardKeepsTieOrder(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	seedLevels(t, e, "g1", map[string]int{"x": 2, "y": 4, "z": 2}, []string{"x", "y", "z"})

	board, err := e.Leaderboard(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, []string{"y", "x", "z"}, []string{board[0].ID, board[1].ID, board[2].ID})
}

func TestEngine_LeaderboardMissingGuild(t *testing.T) {
	e, repo := newEngine(t)

	_, err := e.Leaderboard(context.Background(), "nope")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, writes := repo.counts()
	assert.Zero(t, writes)
}

func TestEngine_TopAndRank(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	seedLevels(t, e, "g1", map[string]int{"a": 3, "b": 1, "c": 5}, []string{"a", "b", "c"})

	top, err := e.Top(ctx, "g1", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "c", top[0].ID)
	assert.Equal(t, "a", top[1].ID)

	all, err := e.Top(ctx, "g1", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	rank, err := e.Rank(ctx, "g1", "b")
	require.NoError(t, err)
	assert.Equal(t, 3, rank)

	_, err = e.Rank(ctx, "g1", "ghost")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSortByLevelDoesNotMutateInput(t *testing.T) {
	in := []guild.Member{{ID: "a", Level: 1}, {ID: "b", Level: 2}}
	out := SortByLevel(in)

	assert.Equal(t, "b", out[0].ID)
	assert.Equal(t, "a", in[0].ID)
	assert.NotNil(t, SortByLevel(nil))
}

// ══════════════════════════════════════════════════════════════════════════════
// CONCURRENCY & METRICS
// ══════════════════════════════════════════════════════════════════════════════

func TestEngine_GuildLocksPreventLostUpdates(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t, WithGuildLocks())

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.AddXP(ctx, "g1", "m1", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	m, err := e.Get(ctx, "g1", "m1")
	require.NoError(t, err)
	assert.Equal(t, 40, m.XP)
}

func TestEngine_Metrics(t *testing.T) {
	ctx := context.Background()
	metrics := NewMetrics(prometheus.NewRegistry())
	e, _ := newEngine(t, WithMetrics(metrics))

	_, err := e.AddXP(ctx, "g1", "m1", 220)
	require.NoError(t, err)
	_, err = e.SubtractXP(ctx, "g1", "m1", 5)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.levelUps))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.operations.WithLabelValues("AddXP", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.operations.WithLabelValues("SubtractXP", "insufficient_balance")))
}

package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/alem-hub/guild-leveling/internal/domain/guild"
	"github.com/alem-hub/guild-leveling/pkg/logger"
)

// Engine is the part of the progression engine the API uses.
type Engine interface {
	Get(ctx context.Context, guildID, memberID string) (guild.Member, error)
	Add(ctx context.Context, guildID, memberID string, prop guild.Property, amount int) (guild.Member, error)
	Subtract(ctx context.Context, guildID, memberID string, prop guild.Property, amount int) (guild.Member, error)
	Set(ctx context.Context, guildID, memberID string, prop guild.Property, amount int) (guild.Member, error)
	XPForNextLevel(ctx context.Context, guildID, memberID string) (int, error)
	RemainingXP(ctx context.Context, guildID, memberID string) (int, error)
	Leaderboard(ctx context.Context, guildID string) ([]guild.Member, error)
	Top(ctx context.Context, guildID string, n int) ([]guild.Member, error)
	Rank(ctx context.Context, guildID, memberID string) (int, error)
}

// MemberResponse is a member record as returned by the API.
type MemberResponse struct {
	GuildID     string `json:"guild_id"`
	MemberID    string `json:"member_id"`
	Level       int    `json:"level"`
	XP          int    `json:"xp"`
	NextLevelXP int    `json:"next_level_xp"`
}

func newMemberResponse(guildID string, m guild.Member) MemberResponse {
	return MemberResponse{
		GuildID:     guildID,
		MemberID:    m.ID,
		Level:       m.Level,
		XP:          m.XP,
		NextLevelXP: m.XPForNextLevel(),
	}
}

// LeaderboardEntry is one row of the leaderboard.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	MemberID string `json:"member_id"`
	Level    int    `json:"level"`
	XP       int    `json:"xp"`
}

// MutationRequest is the body of the xp and level endpoints.
type MutationRequest struct {
	Op     string `json:"op" binding:"required,oneof=add subtract set"`
	Amount *int   `json:"amount" binding:"required"`
}

// LevelingHandler serves the member and leaderboard routes.
type LevelingHandler struct {
	engine Engine
	logger *logger.Logger
}

// NewLevelingHandler creates the handler.
func NewLevelingHandler(engine Engine, log *logger.Logger) *LevelingHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &LevelingHandler{engine: engine, logger: log}
}

// Register mounts the routes on rg.
func (h *LevelingHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/guilds/:guild")
	g.GET("/leaderboard", h.Leaderboard)

	m := g.Group("/members/:member")
	m.GET("", h.GetMember)
	m.POST("/xp", h.mutate(guild.PropertyXP))
	m.POST("/level", h.mutate(guild.PropertyLevel))
	m.GET("/next-level", h.NextLevel)
	m.GET("/rank", h.Rank)
}

// GetMember returns the member, creating it on first reference.
func (h *LevelingHandler) GetMember(c *gin.Context) {
	guildID, memberID := c.Param("guild"), c.Param("member")

	m, err := h.engine.Get(c.Request.Context(), guildID, memberID)
	if err != nil {
		FailWith(c, err)
		return
	}
	OK(c, http.StatusOK, newMemberResponse(guildID, m))
}

func (h *LevelingHandler) mutate(prop guild.Property) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req MutationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			Fail(c, http.StatusBadRequest, CodeValidation, err.Error())
			return
		}

		guildID, memberID := c.Param("guild"), c.Param("member")
		ctx := c.Request.Context()

		var (
			m   guild.Member
			err error
		)
		switch req.Op {
		case "add":
			m, err = h.engine.Add(ctx, guildID, memberID, prop, *req.Amount)
		case "subtract":
			m, err = h.engine.Subtract(ctx, guildID, memberID, prop, *req.Amount)
		case "set":
			m, err = h.engine.Set(ctx, guildID, memberID, prop, *req.Amount)
		}
		if err != nil {
			FailWith(c, err)
			return
		}

		logger.FromContext(ctx).Debug("member updated",
			logger.GuildID(guildID),
			logger.MemberID(memberID),
			logger.Operation(req.Op+"_"+string(prop)),
			logger.Amount(*req.Amount),
		)
		OK(c, http.StatusOK, newMemberResponse(guildID, m))
	}
}

// NextLevel returns the XP required for the next level and how much is left.
func (h *LevelingHandler) NextLevel(c *gin.Context) {
	guildID, memberID := c.Param("guild"), c.Param("member")
	ctx := c.Request.Context()

	required, err := h.engine.XPForNextLevel(ctx, guildID, memberID)
	if err != nil {
		FailWith(c, err)
		return
	}
	remaining, err := h.engine.RemainingXP(ctx, guildID, memberID)
	if err != nil {
		FailWith(c, err)
		return
	}

	OK(c, http.StatusOK, gin.H{"required": required, "remaining": remaining})
}

// Rank returns the member's 1-based leaderboard position.
func (h *LevelingHandler) Rank(c *gin.Context) {
	guildID, memberID := c.Param("guild"), c.Param("member")

	rank, err := h.engine.Rank(c.Request.Context(), guildID, memberID)
	if err != nil {
		FailWith(c, err)
		return
	}
	OK(c, http.StatusOK, gin.H{"guild_id": guildID, "member_id": memberID, "rank": rank})
}

// Leaderboard returns the sorted members, optionally limited by ?limit=n.
func (h *LevelingHandler) Leaderboard(c *gin.Context) {
	guildID := c.Param("guild")
	ctx := c.Request.Context()

	var (
		members []guild.Member
		err     error
	)
	if raw, ok := c.GetQuery("limit"); ok {
		limit, convErr := strconv.Atoi(raw)
		if convErr != nil {
			Fail(c, http.StatusBadRequest, CodeValidation, "limit must be an integer")
			return
		}
		members, err = h.engine.Top(ctx, guildID, limit)
	} else {
		members, err = h.engine.Leaderboard(ctx, guildID)
	}
	if err != nil {
		FailWith(c, err)
		return
	}

	entries := make([]LeaderboardEntry, len(members))
	for i, m := range members {
		entries[i] = LeaderboardEntry{Rank: i + 1, MemberID: m.ID, Level: m.Level, XP: m.XP}
	}
	OKWithMeta(c, http.StatusOK, entries, &ResponseMeta{TotalCount: len(entries)})
}

// Package jsonfile implements the file document store: every guild of one
// database lives in <dir>/<name>.json as an object keyed by guild ID.
//
// Files written by the older flat format (an array of
// {memberID, guildID, level, xp} rows) are converted on Open and rewritten
// in the keyed format on the next write.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/alem-hub/guild-leveling/internal/domain/guild"
	"github.com/alem-hub/guild-leveling/pkg/logger"
)

// Config locates the database file.
type Config struct {
	Dir  string
	Name string
}

// Path returns <dir>/<name>.json.
func (c Config) Path() string {
	dir := c.Dir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, c.Name+".json")
}

// Store keeps the decoded file in memory and rewrites it on every PutGuild.
type Store struct {
	path   string
	logger *logger.Logger

	mu     sync.RWMutex
	guilds map[string]*guild.Guild
}

// Open reads the file if it exists. A missing file is an empty database.
func Open(cfg Config, log *logger.Logger) (*Store, error) {
	if cfg.Name == "" {
		return nil, errors.New("database name is required")
	}
	if log == nil {
		log = logger.Nop()
	}

	s := &Store{
		path:   cfg.Path(),
		logger: log.With(logger.Component("jsonfile")),
		guilds: make(map[string]*guild.Guild),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// legacyRow is one row of the flat format.
type legacyRow struct {
	MemberID string `json:"memberID"`
	UserID   string `json:"userID"`
	GuildID  string `json:"guildID"`
	Level    int    `json:"level"`
	XP       int    `json:"xp"`
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil
	}

	var keyed map[string]*guild.Guild
	if err := json.Unmarshal(data, &keyed); err == nil {
		s.guilds = sanitize(keyed)
		if len(s.guilds) != len(keyed) {
			s.logger.Warn("skipped empty guild entries",
				logger.String("path", s.path),
				logger.Int("skipped", len(keyed)-len(s.guilds)),
			)
		}
		return nil
	}

	var rows []legacyRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("decode %s: %w", s.path, err)
	}
	s.guilds = importLegacy(rows)
	s.logger.Info("imported legacy flat file",
		logger.String("path", s.path),
		logger.Int("rows", len(rows)),
		logger.Int("guilds", len(s.guilds)),
	)
	return nil
}

func importLegacy(rows []legacyRow) map[string]*guild.Guild {
	guilds := make(map[string]*guild.Guild)
	for _, r := range rows {
		memberID := r.MemberID
		if memberID == "" {
			memberID = r.UserID
		}
		if r.GuildID == "" || memberID == "" {
			continue
		}

		g, ok := guilds[r.GuildID]
		if !ok {
			g = guild.NewGuild(r.GuildID)
			guilds[r.GuildID] = g
		}
		if g.FindMember(memberID) >= 0 {
			continue
		}
		g.Members = append(g.Members, clampMember(guild.Member{ID: memberID, Level: r.Level, XP: r.XP}))
	}
	return guilds
}

// sanitize drops null guilds and blank or duplicate members, and clamps
// counters into their valid range.
func sanitize(keyed map[string]*guild.Guild) map[string]*guild.Guild {
	guilds := make(map[string]*guild.Guild, len(keyed))
	for id, g := range keyed {
		if g == nil || id == "" {
			continue
		}

		clean := guild.NewGuild(id)
		for _, m := range g.Members {
			if m.ID == "" || clean.FindMember(m.ID) >= 0 {
				continue
			}
			clean.Members = append(clean.Members, clampMember(m))
		}
		guilds[id] = clean
	}
	return guilds
}

func clampMember(m guild.Member) guild.Member {
	m.Level = min(max(m.Level, guild.DefaultLevel), guild.MaxLevel)
	m.XP = min(max(m.XP, 0), guild.MaxXP)
	return m
}

// GetGuild implements guild.Repository.
func (s *Store) GetGuild(_ context.Context, guildID string) (*guild.Guild, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.guilds[guildID]
	if !ok {
		return nil, guild.ErrGuildNotFound
	}
	return g.Clone(), nil
}

// PutGuild implements guild.Repository. The in-memory copy only changes if
// the file was written.
func (s *Store) PutGuild(_ context.Context, g *guild.Guild) (*guild.Guild, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.guilds[g.ID]
	s.guilds[g.ID] = g.Clone()

	if err := s.flush(); err != nil {
		if had {
			s.guilds[g.ID] = prev
		} else {
			delete(s.guilds, g.ID)
		}
		return nil, err
	}
	return g.Clone(), nil
}

// flush writes the whole database to a temp file and renames it over the
// original. Caller holds mu.
func (s *Store) flush() error {
	data, err := json.MarshalIndent(s.guilds, "", "\t")
	if err != nil {
		return fmt.Errorf("encode database: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// Ping implements guild.Pinger by checking the directory is reachable.
func (s *Store) Ping(context.Context) error {
	dir := filepath.Dir(s.path)
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return os.MkdirAll(dir, 0o755)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

var (
	_ guild.Repository = (*Store)(nil)
	_ guild.Pinger     = (*Store)(nil)
)

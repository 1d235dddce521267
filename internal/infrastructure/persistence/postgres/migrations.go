package postgres

// GuildsTable holds one jsonb document per guild.
const GuildsTable = "leveling_guilds"

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_leveling_guilds",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "add_guild_member_count",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE GUILDS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS leveling_guilds (
    id TEXT PRIMARY KEY,
    doc JSONB NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_doc CHECK (jsonb_typeof(doc -> 'members') = 'array')
);

CREATE INDEX IF NOT EXISTS idx_leveling_guilds_updated_at ON leveling_guilds(updated_at);
`

const migration001Down = `
DROP TABLE IF EXISTS leveling_guilds;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: MEMBER COUNT
// ══════════════════════════════════════════════════════════════════════════════

// member_count is derived from the document for ad-hoc reporting; the store
// never reads it back.
const migration002Up = `
ALTER TABLE leveling_guilds
    ADD COLUMN IF NOT EXISTS member_count INTEGER
    GENERATED ALWAYS AS (jsonb_array_length(doc -> 'members')) STORED;
`

const migration002Down = `
ALTER TABLE leveling_guilds DROP COLUMN IF EXISTS member_count;
`

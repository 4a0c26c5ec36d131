// Package settings persists per-guild settings in SQLite.
package settings

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	appName    = "guildbox"
	dbFileName = "guildbox.db"
)

// Guild holds the settings of one guild.
type Guild struct {
	GuildID          string
	TextChannelID    string // Channel for now-playing announcements; empty disables them
	AnnounceMessages bool   // Send a message on each track in addition to the topic update
}

// Store is the guild settings store.
type Store struct {
	db *sql.DB
}

// Open opens (and creates) the database at path. An empty path uses the
// XDG data directory.
func Open(path string) (*Store, error) {
	if path == "" {
		p, err := xdg.DataFile(filepath.Join(appName, dbFileName))
		if err != nil {
			return nil, errors.Wrap(err, "resolve settings path")
		}
		path = p
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "create settings directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open settings db")
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS guild_settings (
			guild_id TEXT PRIMARY KEY,
			text_channel_id TEXT NOT NULL DEFAULT '',
			announce_messages INTEGER NOT NULL DEFAULT 0
		);
	`)
	return errors.Wrap(err, "init settings schema")
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the settings of guildID. Guilds never configured return the
// zero settings.
func (s *Store) Get(ctx context.Context, guildID string) (Guild, error) {
	g := Guild{GuildID: guildID}
	err := s.db.QueryRowContext(ctx,
		`SELECT text_channel_id, announce_messages FROM guild_settings WHERE guild_id = ?`,
		guildID,
	).Scan(&g.TextChannelID, &g.AnnounceMessages)
	if errors.Is(err, sql.ErrNoRows) {
		return g, nil
	}
	if err != nil {
		return Guild{}, errors.Wrapf(err, "get settings guild=%s", guildID)
	}
	return g, nil
}

// Set stores g, replacing previous settings.
func (s *Store) Set(ctx context.Context, g Guild) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_settings (guild_id, text_channel_id, announce_messages)
		VALUES (?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			text_channel_id = excluded.text_channel_id,
			announce_messages = excluded.announce_messages
	`, g.GuildID, g.TextChannelID, g.AnnounceMessages)
	return errors.Wrapf(err, "set settings guild=%s", g.GuildID)
}

// AnnounceChannel returns the channel now-playing announcements go to. ok is
// false when the guild has none configured.
func (s *Store) AnnounceChannel(ctx context.Context, guildID string) (channelID string, messages bool, ok bool, err error) {
	g, err := s.Get(ctx, guildID)
	if err != nil {
		return "", false, false, err
	}
	if g.TextChannelID == "" {
		return "", false, false, nil
	}
	return g.TextChannelID, g.AnnounceMessages, true, nil
}

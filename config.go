package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/time/rate"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/zephyrtronium/roarbot/audit"
	"github.com/zephyrtronium/roarbot/bot"
	"github.com/zephyrtronium/roarbot/command"
	"github.com/zephyrtronium/roarbot/meower"
)

// Load loads the bot from a TOML configuration.
func Load(ctx context.Context, r io.Reader) (*Config, *toml.MetaData, error) {
	var cfg Config
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("couldn't decode config: %w", err)
	}
	expandcfg(&cfg, os.Getenv)
	return &cfg, &md, nil
}

// Config is the configuration for the bot.
type Config struct {
	// Meower is the account and servers configuration.
	Meower MeowerCfg `toml:"meower"`
	// Bot is the command dispatch configuration.
	Bot BotCfg `toml:"bot"`
	// Messages overrides the messages the bot sends.
	Messages bot.Messages `toml:"messages"`
	// Commands configures the bot's commands.
	Commands command.Config `toml:"commands"`
	// HTTP is the configuration for the HTTP API.
	HTTP HTTPCfg `toml:"http"`
	// DB is the configuration for databases.
	DB DBCfg `toml:"db"`
}

// MeowerCfg is the configuration for the Meower account.
type MeowerCfg struct {
	// Username is the bot account's username.
	Username string `toml:"username"`
	// Password is the bot account's password.
	// It should normally come from the environment, e.g. "$ROARBOT_PASSWORD".
	Password string `toml:"password"`
	// API is the base URL of the REST API.
	API string `toml:"api"`
	// Server is the base URL of the stream server.
	Server string `toml:"server"`
	// Uploads is the base URL of the uploads server.
	Uploads string `toml:"uploads"`
	// Rate is the rate limit for posts and account changes.
	Rate Rate `toml:"rate"`
}

// BotCfg is the configuration for command dispatch.
type BotCfg struct {
	// Admins is the usernames allowed to use admin commands.
	Admins []string `toml:"admins"`
	// Banned is the usernames not allowed to use commands.
	Banned []string `toml:"banned"`
	// DisableHelp turns off the help command.
	DisableHelp bool `toml:"disable_help"`
	// Edits makes edited posts invoke commands.
	Edits bool `toml:"edits"`
}

// HTTPCfg is the configuration for the HTTP API.
type HTTPCfg struct {
	// Listen is the address on which to serve. If empty, there is no API.
	Listen string `toml:"listen"`
}

// DBCfg is the configuration for databases.
type DBCfg struct {
	// Audit is the SQLite DSN for the command audit log.
	// If empty, invocations are not recorded.
	Audit string `toml:"audit"`
}

// Rate is a rate limit configuration.
type Rate struct {
	Every float64 `toml:"every"`
	Num   int     `toml:"num"`
}

// limiter creates a rate limiter from the configuration.
// If the configuration is empty, the result is nil.
func (r Rate) limiter() *rate.Limiter {
	if r.Every <= 0 || r.Num <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(fseconds(r.Every)), r.Num)
}

func fseconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// client creates a Meower client from the configuration.
func (cfg *MeowerCfg) client(log *slog.Logger) *meower.Client {
	return &meower.Client{
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		API:     cfg.API,
		Server:  cfg.Server,
		Uploads: cfg.Uploads,
		Rate:    cfg.Rate.limiter(),
		Log:     log,
	}
}

// loadAudit opens the audit log. If no audit database is configured, the
// results are nil.
func loadAudit(ctx context.Context, cfg DBCfg) (*sqlitex.Pool, *audit.Log, error) {
	if cfg.Audit == "" {
		slog.DebugContext(ctx, "no audit db")
		return nil, nil, nil
	}
	slog.DebugContext(ctx, "audit db", slog.String("path", cfg.Audit))
	db, err := sqlitex.NewPool(cfg.Audit, sqlitex.PoolOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("couldn't open audit db: %w", err)
	}
	if err := audit.Init(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("couldn't initialize audit db: %w", err)
	}
	l, err := audit.Open(ctx, db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("couldn't open audit log: %w", err)
	}
	return db, l, nil
}

func expandcfg(cfg *Config, expand func(s string) string) {
	fields := []*string{
		&cfg.Meower.Username,
		&cfg.Meower.Password,
		&cfg.Meower.API,
		&cfg.Meower.Server,
		&cfg.Meower.Uploads,
		&cfg.HTTP.Listen,
		&cfg.DB.Audit,
	}
	for _, f := range fields {
		*f = os.Expand(*f, expand)
	}
	for i, s := range cfg.Bot.Admins {
		cfg.Bot.Admins[i] = os.Expand(s, expand)
	}
	for i, s := range cfg.Bot.Banned {
		cfg.Bot.Banned[i] = os.Expand(s, expand)
	}
}

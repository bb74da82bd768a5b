package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/zephyrtronium/roarbot/bot"
	"github.com/zephyrtronium/roarbot/command"
	"github.com/zephyrtronium/roarbot/metrics"
)

var app = cli.Command{
	Name:  "roarbot",
	Usage: "Meower chat bot",

	Flags: []cli.Flag{
		&flagConfig,
		&flagEnv,
		&flagLog,
		&flagLogFormat,
	},
	Commands: []*cli.Command{
		{
			Name:    "commands",
			Aliases: []string{"help-text"},
			Usage:   "Print the bot's help text without connecting",
			Action:  cliCommands,
		},
	},
	Action: cliRun,

	Authors: []any{
		"Branden J Brown  @zephyrtronium",
	},
	Copyright: "Copyright 2024 Branden J Brown",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	go func() {
		<-ctx.Done()
		stop()
	}()
	err := app.Run(ctx, os.Args)
	if err != nil {
		fmt.Println(err)
	}
}

// setup loads the environment and the configuration named by the flags.
func setup(ctx context.Context, cmd *cli.Command) (*Config, error) {
	slog.SetDefault(loggerFromFlags(cmd))
	if err := loadEnv(cmd.String("env"), cmd.IsSet("env")); err != nil {
		return nil, err
	}
	r, err := os.Open(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("couldn't open config file: %w", err)
	}
	defer r.Close()
	cfg, md, err := Load(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("couldn't load config: %w", err)
	}
	for _, k := range md.Undecoded() {
		slog.WarnContext(ctx, "unknown config key", slog.String("key", k.String()))
	}
	return cfg, nil
}

// loadEnv loads environment variables from a .env file. A missing file is
// an error only if it was named explicitly.
func loadEnv(file string, explicit bool) error {
	if file == "" {
		return nil
	}
	err := godotenv.Load(file)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		return nil
	default:
		return fmt.Errorf("couldn't load env file: %w", err)
	}
}

// newBot creates the bot and registers its commands.
func newBot(cfg *Config, m *metrics.Metrics, rec bot.Recorder) (*bot.Bot, error) {
	log := slog.Default()
	bc := bot.Config{
		Admins:      cfg.Bot.Admins,
		Banned:      cfg.Bot.Banned,
		DisableHelp: cfg.Bot.DisableHelp,
		Edits:       cfg.Bot.Edits,
		Messages:    cfg.Messages,
		Log:         log,
		Metrics:     m,
		Audit:       rec,
	}
	b := bot.New(bot.Meower(cfg.Meower.client(log.With(slog.String("meower", cfg.Meower.Username)))), bc)
	if err := command.Register(b, cfg.Commands); err != nil {
		return nil, err
	}
	return b, nil
}

func cliRun(ctx context.Context, cmd *cli.Command) error {
	cfg, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	db, alog, err := loadAudit(ctx, cfg.DB)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	m := metrics.New()
	var rec bot.Recorder
	if alog != nil {
		rec = alog
	}
	b, err := newBot(cfg, m, rec)
	if err != nil {
		return err
	}
	b.OnLogin(func(ctx context.Context, username string) {
		slog.InfoContext(ctx, "ready", slog.String("username", username), slog.Int("commands", len(b.Commands())))
	})
	if err := b.Login(ctx, cfg.Meower.Username, cfg.Meower.Password); err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	group.Go(func() error {
		defer cancel()
		return b.Serve(ctx)
	})
	if cfg.HTTP.Listen != "" {
		a := &api{bot: b, audit: alog}
		group.Go(func() error { return a.serve(ctx, cfg.HTTP.Listen, m.Collectors()) })
	}
	return group.Wait()
}

func cliCommands(ctx context.Context, cmd *cli.Command) error {
	cfg, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	b, err := newBot(cfg, nil, nil)
	if err != nil {
		return err
	}
	fmt.Println(b.Help(cfg.Meower.Username))
	return nil
}

var (
	flagConfig = cli.StringFlag{
		Name:       "config",
		Required:   true,
		Usage:      "TOML config file",
		Persistent: true,
		Action: func(ctx context.Context, cmd *cli.Command, s string) error {
			i, err := os.Stat(s)
			if err != nil {
				return err
			}
			if !i.Mode().IsRegular() {
				return errors.New("config must be a regular file")
			}
			return nil
		},
	}

	flagEnv = cli.StringFlag{
		Name:       "env",
		Usage:      "File of environment variables to load before expanding the config",
		Value:      ".env",
		Persistent: true,
	}

	flagLog = cli.StringFlag{
		Name:       "log",
		Usage:      "Logging level, one of debug, info, warn, error",
		Value:      "info",
		Persistent: true,
		Action: func(ctx context.Context, c *cli.Command, s string) error {
			var l slog.Level
			return l.UnmarshalText([]byte(s))
		},
	}

	flagLogFormat = cli.StringFlag{
		Name:       "log-format",
		Usage:      "Logging format, either text or json",
		Value:      "text",
		Persistent: true,
		Action: func(ctx context.Context, c *cli.Command, s string) error {
			switch strings.ToLower(s) {
			case "text", "json":
				return nil
			default:
				return errors.New("unknown logging format")
			}
		},
	}
)

func loggerFromFlags(cmd *cli.Command) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(cmd.String("log"))); err != nil {
		panic(err)
	}
	var h slog.Handler
	switch strings.ToLower(cmd.String("log-format")) {
	case "text":
		h = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	case "json":
		h = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	}
	return slog.New(h)
}

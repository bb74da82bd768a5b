package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	if err := os.WriteFile(file, []byte("ROARBOT_TEST_LOADENV=meow\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ROARBOT_TEST_LOADENV", "")
	os.Unsetenv("ROARBOT_TEST_LOADENV")
	if err := loadEnv(file, true); err != nil {
		t.Fatalf("couldn't load env: %v", err)
	}
	if got := os.Getenv("ROARBOT_TEST_LOADENV"); got != "meow" {
		t.Errorf("wrong env var: want %q, got %q", "meow", got)
	}

	missing := filepath.Join(dir, "missing.env")
	if err := loadEnv(missing, false); err != nil {
		t.Errorf("default env file should be optional: %v", err)
	}
	if err := loadEnv(missing, true); err == nil {
		t.Error("no error for missing explicit env file")
	}
	if err := loadEnv("", true); err != nil {
		t.Errorf("empty env file name should be ignored: %v", err)
	}
}

func TestExpandConfig(t *testing.T) {
	env := map[string]string{"USER": "tiger", "PORT": "8080"}
	cfg := Config{
		Meower: MeowerCfg{Username: "$USER", Password: "${USER}pass"},
		Bot:    BotCfg{Admins: []string{"$USER", "boss"}, Banned: []string{"x$USER"}},
		HTTP:   HTTPCfg{Listen: ":$PORT"},
	}
	expandcfg(&cfg, func(s string) string { return env[s] })
	eqs := []struct {
		name, got, want string
	}{
		{"Meower.Username", cfg.Meower.Username, "tiger"},
		{"Meower.Password", cfg.Meower.Password, "tigerpass"},
		{"Bot.Admins[0]", cfg.Bot.Admins[0], "tiger"},
		{"Bot.Admins[1]", cfg.Bot.Admins[1], "boss"},
		{"Bot.Banned[0]", cfg.Bot.Banned[0], "xtiger"},
		{"HTTP.Listen", cfg.HTTP.Listen, ":8080"},
	}
	for _, c := range eqs {
		if c.got != c.want {
			t.Errorf("wrong %s: want %q, got %q", c.name, c.want, c.got)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	if l := (Rate{}).limiter(); l != nil {
		t.Errorf("empty rate should have no limiter, got %v", l)
	}
	l := (Rate{Every: 2, Num: 3}).limiter()
	if l == nil {
		t.Fatal("no limiter")
	}
	if l.Burst() != 3 {
		t.Errorf("wrong burst: want 3, got %d", l.Burst())
	}
	if got := l.Limit(); got != 0.5 {
		t.Errorf("wrong limit: want 0.5, got %v", got)
	}
}

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("TOKEN_SECRET", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Fatalf("addr = %q", cfg.Addr())
	}
	if cfg.TickRate != 30 {
		t.Fatalf("tick rate = %d, want 30", cfg.TickRate)
	}
	if cfg.TickInterval() != time.Second/30 {
		t.Fatalf("tick interval = %v", cfg.TickInterval())
	}
	if len(cfg.AllowedOrigins) != 0 {
		t.Fatalf("non-development env should not allow origins by default, got %v", cfg.AllowedOrigins)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("log level = %v", cfg.LogLevel)
	}
	if cfg.Game.LevelSegments != 48 {
		t.Fatalf("level segments = %d, want 48", cfg.Game.LevelSegments)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("TOKEN_SECRET", "s3cret")
	t.Setenv("PORT", "9000")
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("TICK_RATE", "60")
	t.Setenv("ALLOWED_ORIGINS", "https://play.example.com, *.example.org ,")
	t.Setenv("START_POLICY", "ALL")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:9000" {
		t.Fatalf("addr = %q", cfg.Addr())
	}
	if cfg.TickRate != 60 {
		t.Fatalf("tick rate = %d", cfg.TickRate)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "*.example.org" {
		t.Fatalf("origins = %v", cfg.AllowedOrigins)
	}
	if cfg.StartPolicy != "all" {
		t.Fatalf("start policy = %q", cfg.StartPolicy)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("log level = %v", cfg.LogLevel)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := &Config{
		Port:        0,
		TickRate:    0,
		MaxPlayers:  0,
		WSReadLimit: 10,
		StartPolicy: "vote",
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"TOKEN_SECRET", "PORT", "TICK_RATE", "MAX_PLAYERS", "WS_READ_LIMIT", "IDLE_TIMEOUT_SEC", "START_POLICY"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestDevelopmentAllowsAllOrigins(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("TOKEN_SECRET", "s3cret")
	t.Setenv("ALLOWED_ORIGINS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Fatalf("origins = %v, want [*]", cfg.AllowedOrigins)
	}
}

func TestMalformedValuesFailLoad(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("TOKEN_SECRET", "s3cret")
	t.Setenv("PORT", "80a0")
	t.Setenv("ROOM_EMPTY_GRACE_SEC", "ten")
	t.Setenv("LOG_LEVEL", "loud")

	_, err := Load()
	if err == nil {
		t.Fatal("expected malformed values to fail the load")
	}
	for _, want := range []string{"PORT", "ROOM_EMPTY_GRACE_SEC", "LOG_LEVEL"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestEnvFileParseErrorReported(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, ".env")
	if err := os.WriteFile(broken, []byte("BROKEN=\"never closed\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := &envReader{}
	r.file(filepath.Join(dir, ".env.missing"))
	if len(r.errs) != 0 {
		t.Fatalf("missing file reported: %v", r.errs)
	}
	r.file(broken)
	if len(r.errs) != 1 || !strings.Contains(r.errs[0].Error(), broken) {
		t.Fatalf("errs = %v, want one error naming %s", r.errs, broken)
	}
}

func TestValidateIncludesReadProblems(t *testing.T) {
	r := &envReader{}
	t.Setenv("MAX_PLAYERS", "many")
	if got := r.number("MAX_PLAYERS", 8); got != 8 {
		t.Fatalf("fallback = %d, want 8", got)
	}
	cfg := &Config{
		TokenSecret: "s", Port: 8080, TickRate: 30, MaxPlayers: 8,
		WSReadLimit: 4096, IdleTimeout: time.Second, StartPolicy: "first",
		problems: r.errs,
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "MAX_PLAYERS") {
		t.Fatalf("validate = %v", err)
	}
}

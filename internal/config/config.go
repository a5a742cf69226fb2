package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env            string
	Host           string
	Port           int
	TickRate       int
	TokenSecret    string
	TokenType      string
	AllowedOrigins []string
	MaxPlayers     int
	WSReadLimit    int64
	IdleTimeout    time.Duration
	WSPingInterval time.Duration
	EmptyGrace     time.Duration
	FinishedTTL    time.Duration
	MatchDuration  time.Duration
	StartPolicy    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	LogLevel       slog.Level
	LogFile        string

	Game Game

	// problems found while reading the environment; Validate reports them.
	problems []error
}

// Addr is the listen address built from Host and Port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func Load() (*Config, error) {
	r := &envReader{}
	env := r.str("ENV", "development")

	// .env.{ENV} wins over .env; neither overrides the real environment.
	r.file(".env." + env)
	r.file(".env")

	defaultOrigins := ""
	if env == "development" {
		defaultOrigins = "*"
	}

	cfg := &Config{
		Env:            env,
		Host:           r.str("HOST", "0.0.0.0"),
		Port:           r.number("PORT", 8080),
		TickRate:       r.number("TICK_RATE", 30),
		TokenSecret:    r.str("TOKEN_SECRET", ""),
		TokenType:      r.str("TOKEN_TYPE", "game"),
		AllowedOrigins: splitList(r.str("ALLOWED_ORIGINS", defaultOrigins)),
		MaxPlayers:     r.number("MAX_PLAYERS", 8),
		WSReadLimit:    int64(r.number("WS_READ_LIMIT", 4096)),
		IdleTimeout:    r.seconds("IDLE_TIMEOUT_SEC", 30),
		WSPingInterval: r.seconds("WS_PING_INTERVAL_SEC", 15),
		EmptyGrace:     r.seconds("ROOM_EMPTY_GRACE_SEC", 10),
		FinishedTTL:    r.seconds("ROOM_FINISHED_TTL_SEC", 30),
		MatchDuration:  r.seconds("MATCH_DURATION_SEC", 0),
		StartPolicy:    strings.ToLower(r.str("START_POLICY", "first")),
		RedisAddr:      r.str("REDIS_ADDR", ""),
		RedisPassword:  r.str("REDIS_PASSWORD", ""),
		RedisDB:        r.number("REDIS_DB", 0),
		LogFile:        r.str("LOG_FILE", ""),
		Game:           DefaultGame(),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(r.str("LOG_LEVEL", "info"))); err != nil {
		r.errs = append(r.errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	cfg.problems = r.errs

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	errs := append([]error(nil), c.problems...)
	if c.TokenSecret == "" {
		errs = append(errs, fmt.Errorf("TOKEN_SECRET is required"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	if c.TickRate < 1 || c.TickRate > 120 {
		errs = append(errs, fmt.Errorf("TICK_RATE must be within [1, 120], got %d", c.TickRate))
	}
	if c.MaxPlayers < 1 {
		errs = append(errs, fmt.Errorf("MAX_PLAYERS must be positive, got %d", c.MaxPlayers))
	}
	if c.WSReadLimit < 256 {
		errs = append(errs, fmt.Errorf("WS_READ_LIMIT too small: %d", c.WSReadLimit))
	}
	if c.IdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("IDLE_TIMEOUT_SEC must be positive"))
	}
	switch c.StartPolicy {
	case "first", "all":
	default:
		errs = append(errs, fmt.Errorf("START_POLICY must be first or all, got %q", c.StartPolicy))
	}
	return errors.Join(errs...)
}

// TickInterval is the fixed simulation step derived from TickRate.
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// envReader reads settings and keeps every malformed value it meets, so a
// typo fails the boot instead of silently falling back to a default.
type envReader struct {
	errs []error
}

// file loads a dotenv file if it exists. A file that exists but does not
// parse is an error.
func (r *envReader) file(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		r.errs = append(r.errs, fmt.Errorf("load %s: %w", path, err))
	}
}

func (r *envReader) str(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func (r *envReader) number(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: not an integer: %q", key, v))
		return fallback
	}
	return n
}

func (r *envReader) seconds(key string, fallback int) time.Duration {
	return time.Duration(r.number(key, fallback)) * time.Second
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

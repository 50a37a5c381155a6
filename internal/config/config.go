package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"quiz-duel"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Postgres    Postgres
	Redis       Redis
	Security    Security
	Grader      Grader
	Match       Match
	Leaderboard Leaderboard
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST,notEmpty"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER,notEmpty"`
	Password string `env:"PG_PASSWORD,notEmpty"`
	Database string `env:"PG_DATABASE,notEmpty"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
	MaxConns int32  `env:"PG_MAX_CONNS" envDefault:"10"`
}

// DSN renders the libpq connection string.
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// Redis holds cache configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Security stores secrets for signing and auth.
type Security struct {
	JWTSecret string `env:"JWT_SECRET,notEmpty"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"quiz-duel"`
}

// Grader configures the essay scoring service.
type Grader struct {
	ScorerURL string        `env:"GRADER_SCORER_URL,notEmpty"`
	ScorerKey string        `env:"GRADER_SCORER_API_KEY" envDefault:""`
	Model     string        `env:"GRADER_MODEL" envDefault:""`
	Timeout   time.Duration `env:"GRADER_TIMEOUT" envDefault:"8s"`
}

// Match groups gameplay runtime settings.
type Match struct {
	TickInterval  time.Duration `env:"MATCH_TICK_INTERVAL" envDefault:"1s"`
	InboxSize     int           `env:"MATCH_INBOX_SIZE" envDefault:"32"`
	ProfilePath   string        `env:"MATCH_PROFILE_PATH" envDefault:"configs/profile.yaml"`
	CandidateTTL  time.Duration `env:"MATCH_CANDIDATE_CACHE_TTL" envDefault:"1m"`
	RecordRetries uint64        `env:"MATCH_RECORD_ATTEMPTS" envDefault:"5"`
	RecordBackoff time.Duration `env:"MATCH_RECORD_BACKOFF" envDefault:"1s"`
}

// Leaderboard governs the rating cache and its warm-up.
type Leaderboard struct {
	KeyPrefix    string        `env:"LEADERBOARD_KEY_PREFIX" envDefault:"rating"`
	TopN         int           `env:"LEADERBOARD_TOP" envDefault:"100"`
	WarmInterval time.Duration `env:"LEADERBOARD_WARM_INTERVAL" envDefault:"5m"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

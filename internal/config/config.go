package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"trivia-arena"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	ListenAddr              string        `env:"LISTEN_ADDR" envDefault:"0.0.0.0:5555"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Game  Game
	Redis Redis
}

// Game groups gameplay settings.
type Game struct {
	QuestionBankPath string        `env:"QUESTION_BANK_PATH" envDefault:"questions.json"`
	AutoStart        bool          `env:"AUTO_START" envDefault:"false"`
	ResetRewindsBank bool          `env:"RESET_REWINDS_BANK" envDefault:"true"`
	ResultPause      time.Duration `env:"RESULT_PAUSE" envDefault:"3s"`
	SendQueueSize    int           `env:"SEND_QUEUE_SIZE" envDefault:"64"`
	ReadTimeout      time.Duration `env:"READ_TIMEOUT" envDefault:"0s"`

	// Accelerated shortens every wait, for bot and load testing.
	Accelerated             bool          `env:"ACCELERATED" envDefault:"false"`
	AcceleratedQuestionWait time.Duration `env:"ACCELERATED_QUESTION_WAIT" envDefault:"500ms"`
	AcceleratedResultPause  time.Duration `env:"ACCELERATED_RESULT_PAUSE" envDefault:"300ms"`
}

// Redis configures the optional leaderboard export. An empty address disables it.
type Redis struct {
	Addr           string `env:"REDIS_ADDR" envDefault:""`
	DB             int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize       int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
	KeyPrefix      string `env:"REDIS_KEY_PREFIX" envDefault:"trivia"`
	ResultsChannel string `env:"REDIS_RESULTS_CHANNEL" envDefault:"trivia:results"`
}

// Enabled reports whether a Redis address is configured.
func (r Redis) Enabled() bool {
	return r.Addr != ""
}

// QuestionWait returns the override for the per-question wait, zero meaning
// "use the bank time limit".
func (g Game) QuestionWait() time.Duration {
	if g.Accelerated {
		return g.AcceleratedQuestionWait
	}
	return 0
}

// Pause returns the wait between a result and the next question.
func (g Game) Pause() time.Duration {
	if g.Accelerated {
		return g.AcceleratedResultPause
	}
	return g.ResultPause
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Game.SendQueueSize <= 0 {
		return nil, fmt.Errorf("parse config: SEND_QUEUE_SIZE must be positive, got %d", cfg.Game.SendQueueSize)
	}
	return cfg, nil
}

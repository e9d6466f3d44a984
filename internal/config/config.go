package config

import (
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DBPath       string `env:"DB_PATH"       envDefault:"db.sqlite"`
	SourcesFile  string `env:"SOURCES_FILE"`
	HTTPAddr     string `env:"HTTP_ADDR"     envDefault:":8080"`
	TriggerToken string `env:"TRIGGER_TOKEN"`
	RunOnce      bool   `env:"RUN_ONCE"`

	// SyncSpec is a cron expression; empty disables the in-process schedule.
	SyncSpec    string        `env:"SYNC_SPEC"`
	SyncTimeout time.Duration `env:"SYNC_TIMEOUT" envDefault:"15m"`

	FetchTimeout  time.Duration `env:"FETCH_TIMEOUT"  envDefault:"20s"`
	EnrichTimeout time.Duration `env:"ENRICH_TIMEOUT" envDefault:"10s"`
	HostInterval  time.Duration `env:"HOST_INTERVAL"  envDefault:"500ms"`
	SourceWorkers int           `env:"SOURCE_WORKERS" envDefault:"4"`
	EnrichWorkers int           `env:"ENRICH_WORKERS" envDefault:"8"`
	UserAgent     string        `env:"USER_AGENT"`

	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"info"`
}

func LoadConfig() Config {
	return env.Must(ParseConfig())
}

func ParseConfig() (Config, error) {
	var cfg Config
	err := env.Parse(&cfg)
	return cfg, err
}

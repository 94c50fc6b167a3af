package config

import (
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/pkg/errors"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendNATS     = "nats"
)

type App struct {
	Port      string `env:"APP_PORT" envDefault:":3000"`
	BuildMode string `env:"APP_BUILD_MODE" envDefault:"prod"`
	// SystemKey 访问 /system 接口的密钥，为空时接口不可用
	SystemKey string `env:"APP_SYSTEM_KEY"`
	RateLimit int    `env:"APP_RATE_LIMIT" envDefault:"120"`
}

func (a App) IsDev() bool {
	return a.BuildMode == "dev"
}

type Log struct {
	Level string `env:"APP_LOG_LEVEL" envDefault:"info"`
	File  string `env:"APP_LOG_FILE" envDefault:"app.log"`
}

type Store struct {
	// Backend memory 或 postgres
	Backend string `env:"APP_STORE" envDefault:"postgres"`
	URL     string `env:"APP_DB"`
}

type Prefs struct {
	// Backend memory 或 nats
	Backend string `env:"APP_PREFS" envDefault:"nats"`
	URL     string `env:"APP_NATS_URL"`
	Bucket  string `env:"APP_NATS_BUCKET" envDefault:"wyr-prefs"`
}

type Auth struct {
	TokenSecret string        `env:"APP_TOKEN_SECRET,notEmpty"`
	TokenTTL    time.Duration `env:"APP_TOKEN_TTL" envDefault:"720h"`
}

// Captcha 为空时注册不做人机验证
type Captcha struct {
	ID  string `env:"GEETEST_CAPTCHA_ID"`
	Key string `env:"GEETEST_CAPTCHA_KEY"`
}

func (c Captcha) Enabled() bool {
	return c.ID != "" && c.Key != ""
}

type Config struct {
	App     App
	Log     Log
	Store   Store
	Prefs   Prefs
	Auth    Auth
	Captcha Captcha
}

// Load parses the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to parse config")
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Store.URL == "" {
			return errors.New("APP_DB is required when APP_STORE=postgres")
		}
	default:
		return errors.Errorf("unknown APP_STORE %q", c.Store.Backend)
	}

	switch c.Prefs.Backend {
	case BackendMemory, BackendNATS:
	default:
		return errors.Errorf("unknown APP_PREFS %q", c.Prefs.Backend)
	}
	return nil
}

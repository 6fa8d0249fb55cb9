package config

import (
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds the server configuration, read from the environment.
type Config struct {
	DBPath           string `env:"GROUPADMIN_DB_PATH" envDefault:"groupadmin.db"`
	Port             string `env:"PORT" envDefault:"8080"`
	DefaultAuthority string `env:"GROUPADMIN_DEFAULT_AUTHORITY" envDefault:"localhost"`
	JWTSecret        string `env:"JWT_SECRET" envDefault:"groupadmin-dev-secret-change-in-production"`
	PageSize         int    `env:"GROUPADMIN_PAGE_SIZE" envDefault:"100"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string `env:"LOG_FORMAT" envDefault:"text"`
}

// LoadEnv loads the given .env files, skipping any that do not exist.
// It returns how many files were loaded.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load reads .env files (if present) and then parses the environment.
func Load(envFiles ...string) (*Config, error) {
	if _, err := LoadEnv(envFiles); err != nil {
		return nil, errors.Wrap(err, "load env files")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse env")
	}
	if cfg.PageSize < 1 {
		return nil, errors.Errorf("GROUPADMIN_PAGE_SIZE must be positive, got %d", cfg.PageSize)
	}
	return cfg, nil
}

// Logger builds a logrus logger from the configured level and format.
func (c *Config) Logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "parse LOG_LEVEL")
	}

	log := logrus.New()
	log.SetLevel(level)
	switch c.LogFormat {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, errors.Errorf("unknown LOG_FORMAT %q", c.LogFormat)
	}
	return log, nil
}

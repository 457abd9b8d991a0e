package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/go-faster/errors"
	"gopkg.in/yaml.v3"
)

// Config is built in three layers: defaults, then an optional YAML file,
// then environment variables. Unset variables leave the field alone, which
// is why defaults live in Default and not in envDefault tags.
type Config struct {
	App struct {
		Listen             string   `yaml:"listen" env:"MULTISIG_LISTEN"`
		NetworkID          string   `yaml:"network_id" env:"MULTISIG_NETWORK_ID"`
		CorsAllowedOrigins []string `yaml:"cors_allowed_origins" env:"MULTISIG_CORS_ALLOWED_ORIGINS" envSeparator:","`
		LogLevel           string   `yaml:"log_level" env:"LOG_LEVEL"`
		MetricsListen      string   `yaml:"metrics_listen" env:"MULTISIG_METRICS_LISTEN"`
		SentryDSN          string   `yaml:"sentry_dsn" env:"SENTRY_DSN"`
		Environment        string   `yaml:"environment" env:"MULTISIG_ENVIRONMENT"`
		AccountCacheSize   int      `yaml:"account_cache_size" env:"MULTISIG_ACCOUNT_CACHE_SIZE"`
	} `yaml:"app"`
	DB struct {
		URL     string `yaml:"url" env:"MULTISIG_DB_URL"`
		MaxConn int    `yaml:"max_conn" env:"MULTISIG_DB_MAX_CONN"`
	} `yaml:"db"`
	Client struct {
		// NodeURL is empty for an offline devnet client.
		NodeURL      string        `yaml:"node_url" env:"MULTISIG_NODE_URL"`
		StorePath    string        `yaml:"store_path" env:"MULTISIG_STORE_PATH"`
		KeystorePath string        `yaml:"keystore_path" env:"MULTISIG_KEYSTORE_PATH"`
		Timeout      time.Duration `yaml:"timeout" env:"MULTISIG_CLIENT_TIMEOUT"`
		QueueSize    int           `yaml:"queue_size" env:"MULTISIG_CLIENT_QUEUE_SIZE"`
	} `yaml:"client"`
}

func Default() Config {
	var c Config
	c.App.Listen = "0.0.0.0:59059"
	c.App.NetworkID = "mtst"
	c.App.LogLevel = "INFO"
	c.App.MetricsListen = "0.0.0.0:9010"
	c.App.Environment = "development"
	c.App.AccountCacheSize = 1024
	c.DB.URL = "sqlite://multisig.sqlite3"
	c.DB.MaxConn = 10
	c.Client.StorePath = "./store.sqlite3"
	c.Client.KeystorePath = "./keystore"
	c.Client.Timeout = 30 * time.Second
	c.Client.QueueSize = 64
	return c
}

// Load builds the config. An empty path skips the file.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return Config{}, errors.Wrapf(err, "parse %s", path)
		}
	}
	if err := env.Parse(&c); err != nil {
		return Config{}, errors.Wrap(err, "parse environment")
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) validate() error {
	switch {
	case c.App.Listen == "":
		return errors.New("app.listen is required")
	case c.App.NetworkID == "":
		return errors.New("app.network_id is required")
	case c.DB.URL == "":
		return errors.New("db.url is required")
	case c.Client.Timeout < 0:
		return errors.New("client.timeout must not be negative")
	}
	return nil
}

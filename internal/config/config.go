package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	DB       DBConfig       `mapstructure:"db"`
	Cron     CronConfig     `mapstructure:"cron"`
	Blizzard BlizzardConfig `mapstructure:"blizzard"`
	Scan     ScanConfig     `mapstructure:"scan"`
	Writer   WriterConfig   `mapstructure:"writer"`
	Enrich   EnrichConfig   `mapstructure:"enrich"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Scan    string `mapstructure:"scan"`
}

type BlizzardConfig struct {
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	Region       string        `mapstructure:"region"`
	Locale       string        `mapstructure:"locale"`
	OAuthURL     string        `mapstructure:"oauth_url"`
	APIURL       string        `mapstructure:"api_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type ScanConfig struct {
	AggregateSink bool `mapstructure:"aggregate_sink"`
	RawSink       bool `mapstructure:"raw_sink"`
}

type WriterConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	InterBatchDelay time.Duration `mapstructure:"inter_batch_delay"`
}

type EnrichConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	ChunkSize    int           `mapstructure:"chunk_size"`
	PerItemDelay time.Duration `mapstructure:"per_item_delay"`
	MaxPerRun    int           `mapstructure:"max_per_run"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	// Empty defaults register the keys so AutomaticEnv can fill them.
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.scan", "@every 10m")
	v.SetDefault("blizzard.client_id", "")
	v.SetDefault("blizzard.client_secret", "")
	v.SetDefault("blizzard.region", "us")
	v.SetDefault("blizzard.locale", "en_US")
	v.SetDefault("blizzard.oauth_url", "https://oauth.battle.net")
	v.SetDefault("blizzard.api_url", "https://us.api.blizzard.com")
	v.SetDefault("blizzard.timeout", "30s")
	v.SetDefault("scan.aggregate_sink", true)
	v.SetDefault("scan.raw_sink", false)
	v.SetDefault("writer.batch_size", 2000)
	v.SetDefault("writer.inter_batch_delay", "250ms")
	v.SetDefault("enrich.enabled", true)
	v.SetDefault("enrich.chunk_size", 500)
	v.SetDefault("enrich.per_item_delay", "200ms")
	v.SetDefault("enrich.max_per_run", 200)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks credentials and endpoints before any network call is made.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Blizzard.ClientID) == "" {
		missing = append(missing, "blizzard.client_id")
	}
	if strings.TrimSpace(c.Blizzard.ClientSecret) == "" {
		missing = append(missing, "blizzard.client_secret")
	}
	if strings.TrimSpace(c.DB.DSN) == "" {
		missing = append(missing, "db.dsn")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	if c.Writer.BatchSize < 0 {
		return fmt.Errorf("writer.batch_size must not be negative")
	}
	return nil
}

// Package config loads runtime configuration for the hunt engine from a YAML
// file with HUNTHAWK_-prefixed environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Campaign   CampaignConfig   `mapstructure:"campaign"`
	Workflow   WorkflowConfig   `mapstructure:"workflow"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Connectors ConnectorsConfig `mapstructure:"connectors"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ConnString builds the connection string used by both pgx and migrate.
func (p PostgresConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

type RedisConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Enabled       bool          `mapstructure:"enabled"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// CampaignConfig is the policy surface of the campaign engine.
type CampaignConfig struct {
	// MaxHostsThreshold is the hits_endpoints ceiling for one run.
	MaxHostsThreshold int `mapstructure:"max_hosts_threshold"`

	OnMaxHostsReached MaxHostsPolicy `mapstructure:"on_maxhosts_reached"`

	// DataRetentionDays bounds snapshot history; campaigns older than this
	// are purged.
	DataRetentionDays int `mapstructure:"db_data_retention"`

	// AutoStatsRegeneration rebuilds an analytic's history when its query
	// text changes.
	AutoStatsRegeneration bool `mapstructure:"auto_stats_regeneration"`

	// DisableRunDailyOnError clears run_daily when a connector records a
	// query error, unless the analytic is locked.
	DisableRunDailyOnError bool `mapstructure:"disable_run_daily_on_error"`

	// QueryTimeout bounds a single connector call.
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

// MaxHostsPolicy configures the corrective actions applied once the breach
// counter reaches Threshold. Actions never apply to locked analytics.
type MaxHostsPolicy struct {
	Threshold       int  `mapstructure:"threshold"`
	DisableRunDaily bool `mapstructure:"disable_run_daily"`
	DeleteStats     bool `mapstructure:"delete_stats"`
}

type WorkflowConfig struct {
	DaysBeforeReview        int  `mapstructure:"days_before_review"`
	DisableAnalyticOnReview bool `mapstructure:"disable_analytic_on_review"`
}

type SchedulerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// RunAt is the local time of day ("HH:MM") the daily campaign starts.
	RunAt string `mapstructure:"run_at"`
}

// ConnectorsConfig declares the connector registry. Connectors are bound by
// explicit configuration at process start, never by discovery.
type ConnectorsConfig struct {
	OpenSearch OpenSearchConnectorConfig `mapstructure:"opensearch"`
	SQL        SQLConnectorConfig        `mapstructure:"sql"`
}

type OpenSearchConnectorConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Insecure bool   `mapstructure:"insecure"`
	Index    string `mapstructure:"index"`
}

type SQLConnectorConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Driver is one of postgres, mysql, sqlserver.
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8086)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")

	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "hunthawk")
	v.SetDefault("database.postgres.sslmode", "require")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.enabled", false)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")

	v.SetDefault("campaign.max_hosts_threshold", 1000)
	v.SetDefault("campaign.on_maxhosts_reached.threshold", 3)
	v.SetDefault("campaign.on_maxhosts_reached.disable_run_daily", true)
	v.SetDefault("campaign.on_maxhosts_reached.delete_stats", true)
	v.SetDefault("campaign.db_data_retention", 90)
	v.SetDefault("campaign.auto_stats_regeneration", true)
	v.SetDefault("campaign.disable_run_daily_on_error", false)
	v.SetDefault("campaign.query_timeout", "10m")

	v.SetDefault("workflow.days_before_review", 30)
	v.SetDefault("workflow.disable_analytic_on_review", false)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.run_at", "02:00")

	v.SetDefault("connectors.sql.driver", "postgres")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/hunthawk")
	}

	v.SetEnvPrefix("HUNTHAWK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"goflare.io/paysync"
	"goflare.io/paysync/checkout_session"
	"goflare.io/paysync/driver"
	"goflare.io/paysync/event"
	"goflare.io/paysync/gateway"
	"goflare.io/paysync/money"
	"goflare.io/paysync/store"
	"goflare.io/paysync/store/bolt"
	"goflare.io/paysync/store/postgres"
	"goflare.io/paysync/webhook"
)

const (
	ServerStartPort   = ":8080"
	DefaultConfigFile = "./config.yaml"
	EnvPrefix         = "PAYSYNC"
)

type Config struct {
	Address  string                   `mapstructure:"address"`
	Debug    bool                     `mapstructure:"debug"`
	Remote   gateway.Config           `mapstructure:"remote"`
	Money    money.Format             `mapstructure:"money"`
	Checkout checkout_session.Options `mapstructure:"checkout"`
	Webhook  WebhookConfig            `mapstructure:"webhook"`
	Jobs     paysync.JobsConfig       `mapstructure:"jobs"`
	Postgres PostgresConfig           `mapstructure:"postgres"`
	Bolt     BoltConfig               `mapstructure:"bolt"`
	Redis    RedisConfig              `mapstructure:"redis"`
	NATS     NATSConfig               `mapstructure:"nats"`
}

type WebhookConfig struct {
	webhook.Options `mapstructure:",squash"`
	// Tolerance is the accepted clock skew of signed deliveries.
	Tolerance time.Duration `mapstructure:"tolerance"`
}

type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

type BoltConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("address", ServerStartPort)
	v.SetDefault("debug", false)

	v.SetDefault("remote.base_url", "https://api.withflex.com")
	v.SetDefault("remote.live_api_key", "")
	v.SetDefault("remote.test_api_key", "")
	v.SetDefault("remote.test_mode", false)
	v.SetDefault("remote.timeout", 30*time.Second)

	v.SetDefault("money.decimals", money.DefaultFormat.Decimals)
	v.SetDefault("money.decimal_separator", money.DefaultFormat.DecimalSeparator)
	v.SetDefault("money.thousand_separator", money.DefaultFormat.ThousandSeparator)

	v.SetDefault("checkout.success_url", "")
	v.SetDefault("checkout.cancel_url", "")
	v.SetDefault("checkout.return_url", "")

	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.events", []string{})
	v.SetDefault("webhook.enabled", true)
	v.SetDefault("webhook.allow_insecure", false)
	v.SetDefault("webhook.tolerance", event.DefaultTolerance)

	v.SetDefault("jobs.workers", paysync.DefaultJobsConfig.Workers)
	v.SetDefault("jobs.queue_size", paysync.DefaultJobsConfig.QueueSize)
	v.SetDefault("jobs.max_attempts", paysync.DefaultJobsConfig.MaxAttempts)
	v.SetDefault("jobs.base_delay", paysync.DefaultJobsConfig.BaseDelay)
	v.SetDefault("jobs.max_delay", paysync.DefaultJobsConfig.MaxDelay)
	v.SetDefault("jobs.lock_ttl", paysync.DefaultJobsConfig.LockTTL)

	v.SetDefault("postgres.url", "")
	v.SetDefault("bolt.path", "./paysync.db")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("nats.url", "")
}

// Load reads path if it exists, then PAYSYNC_* environment variables, e.g.
// PAYSYNC_REMOTE_TEST_API_KEY for remote.test_api_key.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}

func ProvideApplicationConfig() (*Config, error) {
	path := os.Getenv(EnvPrefix + "_CONFIG")
	if path == "" {
		path = DefaultConfigFile
	}
	return Load(path)
}

func NewLogger(appConfig *Config) *zap.Logger {
	if appConfig.Debug {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	logger, _ := zap.NewProduction()
	return logger
}

// ProvideStore opens postgres when a URL is configured, bolt otherwise.
func ProvideStore(appConfig *Config, logger *zap.Logger) (store.Store, func(), error) {
	if appConfig.Postgres.URL != "" {
		conn, err := driver.ConnectSQL(appConfig.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		st := postgres.New(conn.Pool, driver.NewTransactionManager(conn.Pool), logger)
		if err := st.Migrate(context.Background()); err != nil {
			conn.Pool.Close()
			return nil, nil, err
		}
		return st, conn.Pool.Close, nil
	}

	st, err := bolt.Open(appConfig.Bolt.Path)
	if err != nil {
		return nil, nil, err
	}
	return st, func() {
		if err := st.Close(); err != nil {
			logger.Warn("failed to close bolt store", zap.Error(err))
		}
	}, nil
}

func ProvideGateway(appConfig *Config, st store.Store, logger *zap.Logger) *gateway.Gateway {
	return gateway.New(appConfig.Remote, st, appConfig.Money, logger)
}

func ProvideCheckoutOptions(appConfig *Config) checkout_session.Options {
	return appConfig.Checkout
}

func ProvideWebhookOptions(appConfig *Config) webhook.Options {
	return appConfig.Webhook.Options
}

func ProvideJobsConfig(appConfig *Config) paysync.JobsConfig {
	return appConfig.Jobs
}

// ProvideRedis returns nil when no address is configured.
func ProvideRedis(appConfig *Config) (*redis.Client, func(), error) {
	if appConfig.Redis.Addr == "" {
		return nil, func() {}, nil
	}
	client, err := driver.ConnectRedis(appConfig.Redis.Addr, appConfig.Redis.Password, appConfig.Redis.DB)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideNATS returns nil when no URL is configured; jobs then run in
// process.
func ProvideNATS(appConfig *Config, logger *zap.Logger) (*nats.Conn, func(), error) {
	if appConfig.NATS.URL == "" {
		return nil, func() {}, nil
	}
	nc, err := driver.ConnectNATS(appConfig.NATS.URL, logger)
	if err != nil {
		return nil, nil, err
	}
	return nc, nc.Close, nil
}

func ProvideLocker(client *redis.Client) paysync.Locker {
	if client == nil {
		return paysync.NewLocalLocker()
	}
	return paysync.NewRedisLocker(client)
}

func ProvideDeduplicator(client *redis.Client) event.Deduplicator {
	if client == nil {
		return nil
	}
	return event.NewRedisDeduplicator(client, event.DedupTTL)
}

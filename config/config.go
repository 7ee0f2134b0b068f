package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all app configuration
type Config struct {
	Env string `mapstructure:"env"`

	// Demo makes the server publish generated trades to every feed topic.
	Demo bool `mapstructure:"demo"`

	Kafka  KafkaConfig  `mapstructure:"kafka"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Bridge BridgeConfig `mapstructure:"bridge"`
	Client ClientConfig `mapstructure:"client"`
	Feeds  []FeedConfig `mapstructure:"feeds"`
}

type KafkaConfig struct {
	Brokers           []string      `mapstructure:"brokers"`
	SessionTimeout    time.Duration `mapstructure:"session_timeout"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	RetryAttempts     int           `mapstructure:"retry_attempts"`
	InitialRetryTime  time.Duration `mapstructure:"initial_retry_time"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
}

// RedisConfig configures the bridge stats cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	StatsTTL time.Duration `mapstructure:"stats_ttl"`
}

type BridgeConfig struct {
	SendQueueSize int           `mapstructure:"send_queue_size"`
	StatsInterval time.Duration `mapstructure:"stats_interval"`
	HTTPHost      string        `mapstructure:"http_host"`
}

// ClientConfig is used by the feed watcher.
type ClientConfig struct {
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	BufferCapacity int           `mapstructure:"buffer_capacity"`
}

// FeedConfig describes one chain feed: a topic bridged to one websocket port.
type FeedConfig struct {
	Name    string `mapstructure:"name"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
	Port    int    `mapstructure:"port"`
	Label   string `mapstructure:"label"`
}

// ClientID is the consumer client id reported to the brokers.
func (f FeedConfig) ClientID() string {
	return f.Name + "-swaps-ws-consumer"
}

// Addr is the listen address of the feed's HTTP server.
func (f FeedConfig) Addr(host string) string {
	return fmt.Sprintf("%s:%d", host, f.Port)
}

var defaultFeeds = []map[string]any{
	{"name": "ethereum", "topic": "ethereum-swaps", "group_id": "ethereum-ws-group", "port": 8084, "label": "Ethereum swaps"},
	{"name": "base", "topic": "base-swaps", "group_id": "base-ws-group", "port": 8085, "label": "Base swaps"},
	{"name": "bsc", "topic": "bsc-swaps", "group_id": "bsc-ws-group", "port": 8083, "label": "BSC swaps"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "local")
	v.SetDefault("demo", false)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.session_timeout", 6*time.Second)
	v.SetDefault("kafka.heartbeat_interval", 2*time.Second)
	v.SetDefault("kafka.retry_attempts", 5)
	v.SetDefault("kafka.initial_retry_time", time.Second)
	v.SetDefault("kafka.reconnect_delay", 5*time.Second)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stats_ttl", time.Minute)

	v.SetDefault("bridge.send_queue_size", 256)
	v.SetDefault("bridge.stats_interval", 10*time.Second)
	v.SetDefault("bridge.http_host", "")

	v.SetDefault("client.reconnect_delay", 5*time.Second)
	v.SetDefault("client.buffer_capacity", 1000)

	v.SetDefault("feeds", defaultFeeds)
}

// LoadConfig reads configuration from, in increasing priority: defaults, an
// optional config.yaml (or the file named by CONFIG_PATH), an optional .env
// file and the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("../..")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first setting that would keep the bridge from running.
func (c *Config) Validate() error {
	if len(c.Kafka.Brokers) == 0 {
		return errors.New("config: at least one kafka broker is required")
	}
	if c.Kafka.ReconnectDelay <= 0 {
		return errors.New("config: kafka.reconnect_delay must be positive")
	}
	if c.Bridge.SendQueueSize <= 0 {
		return errors.New("config: bridge.send_queue_size must be positive")
	}
	if len(c.Feeds) == 0 {
		return errors.New("config: no feeds configured")
	}

	names := make(map[string]struct{}, len(c.Feeds))
	ports := make(map[int]struct{}, len(c.Feeds))
	for _, f := range c.Feeds {
		if f.Name == "" {
			return errors.New("config: feed without a name")
		}
		if _, dup := names[f.Name]; dup {
			return fmt.Errorf("config: duplicate feed %q", f.Name)
		}
		names[f.Name] = struct{}{}

		if f.Topic == "" {
			return fmt.Errorf("config: feed %q has no topic", f.Name)
		}
		if f.Port < 1 || f.Port > 65535 {
			return fmt.Errorf("config: feed %q has invalid port %d", f.Name, f.Port)
		}
		if _, dup := ports[f.Port]; dup {
			return fmt.Errorf("config: port %d used by more than one feed", f.Port)
		}
		ports[f.Port] = struct{}{}
	}
	return nil
}

// Feed returns the feed named name.
func (c *Config) Feed(name string) (FeedConfig, bool) {
	for _, f := range c.Feeds {
		if f.Name == name {
			return f, true
		}
	}
	return FeedConfig{}, false
}

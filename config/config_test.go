package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 6*time.Second, cfg.Kafka.SessionTimeout)
	assert.Equal(t, 2*time.Second, cfg.Kafka.HeartbeatInterval)
	assert.Equal(t, 5, cfg.Kafka.RetryAttempts)
	assert.Equal(t, 5*time.Second, cfg.Kafka.ReconnectDelay)
	assert.Equal(t, 256, cfg.Bridge.SendQueueSize)
	assert.Empty(t, cfg.Redis.Addr)

	require.Len(t, cfg.Feeds, 3)
	eth, ok := cfg.Feed("ethereum")
	require.True(t, ok)
	assert.Equal(t, "ethereum-swaps", eth.Topic)
	assert.Equal(t, "ethereum-ws-group", eth.GroupID)
	assert.Equal(t, 8084, eth.Port)
	assert.Equal(t, "ethereum-swaps-ws-consumer", eth.ClientID())
	assert.Equal(t, ":8084", eth.Addr(""))

	bsc, ok := cfg.Feed("bsc")
	require.True(t, ok)
	assert.Equal(t, 8083, bsc.Port)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("ENV", "prod")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("KAFKA_RECONNECT_DELAY", "750ms")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("BRIDGE_SEND_QUEUE_SIZE", "64")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 750*time.Millisecond, cfg.Kafka.ReconnectDelay)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 64, cfg.Bridge.SendQueueSize)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	yaml := `
env: dev
kafka:
  brokers: ["broker:29092"]
feeds:
  - name: ethereum
    topic: eth-test
    group_id: eth-test-group
    port: 9001
    label: Ethereum swaps
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, []string{"broker:29092"}, cfg.Kafka.Brokers)
	require.Len(t, cfg.Feeds, 1)
	assert.Equal(t, "eth-test", cfg.Feeds[0].Topic)
	assert.Equal(t, 9001, cfg.Feeds[0].Port)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Kafka:  KafkaConfig{Brokers: []string{"b:9092"}, ReconnectDelay: time.Second},
			Bridge: BridgeConfig{SendQueueSize: 8},
			Feeds: []FeedConfig{
				{Name: "ethereum", Topic: "ethereum-swaps", Port: 8084},
				{Name: "base", Topic: "base-swaps", Port: 8085},
			},
		}
	}

	cases := map[string]func(c *Config){
		"no brokers":        func(c *Config) { c.Kafka.Brokers = nil },
		"no feeds":          func(c *Config) { c.Feeds = nil },
		"zero delay":        func(c *Config) { c.Kafka.ReconnectDelay = 0 },
		"zero queue":        func(c *Config) { c.Bridge.SendQueueSize = 0 },
		"duplicate name":    func(c *Config) { c.Feeds[1].Name = "ethereum" },
		"duplicate port":    func(c *Config) { c.Feeds[1].Port = 8084 },
		"empty topic":       func(c *Config) { c.Feeds[0].Topic = "" },
		"port out of range": func(c *Config) { c.Feeds[0].Port = 70000 },
	}

	ok := valid()
	require.NoError(t, ok.Validate())

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

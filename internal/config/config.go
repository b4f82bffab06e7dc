package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Env    string `mapstructure:"env"`
	Feed   FeedConfig
	Redis  RedisConfig
	Market MarketConfig
}

// FeedConfig holds WebSocket feed server settings.
type FeedConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	PingIntervalSec int    `mapstructure:"ping_interval_sec"`
	WriteTimeoutSec int    `mapstructure:"write_timeout_sec"`
}

// RedisConfig holds Redis connection settings for the snapshot writer.
// An empty Addr disables persistence.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MarketConfig holds tunable market parameters.
type MarketConfig struct {
	// ReserveFloorWei is the minimum reserve price an auction may be
	// listed with.
	ReserveFloorWei int64 `mapstructure:"reserve_floor_wei"`
}

// Load reads configuration from environment variables prefixed with AGORA_.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AGORA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("env", "development")

	// Feed defaults
	v.SetDefault("feed.listen_addr", ":8580")
	v.SetDefault("feed.ping_interval_sec", 15)
	v.SetDefault("feed.write_timeout_sec", 5)

	// Redis defaults
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Market defaults
	v.SetDefault("market.reserve_floor_wei", 100)

	cfg := &Config{}

	cfg.Env = v.GetString("env")

	cfg.Feed = FeedConfig{
		ListenAddr:      v.GetString("feed.listen_addr"),
		PingIntervalSec: v.GetInt("feed.ping_interval_sec"),
		WriteTimeoutSec: v.GetInt("feed.write_timeout_sec"),
	}

	cfg.Redis = RedisConfig{
		Addr:     v.GetString("redis.addr"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
	}

	cfg.Market = MarketConfig{
		ReserveFloorWei: v.GetInt64("market.reserve_floor_wei"),
	}

	return cfg, nil
}

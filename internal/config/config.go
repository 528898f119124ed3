package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"optionsMirror/internal/model"
)

const (
	DefaultIndexerURL = "https://api.starkscan.co/api/v0/events"
	MaxPageLimit      = 100
)

// Config holds configuration values loaded from flags, env, or config file.
// It is built once at start-up and passed by value to constructors.
type Config struct {
	RPCURL            string
	Network           string
	AMMAddress        string
	OracleAddress     string
	Pools             []string
	Options           []model.Option
	Protocols         []string
	IndexerURL        string
	IndexerAPIKey     string
	GenesisBlock      uint64
	EventGenesisBlock uint64
	ToBlock           uint64
	RetryBackoff      time.Duration
	PollInterval      time.Duration
	PageDelay         time.Duration
	RateLimitDelay    time.Duration
	PageLimit         int
	BackfillWorkers   int
	PGDSN             string
	SQLitePath        string
	RedisURL          string
	AlertChannel      string
	MetricsAddr       string
	LogLevel          string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MIRROR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("network", "mainnet")
	v.SetDefault("indexer-url", DefaultIndexerURL)
	v.SetDefault("retry-backoff", 3*time.Second)
	v.SetDefault("poll-interval", 30*time.Second)
	v.SetDefault("page-delay", time.Second)
	v.SetDefault("rate-limit-delay", 10*time.Second)
	v.SetDefault("page-limit", MaxPageLimit)
	v.SetDefault("backfill-workers", 4)
	v.SetDefault("alert-channel", "mirror:alerts")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:            v.GetString("rpc"),
		Network:           v.GetString("network"),
		IndexerURL:        v.GetString("indexer-url"),
		IndexerAPIKey:     v.GetString("indexer-api-key"),
		GenesisBlock:      v.GetUint64("genesis-block"),
		EventGenesisBlock: v.GetUint64("event-genesis-block"),
		ToBlock:           v.GetUint64("to"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		PollInterval:      v.GetDuration("poll-interval"),
		PageDelay:         v.GetDuration("page-delay"),
		RateLimitDelay:    v.GetDuration("rate-limit-delay"),
		PageLimit:         v.GetInt("page-limit"),
		BackfillWorkers:   v.GetInt("backfill-workers"),
		PGDSN:             v.GetString("pg-dsn"),
		SQLitePath:        v.GetString("sqlite-path"),
		RedisURL:          v.GetString("redis-url"),
		AlertChannel:      v.GetString("alert-channel"),
		MetricsAddr:       v.GetString("metrics-addr"),
		LogLevel:          v.GetString("log-level"),
	}

	if cfg.PageLimit <= 0 || cfg.PageLimit > MaxPageLimit {
		return Config{}, fmt.Errorf("page-limit must be in 1..%d", MaxPageLimit)
	}

	var err error
	if cfg.AMMAddress, err = optionalAddress(v.GetString("amm-address")); err != nil {
		return Config{}, fmt.Errorf("amm-address: %w", err)
	}
	if cfg.OracleAddress, err = optionalAddress(v.GetString("oracle-address")); err != nil {
		return Config{}, fmt.Errorf("oracle-address: %w", err)
	}
	if cfg.Pools, err = ParseAddresses(getStringSlice(v, "pools")); err != nil {
		return Config{}, fmt.Errorf("pools: %w", err)
	}
	if cfg.Protocols, err = ParseAddresses(getStringSlice(v, "protocols")); err != nil {
		return Config{}, fmt.Errorf("protocols: %w", err)
	}
	if v.IsSet("options") {
		var options []model.Option
		if err := v.UnmarshalKey("options", &options); err != nil {
			return Config{}, fmt.Errorf("options: %w", err)
		}
		if cfg.Options, err = ParseOptions(options); err != nil {
			return Config{}, fmt.Errorf("options: %w", err)
		}
	}

	return cfg, nil
}

func optionalAddress(input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", nil
	}
	return model.NormalizeAddress(input)
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

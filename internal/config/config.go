package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// SyncConfig holds configuration for the sync command.
type SyncConfig struct {
	RPCURL            string
	FromBlock         uint64
	ToBlock           uint64
	Confirmations     uint64
	Addresses         []string
	BatchSize         uint64
	MaxRetries        int
	RetryBackoff      time.Duration
	Strict            bool
	Topic0Map         map[string]string
	SpacingOverrides  map[string]string
	TickSpacing       int32
	SpacingCacheSize  int
	Out               string
	PGDSN             string
	Migrate           bool
	Checkpoint        string
	CheckpointEnabled bool
	StateName         string
	LogLevel          string
}

// LoadSync merges config file, environment variables, and flags into SyncConfig.
func LoadSync(cfgFile string, flags *pflag.FlagSet) (SyncConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"batch-size":         uint64(2000),
		"max-retries":        5,
		"retry-backoff":      500 * time.Millisecond,
		"spacing-cache-size": 1024,
		"out":                "./data/ticks.jsonl",
		"checkpoint":         "./data/checkpoint.json",
		"checkpoint-enabled": true,
		"state-name":         "sync",
		"log-level":          "info",
	})
	if err != nil {
		return SyncConfig{}, err
	}

	return SyncConfig{
		RPCURL:            v.GetString("rpc"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		Confirmations:     v.GetUint64("confirmations"),
		Addresses:         getStringSlice(v, "address"),
		BatchSize:         v.GetUint64("batch-size"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		Strict:            v.GetBool("strict"),
		Topic0Map:         getStringMap(v, "topic0-map"),
		SpacingOverrides:  getStringMap(v, "spacing-override"),
		TickSpacing:       v.GetInt32("tick-spacing"),
		SpacingCacheSize:  v.GetInt("spacing-cache-size"),
		Out:               v.GetString("out"),
		PGDSN:             v.GetString("pg-dsn"),
		Migrate:           v.GetBool("migrate"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		StateName:         v.GetString("state-name"),
		LogLevel:          v.GetString("log-level"),
	}, nil
}

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	In               string
	Format           string
	RPCURL           string
	MaxRetries       int
	RetryBackoff     time.Duration
	TickSpacing      int32
	SpacingOverrides map[string]string
	Topic0Map        map[string]string
	Strict           bool
	Out              string
	PGDSN            string
	Migrate          bool
	LogLevel         string
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"format":        "typed",
		"max-retries":   3,
		"retry-backoff": 500 * time.Millisecond,
		"out":           "./data/ticks.jsonl",
		"log-level":     "info",
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	return ReplayConfig{
		In:               v.GetString("in"),
		Format:           v.GetString("format"),
		RPCURL:           v.GetString("rpc"),
		MaxRetries:       v.GetInt("max-retries"),
		RetryBackoff:     v.GetDuration("retry-backoff"),
		TickSpacing:      v.GetInt32("tick-spacing"),
		SpacingOverrides: getStringMap(v, "spacing-override"),
		Topic0Map:        getStringMap(v, "topic0-map"),
		Strict:           v.GetBool("strict"),
		Out:              v.GetString("out"),
		PGDSN:            v.GetString("pg-dsn"),
		Migrate:          v.GetBool("migrate"),
		LogLevel:         v.GetString("log-level"),
	}, nil
}

// QueryConfig holds configuration for the next and walk commands.
type QueryConfig struct {
	Pool      string
	Tick      int32
	Lte       bool
	Steps     int
	Snapshots string
	PGDSN     string
	LogLevel  string
}

// LoadQuery merges config file, environment variables, and flags into QueryConfig.
func LoadQuery(cfgFile string, flags *pflag.FlagSet) (QueryConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"steps":     10,
		"snapshots": "./data/ticks.jsonl",
		"log-level": "warn",
	})
	if err != nil {
		return QueryConfig{}, err
	}

	return QueryConfig{
		Pool:      v.GetString("pool"),
		Tick:      v.GetInt32("tick"),
		Lte:       v.GetBool("lte"),
		Steps:     v.GetInt("steps"),
		Snapshots: v.GetString("snapshots"),
		PGDSN:     v.GetString("pg-dsn"),
		LogLevel:  v.GetString("log-level"),
	}, nil
}

func load(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("TICKS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
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
	return cleanStrings(strings.Split(input, ","))
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

// getStringMap reads a map from a config file table or a comma-separated
// key=value string (flags and env).
func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	switch typed := v.Get(key).(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, val := range typed {
			out[k] = fmt.Sprintf("%v", val)
		}
		return out
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(input, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}

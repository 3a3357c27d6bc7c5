package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadSyncPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "ticks.yaml")
	content := []byte(`
rpc: http://file
batch-size: 50
address:
  - "0x1111111111111111111111111111111111111111"
  - "0x2222222222222222222222222222222222222222"
spacing-override:
  "0x1111111111111111111111111111111111111111": 60
`)
	if err := os.WriteFile(cfgFile, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("TICKS_CONFIRMATIONS", "12")
	t.Setenv("TICKS_BATCH_SIZE", "75")

	flags := pflag.NewFlagSet("sync", pflag.ContinueOnError)
	flags.String("rpc", "", "")
	flags.Uint64("batch-size", 2000, "")
	flags.Bool("strict", false, "")
	if err := flags.Parse([]string{"--rpc", "http://flag", "--strict"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadSync(cfgFile, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.RPCURL != "http://flag" {
		t.Fatalf("flag should win, got %q", cfg.RPCURL)
	}
	if cfg.BatchSize != 75 {
		t.Fatalf("env should beat file, got %d", cfg.BatchSize)
	}
	if cfg.Confirmations != 12 || !cfg.Strict {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.Addresses) != 2 {
		t.Fatalf("addresses mismatch: %v", cfg.Addresses)
	}
	if cfg.SpacingOverrides["0x1111111111111111111111111111111111111111"] != "60" {
		t.Fatalf("overrides mismatch: %v", cfg.SpacingOverrides)
	}
	if cfg.MaxRetries != 5 || cfg.RetryBackoff != 500*time.Millisecond || !cfg.CheckpointEnabled {
		t.Fatalf("defaults mismatch: %+v", cfg)
	}
}

func TestLoadReplayAndQueryDefaults(t *testing.T) {
	replayCfg, err := LoadReplay("", nil)
	if err != nil {
		t.Fatalf("load replay: %v", err)
	}
	if replayCfg.Format != "typed" || replayCfg.Out != "./data/ticks.jsonl" {
		t.Fatalf("replay defaults mismatch: %+v", replayCfg)
	}

	flags := pflag.NewFlagSet("next", pflag.ContinueOnError)
	flags.Int32("tick", 0, "")
	flags.Bool("lte", false, "")
	if err := flags.Parse([]string{"--tick=-57", "--lte"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	queryCfg, err := LoadQuery("", flags)
	if err != nil {
		t.Fatalf("load query: %v", err)
	}
	if queryCfg.Tick != -57 || !queryCfg.Lte || queryCfg.Steps != 10 {
		t.Fatalf("query config mismatch: %+v", queryCfg)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	if _, err := LoadQuery(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestParseStringMap(t *testing.T) {
	got := parseStringMap(" a = 1 ,b=2,broken,=3,c= ")
	if len(got) != 2 || got["a"] != "1" || got["b"] != "2" {
		t.Fatalf("unexpected map: %v", got)
	}
	if got := splitAndClean(" x, ,y "); len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Fatalf("unexpected slice: %v", got)
	}
}

// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Provision holds the constants used when funding a fresh session.
type Provision struct {
	AirdropLamports   uint64 `yaml:"airdrop_lamports"`
	FundLamports      uint64 `yaml:"fund_lamports"`
	InitializerAmount uint64 `yaml:"initializer_amount"`
	TakerAmount       uint64 `yaml:"taker_amount"`
	Decimals          uint8  `yaml:"decimals"`
}

// Journal selects where submitted transactions are recorded. Empty values disable a sink.
type Journal struct {
	Path        string `yaml:"path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App       App       `yaml:"app"`
	Cluster   Cluster   `yaml:"cluster"`
	Program   Program   `yaml:"program"`
	Provision Provision `yaml:"provision"`
	Wallet    Wallet    `yaml:"wallet"`
	Journal   Journal   `yaml:"journal"`
}

// Default returns the settings used against a local test validator.
func Default() *Config {
	return &Config{
		App: App{
			Name:     "anchor-escrow",
			Env:      "localnet",
			LogLevel: "info",
		},
		Cluster: Cluster{
			RpcURL:              DefaultRpcURL,
			Commitment:          "confirmed",
			PreflightCommitment: "processed",
			ConfirmTimeoutMs:    60_000,
			PollIntervalMs:      500,
		},
		Program: Program{
			ID:            DefaultProgramID,
			VaultSeed:     "token-seed",
			AuthoritySeed: "escrow",
		},
		Provision: Provision{
			AirdropLamports:   100_000_000_000,
			FundLamports:      1_000_000_000,
			InitializerAmount: 500,
			TakerAmount:       1000,
		},
	}
}

// Load reads a YAML file from disk on top of Default.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	config := Default()
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return config, nil
}

// LoadOrDefault behaves like Load but falls back to Default when path is empty or missing.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ApplyEnv loads .env (best-effort) and overlays the supported environment variables.
func ApplyEnv(cfg *Config) {
	_ = godotenv.Load()
	if v := os.Getenv("SOLANA_RPC_URL"); v != "" {
		cfg.Cluster.RpcURL = v
	}
	if v := os.Getenv("SOLANA_COMMITMENT"); v != "" {
		cfg.Cluster.Commitment = v
	}
	if v := os.Getenv("ESCROW_PROGRAM_ID"); v != "" {
		cfg.Program.ID = v
	}
	if v := os.Getenv("ESCROW_JOURNAL_DSN"); v != "" {
		cfg.Journal.PostgresDSN = v
	}
}

func millis(ms, fallback int) time.Duration {
	if ms <= 0 {
		ms = fallback
	}
	return time.Duration(ms) * time.Millisecond
}

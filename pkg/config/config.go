// Package config loads the client configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config is the structure of the client config file.
type Config struct {
	Gateway  GatewaySection  `toml:"gateway"`
	Chat     ChatSection     `toml:"chat"`
	Emotes   EmotesSection   `toml:"emotes"`
	Logging  LoggingSection  `toml:"logging"`
	Metrics  MetricsSection  `toml:"metrics"`
}

type GatewaySection struct {
	URL     string `toml:"url"`
	APIBase string `toml:"api_base"`
}

type ChatSection struct {
	DataDir      string `toml:"data_dir"`
	BacklogLines int    `toml:"backlog_lines"`
	IconPath     string `toml:"icon_path"`
}

type EmotesSection struct {
	Names    []string `toml:"names"`
	Suffixes []string `toml:"suffixes"`
}

type LoggingSection struct {
	File string `toml:"file"`
}

type MetricsSection struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Gateway: GatewaySection{
			URL:     "wss://chat.example.com/ws",
			APIBase: "https://chat.example.com",
		},
		Chat: ChatSection{
			DataDir:      "~/.openwidget",
			BacklogLines: 150,
		},
		Emotes: EmotesSection{
			Suffixes: []string{"spin", "wide", "flip", "mirror"},
		},
		Logging: LoggingSection{
			File: "~/.openwidget/chat.log",
		},
		Metrics: MetricsSection{
			Enabled: false,
			Listen:  "127.0.0.1:9180",
		},
	}
}

// Load reads the config file at path, creating it with defaults when
// missing, then applies .env and environment variable overrides.
func Load(path string) (Config, error) {
	// Best effort; a missing .env file is fine.
	_ = godotenv.Load()

	path, err := ExpandPath(path)
	if err != nil {
		return Config{}, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := Default()
		if err := writeDefault(path, config); err != nil {
			// Unwritable config dir still leaves a usable client.
			return applyEnvOverrides(config), nil
		}
		return applyEnvOverrides(config), nil
	}

	var config Config
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	return applyEnvOverrides(config), nil
}

// ExpandPath resolves a leading ~/ against the home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}

// applyEnvOverrides applies environment variable overrides following the
// pattern OPENWIDGET_SECTION_KEY, e.g. OPENWIDGET_GATEWAY_URL.
func applyEnvOverrides(config Config) Config {
	if val := os.Getenv("OPENWIDGET_GATEWAY_URL"); val != "" {
		config.Gateway.URL = val
	}
	if val := os.Getenv("OPENWIDGET_GATEWAY_API_BASE"); val != "" {
		config.Gateway.APIBase = val
	}
	if val := os.Getenv("OPENWIDGET_CHAT_DATA_DIR"); val != "" {
		config.Chat.DataDir = val
	}
	if val := os.Getenv("OPENWIDGET_CHAT_BACKLOG_LINES"); val != "" {
		if lines, err := strconv.Atoi(val); err == nil {
			config.Chat.BacklogLines = lines
		}
	}
	if val := os.Getenv("OPENWIDGET_LOGGING_FILE"); val != "" {
		config.Logging.File = val
	}
	if val := os.Getenv("OPENWIDGET_METRICS_ENABLED"); val != "" {
		config.Metrics.Enabled = val == "true" || val == "1"
	}
	if val := os.Getenv("OPENWIDGET_METRICS_LISTEN"); val != "" {
		config.Metrics.Listen = val
	}
	return config
}

func writeDefault(path string, config Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(config)
}

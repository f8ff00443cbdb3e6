package main

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds all conveyor server configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	Store    string `json:"store"`     // "file" or "libsql"
	LogDir   string `json:"log_dir"`   // file store directory
	DBPath   string `json:"db_path"`   // libsql database file
	LogLevel string `json:"log_level"` // debug, info, warn, error
}

func defaultConfig() Config {
	return Config{
		Store:    "file",
		LogDir:   filepath.Join(conveyorDir(), "logs"),
		DBPath:   filepath.Join(conveyorDir(), "conveyor.db"),
		LogLevel: "info",
	}
}

func conveyorDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".conveyor"
	}
	return filepath.Join(home, ".conveyor")
}

func settingsPath() string {
	return filepath.Join(conveyorDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("CONVEYOR_STORE"); v != "" {
		cfg.Store = v
	}
	if v := os.Getenv("CONVEYOR_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("CONVEYOR_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("CONVEYOR_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg
}

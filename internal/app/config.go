package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// Storage kinds.
const (
	StorageFile   = "file"
	StorageMemory = "memory"
)

// Built-in defaults, overridden by the config file and then by flags.
const (
	DefaultStoragePath = "functions.json"
	DefaultStorageKind = StorageFile
	DefaultListenAddr  = "127.0.0.1:8000"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
)

// ConfigEnv names the config file when no --config flag is given.
const ConfigEnv = "PARAMFN_CONFIG"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	StoragePath string // JSON document holding every definition
	StorageKind string // "file" or "memory"
	ListenAddr  string // address of the HTTP server

	LogFormat string
	LogLevel  string

	Command Command
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		StoragePath: DefaultStoragePath,
		StorageKind: DefaultStorageKind,
		ListenAddr:  DefaultListenAddr,
		LogFormat:   DefaultLogFormat,
		LogLevel:    DefaultLogLevel,
	}
}

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	switch cfg.StorageKind {
	case StorageFile:
		if cfg.StoragePath == "" {
			return nil, errors.New("storage path cannot be empty for file storage")
		}
	case StorageMemory:
	default:
		return nil, fmt.Errorf("invalid storage kind %q: must be '%s' or '%s'", cfg.StorageKind, StorageFile, StorageMemory)
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, errors.New("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}

	switch cfg.LogFormat {
	case "text", "json", "pretty":
	default:
		return nil, errors.New("invalid log-format: must be 'text', 'json' or 'pretty'")
	}

	if cfg.Command.Name == "" {
		return nil, errors.New("a command is required")
	}
	if cfg.Command.Name == CmdServe && cfg.ListenAddr == "" {
		return nil, errors.New("listen address cannot be empty for serve")
	}

	return &cfg, nil
}

// fileConfig is the layout of the TOML config file:
//
//	[storage]
//	kind = "file"
//	path = "functions.json"
//
//	[server]
//	listen = "127.0.0.1:8000"
//
//	[log]
//	level = "info"
//	format = "text"
type fileConfig struct {
	Storage struct {
		Kind string `toml:"kind"`
		Path string `toml:"path"`
	} `toml:"storage"`
	Server struct {
		Listen string `toml:"listen"`
	} `toml:"server"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
}

// ApplyFile overlays the settings found in the TOML file at path onto cfg.
// Settings the file leaves out keep their current value. A relative storage
// path is resolved against the directory of the file.
func ApplyFile(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	if fc.Storage.Path != "" {
		cfg.StoragePath = fc.Storage.Path
		if !filepath.IsAbs(cfg.StoragePath) {
			cfg.StoragePath = filepath.Join(filepath.Dir(path), cfg.StoragePath)
		}
	}
	overlay(&cfg.StorageKind, fc.Storage.Kind)
	overlay(&cfg.ListenAddr, fc.Server.Listen)
	overlay(&cfg.LogLevel, fc.Log.Level)
	overlay(&cfg.LogFormat, fc.Log.Format)
	return nil
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

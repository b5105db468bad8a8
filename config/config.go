package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/nimh-dsst/dataset-browser/api"
	"github.com/nimh-dsst/dataset-browser/bids"
	"github.com/nimh-dsst/dataset-browser/storage"
	"go.yaml.in/yaml/v3"
)

type Config struct {
	Logger  LoggerConfig  `yaml:"logger"`
	API     api.Config    `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`

	// BIDS enables the participant-dashboard endpoints when present.
	BIDS *bids.Config `yaml:"bids"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`
	Type   string `yaml:"type"`
	Output string `yaml:"output"`
}

type StorageConfig struct {
	Type   string `yaml:"type"`
	Config any    `yaml:"config"`
}

// App holds the wired components of the browsing server.
type App struct {
	API     api.Config
	Storage *storage.SQLiteStorage
	BIDS    *bids.Browser
}

func (cfg Config) Parse() (*App, *slog.Logger, error) {
	logger, err := parseLoggerConfig(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot create logger: %w", err)
	}

	st, err := parseStorageConfig(cfg.Storage)
	if err != nil {
		return nil, logger, fmt.Errorf("cannot create storage: %w", err)
	}

	app := &App{
		API:     cfg.API,
		Storage: st,
	}

	if cfg.BIDS != nil {
		app.BIDS = bids.NewBrowser(*cfg.BIDS, st)
	}

	return app, logger, nil
}

func parseLoggerConfig(cfg LoggerConfig) (*slog.Logger, error) {
	var logger *slog.Logger
	var handler slog.Handler

	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", cfg.Level)
	}

	w := os.Stdout
	switch cfg.Type {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case "text":
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	case "colored-text":
		handler = tint.NewHandler(w, &tint.Options{Level: level, TimeFormat: time.Kitchen})
	default:
		return nil, fmt.Errorf("invalid log type: %s", cfg.Type)
	}

	logger = slog.New(handler)

	return logger, nil
}

func parseStorageConfig(cfg StorageConfig) (*storage.SQLiteStorage, error) {
	switch cfg.Type {
	case "sqlite":
		var sqliteConfig storage.SQLiteStorageConfig

		if err := remarshal(cfg.Config, &sqliteConfig); err != nil {
			return nil, fmt.Errorf("cannot parse sqlite storage config: %w", err)
		}

		s, err := storage.NewSQLiteStorage(sqliteConfig)
		if err != nil {
			return nil, fmt.Errorf("cannot create sqlite storage: %w", err)
		}

		return s, nil

	default:
		return nil, fmt.Errorf("invalid storage type: %s", cfg.Type)
	}
}

// remarshal takes an input value, marshals it to YAML, and then unmarshals it into a new value of the same type.
// This is useful for converting generic interfaces (like map[string]any) into concrete struct types.
// The output parameter must be a pointer to the target type.
func remarshal(input any, output any) error {
	// Marshal the input to YAML
	yamlBytes, err := yaml.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to marshal to YAML: %w", err)
	}

	// Unmarshal the YAML into the output
	if err := yaml.Unmarshal(yamlBytes, output); err != nil {
		return fmt.Errorf("failed to unmarshal from YAML: %w", err)
	}

	return nil
}

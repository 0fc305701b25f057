package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	Database   DatabaseConfig   `toml:"database"`
	Server     ServerConfig     `toml:"server"`
	Seed       SeedConfig       `toml:"seed"`
	Logging    LoggingConfig    `toml:"logging"`
	Checklists ChecklistsConfig `toml:"checklists"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type ServerConfig struct {
	Bind   string `toml:"bind"`
	APIKey string `toml:"api_key"`
}

type SeedConfig struct {
	BorrowersDir string `toml:"borrowers_dir"`
}

type LoggingConfig struct {
	Level   string `toml:"level"`
	DevFile string `toml:"dev_file"`
}

// ChecklistsConfig optionally overrides the built-in checklist tables. An
// empty Stages map keeps the defaults.
type ChecklistsConfig struct {
	Stages map[string][]ItemConfig            `toml:"stages"`
	Extras map[string]map[string][]ItemConfig `toml:"extras"`
}

type ItemConfig struct {
	Key      string `toml:"key"`
	Label    string `toml:"label"`
	Required bool   `toml:"required"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Server: ServerConfig{
			Bind: "127.0.0.1:8080",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}
	if strings.TrimSpace(c.Server.Bind) == "" {
		return errors.New("server bind address is required")
	}
	switch strings.TrimSpace(strings.ToLower(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	for stage, items := range c.Checklists.Stages {
		if err := validateItems("checklists.stages."+stage, items); err != nil {
			return err
		}
	}
	for program, stages := range c.Checklists.Extras {
		for stage, items := range stages {
			if err := validateItems(fmt.Sprintf("checklists.extras.%s.%s", program, stage), items); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateItems(section string, items []ItemConfig) error {
	seen := map[string]struct{}{}
	for i, item := range items {
		if strings.TrimSpace(item.Label) == "" {
			return fmt.Errorf("%s[%d].label is required", section, i)
		}
		key := strings.TrimSpace(item.Key)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%s[%d].key is duplicated: %s", section, i, key)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

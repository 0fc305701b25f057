package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/loanward/loantrack/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/loantrack.db")
	if cfg.Database.Path != "/tmp/loantrack.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Server.Bind != "127.0.0.1:8080" {
		t.Fatalf("unexpected bind %q", cfg.Server.Bind)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("unexpected log level %q", cfg.Logging.Level)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	defaults := Default("/tmp/loantrack.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != defaults.Database.Path {
		t.Fatalf("expected default db path, got %q", cfg.Database.Path)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[database]
path = "/custom/loantrack.db"

[server]
bind = "0.0.0.0:9090"
api_key = "s3cret"

[seed]
borrowers_dir = "/data/borrowers"

[logging]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path, Default("/tmp/default.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/custom/loantrack.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Server.Bind != "0.0.0.0:9090" || cfg.Server.APIKey != "s3cret" {
		t.Fatalf("unexpected server config %#v", cfg.Server)
	}
	if cfg.Seed.BorrowersDir != "/data/borrowers" {
		t.Fatalf("unexpected borrowers dir %q", cfg.Seed.BorrowersDir)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected log level %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsInvalidLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[logging]
level = "loud"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := Load(path, Default("/tmp/loantrack.db")); err == nil {
		t.Fatal("expected invalid level error")
	}
}

func TestChecklistTemplatesOverride(t *testing.T) {
	cfg := ChecklistsConfig{
		Stages: map[string][]ItemConfig{
			"closing": {
				{Label: "Docs sent", Required: true},
				{Key: "wire-sent", Label: "Funds wired", Required: true},
			},
		},
		Extras: map[string]map[string][]ItemConfig{
			"va": {
				"application": {
					{Label: "COE obtained", Required: true},
				},
			},
		},
	}
	templates := cfg.Templates()

	closing := templates.TemplateFor(domain.StageClosing, domain.ProgramConventional)
	if len(closing) != 2 {
		t.Fatalf("expected 2 overridden closing items, got %d", len(closing))
	}
	if closing[0].Key != "docs-sent" || closing[1].Key != "wire-sent" {
		t.Fatalf("unexpected keys %q, %q", closing[0].Key, closing[1].Key)
	}

	va := templates.TemplateFor(domain.StageApplication, domain.ProgramVA)
	var sawCOE bool
	for _, item := range va {
		if item.Key == "coe-obtained" {
			sawCOE = true
		}
	}
	if !sawCOE {
		t.Fatal("expected va extra item")
	}

	// Untouched stages keep the defaults.
	app := templates.TemplateFor(domain.StageApplication, domain.ProgramConventional)
	if len(app) != 6 {
		t.Fatalf("expected default application items, got %d", len(app))
	}
}

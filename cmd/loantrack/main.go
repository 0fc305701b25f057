package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	charmLog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	serveradapter "github.com/loanward/loantrack/internal/adapters/server"
	servercommon "github.com/loanward/loantrack/internal/adapters/server/common"
	"github.com/loanward/loantrack/internal/adapters/storage/sqlite"
	"github.com/loanward/loantrack/internal/app"
	"github.com/loanward/loantrack/internal/config"
	"github.com/loanward/loantrack/internal/platform"
	"github.com/loanward/loantrack/internal/seed"
)

// version stores the build version injected at link time.
var version = "dev"

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// run runs the requested command flow.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("loantrack", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		configPath string
		dbPath     string
		appName    string
		devMode    bool
		showVer    bool
	)
	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("LOANTRACK_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv("LOANTRACK_APP_NAME")); envApp != "" {
		appName = envApp
	} else {
		appName = "loantrack"
	}
	fs.StringVar(&configPath, "config", "", "path to config TOML")
	fs.StringVar(&dbPath, "db", "", "path to sqlite database")
	fs.StringVar(&appName, "app", appName, "application name for config/data path resolution")
	fs.BoolVar(&devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")
	fs.BoolVar(&showVer, "version", false, "show version")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showVer {
		_, _ = fmt.Fprintf(stdout, "loantrack %s\n", version)
		return nil
	}

	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: appName,
		DevMode: devMode,
	})
	if err != nil {
		return err
	}

	command := firstArg(fs.Args())
	switch command {
	case "paths":
		_, _ = fmt.Fprintf(stdout, "app: %s\n", appName)
		_, _ = fmt.Fprintf(stdout, "dev_mode: %t\n", devMode)
		_, _ = fmt.Fprintf(stdout, "config: %s\n", paths.ConfigPath)
		_, _ = fmt.Fprintf(stdout, "data_dir: %s\n", paths.DataDir)
		_, _ = fmt.Fprintf(stdout, "db: %s\n", paths.DBPath)
		return nil
	case "", "serve", "digest", "seed", "export", "import":
		// Continue.
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
	if command == "" {
		command = "serve"
	}

	dbOverridden := strings.TrimSpace(dbPath) != ""
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("LOANTRACK_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("LOANTRACK_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}

	logger, err := newRuntimeLogger(stderr, appName, devMode, cfg.Logging)
	if err != nil {
		return fmt.Errorf("configure runtime logger: %w", err)
	}
	defer func() {
		if closeErr := logger.Close(); closeErr != nil {
			_, _ = fmt.Fprintf(stderr, "warning: close runtime log sink: %v\n", closeErr)
		}
	}()

	logger.Info("startup configuration resolved", "app", appName, "dev_mode", devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", dbPath)
	logger.Info("configuration loaded", "config_path", configPath, "db_path", cfg.Database.Path, "log_level", cfg.Logging.Level)

	logger.Info("opening sqlite repository", "db_path", cfg.Database.Path)
	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		return fmt.Errorf("open sqlite repository: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			logger.Warn("sqlite close failed", "db_path", cfg.Database.Path, "err", closeErr)
		}
	}()
	logger.Info("sqlite repository ready", "db_path", cfg.Database.Path, "migrations", "ensured")

	templates := cfg.Checklists.Templates()
	svc := app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{
		Templates: &templates,
	})
	logger.Debug("application service initialized")

	// The command token is absent when the command defaulted to serve.
	commandArgs := fs.Args()
	if len(commandArgs) > 0 {
		commandArgs = commandArgs[1:]
	}

	logger.Info("command flow start", "command", command)
	switch command {
	case "serve":
		err = runServe(ctx, svc, cfg, commandArgs, appName)
	case "digest":
		err = runDigest(ctx, svc, commandArgs, stdout)
	case "seed":
		err = runSeed(ctx, svc, cfg, commandArgs, stdout, logger.sink)
	case "export":
		err = runExport(ctx, svc, commandArgs, stdout)
	case "import":
		err = runImport(ctx, svc, commandArgs)
	}
	if err != nil {
		logger.Error("command flow failed", "command", command, "err", err)
		return fmt.Errorf("run %s command: %w", command, err)
	}
	logger.Info("command flow complete", "command", command)
	return nil
}

// runServe runs the serve subcommand flow.
func runServe(ctx context.Context, svc *app.Service, cfg config.Config, args []string, appName string) error {
	fs := flag.NewFlagSet("loantrack serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		httpBind    string
		apiEndpoint string
		mcpEndpoint string
		apiKey      string
	)
	fs.StringVar(&httpBind, "http", cfg.Server.Bind, "HTTP listen address")
	fs.StringVar(&apiEndpoint, "api-endpoint", "/api/v1", "HTTP API base endpoint")
	fs.StringVar(&mcpEndpoint, "mcp-endpoint", "/mcp", "MCP streamable HTTP endpoint")
	fs.StringVar(&apiKey, "api-key", cfg.Server.APIKey, "shared key required on mutating requests")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse serve flags: %w", err)
	}
	if len(fs.Args()) > 0 {
		return fmt.Errorf("unexpected serve arguments: %v", fs.Args())
	}

	appAdapter := servercommon.NewAppServiceAdapter(svc, time.Now)
	return serveCommandRunner(ctx, serveradapter.Config{
		HTTPBind:      httpBind,
		APIEndpoint:   apiEndpoint,
		MCPEndpoint:   mcpEndpoint,
		APIKey:        apiKey,
		ServerName:    appName,
		ServerVersion: version,
	}, serveradapter.Dependencies{
		Loans: appAdapter,
	})
}

// runDigest renders the deadline digest for the active pipeline.
func runDigest(ctx context.Context, svc *app.Service, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("loantrack digest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		plain bool
		width int
	)
	fs.BoolVar(&plain, "plain", false, "emit raw markdown without terminal styling")
	fs.IntVar(&width, "width", 80, "wrap width for styled output")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse digest flags: %w", err)
	}
	if len(fs.Args()) > 0 {
		return fmt.Errorf("unexpected digest arguments: %v", fs.Args())
	}

	digest, err := svc.BuildDigest(ctx)
	if err != nil {
		return fmt.Errorf("build digest: %w", err)
	}
	markdown := digestMarkdown(digest)
	if plain {
		_, _ = fmt.Fprintln(stdout, markdown)
		return nil
	}
	_, _ = fmt.Fprintln(stdout, renderMarkdown(markdown, width))
	return nil
}

// runSeed imports borrower intake files into the pipeline.
func runSeed(ctx context.Context, svc *app.Service, cfg config.Config, args []string, stdout io.Writer, logger *charmLog.Logger) error {
	fs := flag.NewFlagSet("loantrack seed", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var dir string
	fs.StringVar(&dir, "dir", cfg.Seed.BorrowersDir, "directory of borrower intake markdown files")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse seed flags: %w", err)
	}
	if len(fs.Args()) > 0 {
		return fmt.Errorf("unexpected seed arguments: %v", fs.Args())
	}
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("--dir is required when seed.borrowers_dir is not configured")
	}

	result, err := seed.NewImporter(svc, logger).Run(ctx, dir)
	if err != nil {
		return fmt.Errorf("seed borrowers: %w", err)
	}
	_, _ = fmt.Fprintf(stdout, "created: %d, skipped: %d\n", len(result.Created), len(result.Skipped))
	return nil
}

// runExport writes the full pipeline as one snapshot JSON document.
func runExport(ctx context.Context, svc *app.Service, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("loantrack export", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var outPath string
	fs.StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse export flags: %w", err)
	}
	if len(fs.Args()) > 0 {
		return fmt.Errorf("unexpected export arguments: %v", fs.Args())
	}

	snap, err := svc.ExportSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	encoded, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot json: %w", err)
	}
	encoded = append(encoded, '\n')

	if outPath == "-" {
		if _, err := stdout.Write(encoded); err != nil {
			return fmt.Errorf("write snapshot to stdout: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create export output dir: %w", err)
	}
	if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

// runImport restores a snapshot JSON document into the pipeline.
func runImport(ctx context.Context, svc *app.Service, args []string) error {
	fs := flag.NewFlagSet("loantrack import", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var inPath string
	fs.StringVar(&inPath, "in", "", "input snapshot JSON file")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse import flags: %w", err)
	}
	if len(fs.Args()) > 0 {
		return fmt.Errorf("unexpected import arguments: %v", fs.Args())
	}
	if inPath == "" {
		return fmt.Errorf("--in is required")
	}

	content, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}
	var snap app.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		return fmt.Errorf("decode snapshot json: %w", err)
	}
	if err := svc.ImportSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}
	return nil
}

// digestMarkdown formats one digest as markdown, most urgent first.
func digestMarkdown(d app.Digest) string {
	var b strings.Builder
	b.WriteString("# Daily Digest\n\n")
	b.WriteString(fmt.Sprintf("Generated %s\n\n", d.GeneratedAt.Format("Mon, 02 Jan 2006")))

	if len(d.Entries) == 0 && len(d.Unscheduled) == 0 {
		b.WriteString("No active loans in the pipeline.\n")
		return strings.TrimRight(b.String(), "\n")
	}

	if len(d.Entries) > 0 {
		b.WriteString("## Deadlines\n\n")
		for _, entry := range d.Entries {
			b.WriteString(fmt.Sprintf("- **%s** (%s, %s): due %s, %s",
				entry.Borrower, entry.LoanID, entry.Stage,
				entry.DueDate.Format("2006-01-02"), describeDays(entry.DaysRemaining)))
			b.WriteString(fmt.Sprintf(" [%s]", entry.Urgency))
			if entry.Note != "" {
				b.WriteString(fmt.Sprintf(" - %s", entry.Note))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(d.Unscheduled) > 0 {
		b.WriteString("## No Deadline Set\n\n")
		for _, entry := range d.Unscheduled {
			b.WriteString(fmt.Sprintf("- **%s** (%s, %s)\n", entry.Borrower, entry.LoanID, entry.Stage))
		}
		b.WriteString("\n")
	}

	var actions []string
	for _, entry := range d.Entries {
		if len(entry.PendingItems) > 0 {
			actions = append(actions, fmt.Sprintf("- **%s** [%s] %s\n",
				entry.Borrower, entry.Stage, pendingSummary(entry.PendingItems)))
		}
	}
	for _, entry := range d.Unscheduled {
		if len(entry.PendingItems) > 0 {
			actions = append(actions, fmt.Sprintf("- **%s** [%s] %s\n",
				entry.Borrower, entry.Stage, pendingSummary(entry.PendingItems)))
		}
	}
	if len(actions) > 0 {
		b.WriteString("## Action Items\n\n")
		for _, line := range actions {
			b.WriteString(line)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// pendingSummary phrases open checklist items, naming at most the first three.
func pendingSummary(items []string) string {
	shown := items
	suffix := ""
	if len(shown) > 3 {
		shown = shown[:3]
		suffix = "..."
	}
	return fmt.Sprintf("%d pending items: %s%s", len(items), strings.Join(shown, ", "), suffix)
}

// describeDays phrases a day count relative to today.
func describeDays(days int) string {
	switch {
	case days < 0:
		return fmt.Sprintf("%d days overdue", -days)
	case days == 0:
		return "due today"
	case days == 1:
		return "1 day left"
	default:
		return fmt.Sprintf("%d days left", days)
	}
}

// renderMarkdown styles markdown for the terminal, falling back to the raw text.
func renderMarkdown(markdown string, width int) string {
	if width < 24 {
		width = 24
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return markdown
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(rendered, "\n")
}

// firstArg handles first arg.
func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// parseBoolEnv parses input into a normalized form.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// runtimeLogger fans log events to the console sink and an optional dev-file sink.
type runtimeLogger struct {
	sink      *charmLog.Logger
	fileSink  *charmLog.Logger
	closeFile func() error
}

// newRuntimeLogger configures runtime log sinks from CLI/config state.
func newRuntimeLogger(stderr io.Writer, appName string, devMode bool, cfg config.LoggingConfig) (*runtimeLogger, error) {
	level, err := charmLog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", cfg.Level, err)
	}
	if stderr == nil {
		stderr = io.Discard
	}

	consoleLogger := charmLog.NewWithOptions(stderr, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.TextFormatter,
	})
	logger := &runtimeLogger{sink: consoleLogger}
	if !devMode || strings.TrimSpace(cfg.DevFile) == "" {
		return logger, nil
	}

	devLogPath := filepath.Clean(cfg.DevFile)
	if err := os.MkdirAll(filepath.Dir(devLogPath), 0o755); err != nil {
		return nil, fmt.Errorf("create dev log dir: %w", err)
	}
	logFile, err := os.OpenFile(devLogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open dev log file: %w", err)
	}

	// File output stays logfmt so dev logs grep cleanly.
	logger.fileSink = charmLog.NewWithOptions(logFile, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.LogfmtFormatter,
	})
	logger.closeFile = logFile.Close
	return logger, nil
}

// Close closes the optional dev-file sink.
func (l *runtimeLogger) Close() error {
	if l == nil || l.closeFile == nil {
		return nil
	}
	return l.closeFile()
}

// Debug logs a debug event to all configured sinks.
func (l *runtimeLogger) Debug(msg string, keyvals ...any) {
	if l == nil {
		return
	}
	l.sink.Debug(msg, keyvals...)
	if l.fileSink != nil {
		l.fileSink.Debug(msg, keyvals...)
	}
}

// Info logs an informational event to all configured sinks.
func (l *runtimeLogger) Info(msg string, keyvals ...any) {
	if l == nil {
		return
	}
	l.sink.Info(msg, keyvals...)
	if l.fileSink != nil {
		l.fileSink.Info(msg, keyvals...)
	}
}

// Warn logs a warning event to all configured sinks.
func (l *runtimeLogger) Warn(msg string, keyvals ...any) {
	if l == nil {
		return
	}
	l.sink.Warn(msg, keyvals...)
	if l.fileSink != nil {
		l.fileSink.Warn(msg, keyvals...)
	}
}

// Error logs an error event to all configured sinks.
func (l *runtimeLogger) Error(msg string, keyvals ...any) {
	if l == nil {
		return
	}
	l.sink.Error(msg, keyvals...)
	if l.fileSink != nil {
		l.fileSink.Error(msg, keyvals...)
	}
}

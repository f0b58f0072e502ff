// Package logging provides config-driven categorized logging for asyncshell.
// Every category is a named child of one zap logger. Output goes to stderr
// unless a file is configured, because stdout carries the tool protocol.
// Categories can be switched off individually; the level can be changed at
// runtime without rebuilding the logger.
package logging

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup, shutdown
	CategoryTasks     Category = "tasks"     // Task lifecycle, process spawn
	CategoryTools     Category = "tools"     // Tool registration and dispatch
	CategoryTransport Category = "transport" // JSON-RPC server
	CategoryConfig    Category = "config"    // Config load and reload
	CategoryAudit     Category = "audit"     // Structured audit events
)

// Options mirrors the relevant parts of config.LoggingConfig
// to avoid circular imports
type Options struct {
	Level      string          // debug, info, warn, error
	Format     string          // json, console
	File       string          // empty = stderr
	DebugMode  bool            // forces debug level
	Categories map[string]bool // per-category toggles, missing = enabled
}

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu      sync.RWMutex
	base    = zap.NewNop()
	opts    Options
	loggers = make(map[Category]*Logger)
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Initialize builds the shared zap logger from opts.
// Safe to call more than once; the previous logger is flushed and replaced.
func Initialize(o Options) error {
	lvl, err := parseLevel(o.Level)
	if err != nil {
		return err
	}
	if o.DebugMode {
		lvl = zapcore.DebugLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	switch strings.ToLower(o.Format) {
	case "", "json":
	case "console", "text":
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	default:
		return fmt.Errorf("unknown log format: %q", o.Format)
	}

	output := "stderr"
	if o.File != "" {
		output = o.File
	}
	cfg.OutputPaths = []string{output}
	cfg.ErrorOutputPaths = []string{"stderr"}

	level.SetLevel(lvl)
	cfg.Level = level

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	mu.Lock()
	old := base
	base = logger
	opts = o
	loggers = make(map[Category]*Logger)
	mu.Unlock()

	_ = old.Sync()

	Boot("logging initialized (level=%s, format=%s, output=%s)", lvl, cfg.Encoding, output)
	return nil
}

// Zap returns the shared zap logger.
func Zap() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// SetLevel changes the level of every category logger.
func SetLevel(s string) error {
	lvl, err := parseLevel(s)
	if err != nil {
		return err
	}
	level.SetLevel(lvl)
	return nil
}

// Level returns the current level name.
func Level() string {
	return level.Level().String()
}

// Sync flushes buffered entries.
func Sync() error {
	return Zap().Sync()
}

func parseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level: %q", s)
	}
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()

	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category, sugar: zap.NewNop().Sugar()}
	}

	mu.RLock()
	l, ok := loggers[category]
	mu.RUnlock()
	if ok {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l = &Logger{
		category: category,
		sugar:    base.Named(string(category)).Sugar(),
	}
	loggers[category] = l
	return l
}

// With returns a child logger that attaches the key/value pairs to every entry.
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

func (l *Logger) Debug(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...any) { l.sugar.Errorf(format, args...) }

// =============================================================================
// CATEGORY SHORTHANDS
// =============================================================================

func Boot(format string, args ...any)      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...any) { Get(CategoryBoot).Debug(format, args...) }
func BootError(format string, args ...any) { Get(CategoryBoot).Error(format, args...) }

func Tasks(format string, args ...any)      { Get(CategoryTasks).Info(format, args...) }
func TasksDebug(format string, args ...any) { Get(CategoryTasks).Debug(format, args...) }
func TasksWarn(format string, args ...any)  { Get(CategoryTasks).Warn(format, args...) }

func Tools(format string, args ...any)      { Get(CategoryTools).Info(format, args...) }
func ToolsDebug(format string, args ...any) { Get(CategoryTools).Debug(format, args...) }

func Transport(format string, args ...any)      { Get(CategoryTransport).Info(format, args...) }
func TransportDebug(format string, args ...any) { Get(CategoryTransport).Debug(format, args...) }
func TransportWarn(format string, args ...any)  { Get(CategoryTransport).Warn(format, args...) }

func Config(format string, args ...any)     { Get(CategoryConfig).Info(format, args...) }
func ConfigWarn(format string, args ...any) { Get(CategoryConfig).Warn(format, args...) }

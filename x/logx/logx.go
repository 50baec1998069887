// Package logx is the component-tagged structured logger shared by the
// foreground code. Interrupt handlers never log.
package logx

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Component identifies a subsystem for log filtering.
type Component string

const (
	Beacon Component = "beacon"
	Sensor Component = "sensor"
	Link   Component = "link"
	Sleep  Component = "sleep"
	Sim    Component = "sim"
	Config Component = "config"
)

// Format selects the handler.
type Format int

const (
	Text Format = iota
	JSON
)

var (
	mu     sync.RWMutex
	level  = new(slog.LevelVar)
	logger *slog.Logger
)

func init() {
	level.Set(slog.LevelWarn)
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// SetLevel sets the minimum level for all components.
func SetLevel(l slog.Level) { level.Set(l) }

// Level returns the current minimum level.
func Level() slog.Level { return level.Level() }

// ParseLevel maps "debug", "info", "warn" and "error" to a level. Anything
// else yields warn.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	}
	return slog.LevelWarn
}

// SetOutput points the default logger at w using format f.
func SetOutput(w io.Writer, f Format) {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if f == JSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	SetLogger(slog.New(h))
}

// SetLogger replaces the default logger.
func SetLogger(l *slog.Logger) {
	mu.Lock()
	logger = l
	mu.Unlock()
}

// Logger returns the default logger tagged with c.
func Logger(c Component) *slog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	return l.With("component", string(c))
}

func log(l slog.Level, c Component, msg string, args []any) {
	mu.RLock()
	lg := logger
	mu.RUnlock()
	lg.Log(context.Background(), l, msg, append([]any{"component", string(c)}, args...)...)
}

func Debug(c Component, msg string, args ...any) { log(slog.LevelDebug, c, msg, args) }
func Info(c Component, msg string, args ...any)  { log(slog.LevelInfo, c, msg, args) }
func Warn(c Component, msg string, args ...any)  { log(slog.LevelWarn, c, msg, args) }
func Error(c Component, msg string, args ...any) { log(slog.LevelError, c, msg, args) }

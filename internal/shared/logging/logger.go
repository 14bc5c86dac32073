package logging

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config captures the settings needed to configure a slog logger.
type Config struct {
	// Level represents the textual log level (debug, info, warn, error).
	Level string
	// Format controls the output encoding (json or text).
	Format string
	// AddSource toggles slog's source attribution.
	AddSource bool
	// Directory receives one log file per UTC day. Empty logs to the writer only.
	Directory string
}

// redactedKeys never reach the log output: tokens and message bodies.
var redactedKeys = map[string]struct{}{
	"token":         {},
	"authorization": {},
	"password":      {},
	"content":       {},
}

// ParseLevel converts textual levels into slog levels, defaulting to info.
func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug", "dbg":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "err":
		return slog.LevelError
	case "trace":
		return slog.LevelDebug - 2
	default:
		return slog.LevelInfo
	}
}

// New builds a slog.Logger for the provided writer using the supplied configuration.
func New(w io.Writer, cfg Config) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	handlerOpts := &slog.HandlerOptions{
		Level:       ParseLevel(cfg.Level),
		AddSource:   cfg.AddSource,
		ReplaceAttr: redact,
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	default:
		return slog.New(slog.NewTextHandler(w, handlerOpts))
	}
}

// Setup builds the process logger writing to stdout and, when cfg.Directory is set, to
// the daily file. It also routes the standard log package (used by echo) through the
// same writer. The returned closer releases the file.
func Setup(cfg Config) (*slog.Logger, io.Closer, error) {
	var writer io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}
	if dir := strings.TrimSpace(cfg.Directory); dir != "" {
		file, err := OpenDailyFile(dir, time.Now())
		if err != nil {
			return nil, nil, err
		}
		writer = io.MultiWriter(os.Stdout, file)
		closer = file
	}

	logger := New(writer, cfg)
	log.SetOutput(writer)
	log.SetFlags(0)
	log.SetPrefix("")
	return logger, closer, nil
}

// OpenDailyFile opens (appending) dir/YYYY-MM-DD.log for the UTC day of now.
func OpenDailyFile(dir string, now time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	name := filepath.Join(dir, now.UTC().Format("2006-01-02")+".log")
	file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if _, ok := redactedKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, "[redacted]")
	}
	return a
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

package simpleai

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// resultPreviewLimit caps the answer text echoed into the end event.
const resultPreviewLimit = 5000

// PromptLogger emits structured lifecycle events (run_prompt.start/end/error)
// for every orchestrated call. Disabled loggers are no-ops.
type PromptLogger struct {
	enabled bool
	logger  *slog.Logger
}

var (
	fileLoggerMu sync.Mutex
	fileLoggers  = map[string]*slog.Logger{}
)

// newPromptLogger builds a logger from settings, writing JSON lines to the
// configured file. When the sink cannot be opened the logger degrades to
// disabled rather than failing the call.
func newPromptLogger(cfg LogSettings) *PromptLogger {
	if !cfg.Enabled {
		return &PromptLogger{}
	}
	logger := fileLogger(cfg.File)
	if logger == nil {
		return &PromptLogger{}
	}
	return &PromptLogger{enabled: true, logger: logger}
}

// newInjectedLogger wraps a caller-supplied slog.Logger.
func newInjectedLogger(logger *slog.Logger) *PromptLogger {
	if logger == nil {
		return &PromptLogger{}
	}
	return &PromptLogger{enabled: true, logger: logger}
}

// fileLogger returns the shared slog.Logger appending to path, opening it on
// first use.
func fileLogger(path string) *slog.Logger {
	if path == "" {
		path = "./simpleai.log"
	}
	fileLoggerMu.Lock()
	defer fileLoggerMu.Unlock()
	if logger, ok := fileLoggers[path]; ok {
		return logger
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil
	}
	logger := slog.New(slog.NewJSONHandler(f, nil))
	fileLoggers[path] = logger
	return logger
}

// Start emits the run_prompt.start event and returns the event id the end or
// error event will carry.
func (l *PromptLogger) Start(args map[string]any) string {
	eventID := uuid.NewString()
	if !l.enabled {
		return eventID
	}
	l.logger.Info("run_prompt.start",
		slog.String("event", "run_prompt.start"),
		slog.String("event_id", eventID),
		slog.Any("args", args),
	)
	return eventID
}

// End emits the run_prompt.end event with a truncated result preview.
func (l *PromptLogger) End(eventID string, startedAt time.Time, resultPreview string, citations int) {
	if !l.enabled {
		return
	}
	if len(resultPreview) > resultPreviewLimit {
		resultPreview = resultPreview[:resultPreviewLimit]
	}
	l.logger.Info("run_prompt.end",
		slog.String("event", "run_prompt.end"),
		slog.String("event_id", eventID),
		slog.Duration("elapsed", time.Since(startedAt)),
		slog.String("result_preview", resultPreview),
		slog.Int("citations_count", citations),
	)
}

// Error emits the run_prompt.error event.
func (l *PromptLogger) Error(eventID string, startedAt time.Time, err error, provider, model string) {
	if !l.enabled {
		return
	}
	l.logger.Error("run_prompt.error",
		slog.String("event", "run_prompt.error"),
		slog.String("event_id", eventID),
		slog.Duration("elapsed", time.Since(startedAt)),
		slog.String("error", err.Error()),
		slog.String("provider", provider),
		slog.String("model", model),
	)
}

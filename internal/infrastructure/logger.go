package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/config"
)

// logSink is the process-wide logger and the file it may write to
type logSink struct {
	mu     sync.Mutex
	once   sync.Once
	logger *slog.Logger
	file   *os.File
}

var sink = &logSink{}

// InitializeLogger creates the JSON run logger and makes it the slog
// default. Only the first call has an effect.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var err error
	sink.once.Do(func() {
		var logger *slog.Logger
		logger, err = createLogger(cfg, os.Stdout)
		if logger == nil {
			return
		}
		sink.mu.Lock()
		sink.logger = logger
		sink.mu.Unlock()
		slog.SetDefault(logger)
	})
	return GetLogger(), err
}

// GetLogger returns the run logger, or slog.Default before initialization
func GetLogger() *slog.Logger {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.logger == nil {
		return slog.Default()
	}
	return sink.logger
}

// CloseLogFile closes the log file if one is open
func CloseLogFile() error {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.file == nil {
		return nil
	}
	err := sink.file.Close()
	sink.file = nil
	return err
}

// ResetLoggerForTesting forgets the run logger so the next
// InitializeLogger call builds a new one
func ResetLoggerForTesting() {
	CloseLogFile()
	sink.mu.Lock()
	sink.logger = nil
	sink.mu.Unlock()
	sink.once = sync.Once{}
}

func createLogger(cfg config.LoggingConfig, console io.Writer) (*slog.Logger, error) {
	out, err := logOutput(cfg, console)
	if err != nil {
		return nil, err
	}
	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		AddSource: true,
		Level:     parseLogLevel(cfg.Level),
	})
	return slog.New(&runHandler{Handler: handler}), nil
}

func logOutput(cfg config.LoggingConfig, console io.Writer) (io.Writer, error) {
	mode := strings.ToLower(cfg.Output)
	if mode != "file" && mode != "both" {
		return console, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", cfg.FilePath, err)
	}
	sink.mu.Lock()
	sink.file = file
	sink.mu.Unlock()

	if mode == "both" {
		return io.MultiWriter(console, file), nil
	}
	return file, nil
}

// parseLogLevel accepts slog level names plus "warning"; anything else
// is info
func parseLogLevel(level string) slog.Level {
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// runHandler adds run_id, stage and trace_id from the context to every
// record
type runHandler struct {
	slog.Handler
}

func (h *runHandler) Handle(ctx context.Context, r slog.Record) error {
	if runID := GetRunID(ctx); runID != "" {
		r.AddAttrs(slog.String("run_id", runID))
	}
	if stage := GetStage(ctx); stage != "" {
		r.AddAttrs(slog.String("stage", stage))
	}
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		r.AddAttrs(slog.String("trace_id", traceID))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *runHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &runHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *runHandler) WithGroup(name string) slog.Handler {
	return &runHandler{Handler: h.Handler.WithGroup(name)}
}

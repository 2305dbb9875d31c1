package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	glog "github.com/goliatone/go-logger/glog"
)

// slogLogger adapts slog to the glog contract consumed by the client.
type slogLogger struct {
	logger *slog.Logger
	ctx    context.Context
}

func newSlogLogger(w io.Writer, verbose bool) *slogLogger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &slogLogger{logger: slog.New(handler).With("component", "commerce-cli"), ctx: context.Background()}
}

func (l *slogLogger) Trace(msg string, args ...any) {
	l.logger.Log(l.ctx, slog.LevelDebug-4, msg, args...)
}

func (l *slogLogger) Debug(msg string, args ...any) { l.logger.DebugContext(l.ctx, msg, args...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.logger.InfoContext(l.ctx, msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.logger.WarnContext(l.ctx, msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.logger.ErrorContext(l.ctx, msg, args...) }

func (l *slogLogger) Fatal(msg string, args ...any) {
	l.logger.ErrorContext(l.ctx, msg, args...)
	os.Exit(1)
}

func (l *slogLogger) WithContext(ctx context.Context) glog.Logger {
	if ctx == nil {
		ctx = context.Background()
	}
	return &slogLogger{logger: l.logger, ctx: ctx}
}

func (l *slogLogger) WithFields(fields map[string]any) glog.Logger {
	args := make([]any, 0, len(fields)*2)
	for key, value := range fields {
		args = append(args, key, value)
	}
	return &slogLogger{logger: l.logger.With(args...), ctx: l.ctx}
}

var (
	_ glog.Logger       = (*slogLogger)(nil)
	_ glog.FieldsLogger = (*slogLogger)(nil)
)

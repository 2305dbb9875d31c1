package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Observer emits one log line plus a counter and a duration histogram per
// finished operation.
type Observer struct {
	logger  Logger
	metrics MetricsRecorder
	prefix  string
}

func NewObserver(prefix string, provider LoggerProvider, logger Logger, metrics MetricsRecorder) Observer {
	prefix = normalizeOperation(prefix)
	if prefix == "" {
		prefix = "commerce"
	}
	_, resolved := glog.Resolve(prefix, provider, logger)
	resolved = glog.Ensure(resolved)
	if provider != nil {
		if named := provider.GetLogger(prefix); named != nil {
			resolved = glog.Ensure(named)
		}
	}
	if metrics == nil {
		metrics = NopMetricsRecorder{}
	}
	return Observer{logger: resolved, metrics: metrics, prefix: prefix}
}

func (o Observer) Logger() Logger {
	return glog.Ensure(o.logger)
}

func (o Observer) Observe(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	elapsed := time.Since(startedAt).Milliseconds()

	contextFields := cloneFields(fields)
	contextFields["event_type"] = operation
	contextFields["status"] = status
	contextFields["duration_ms"] = elapsed
	if err != nil {
		contextFields["error"] = err.Error()
		if mapped := MapError(err); mapped != nil {
			contextFields["error_text_code"] = mapped.TextCode
		}
		if reason := RefreshReason(err); reason != "" {
			contextFields["refresh_reason"] = string(reason)
		}
	}

	tags := map[string]string{
		"operation": operation,
		"status":    status,
	}
	for _, key := range []string{"refresh_reason", "status_code", "resource"} {
		if value := strings.TrimSpace(fmt.Sprint(contextFields[key])); value != "" && value != "<nil>" {
			tags[key] = value
		}
	}

	o.recordCounter(ctx, o.prefix+"."+operation+".total", 1, tags)
	o.recordHistogram(ctx, o.prefix+"."+operation+".duration_ms", float64(elapsed), tags)

	if err != nil {
		o.log(ctx, "error", operation+" failed", contextFields)
		return
	}
	o.log(ctx, "info", operation+" succeeded", contextFields)
}

func (o Observer) Count(ctx context.Context, name string, tags map[string]string) {
	o.recordCounter(ctx, o.prefix+"."+normalizeOperation(name), 1, tags)
}

func (o Observer) Warn(ctx context.Context, message string, fields map[string]any) {
	o.log(ctx, "warn", message, fields)
}

func (o Observer) Debug(ctx context.Context, message string, fields map[string]any) {
	o.log(ctx, "debug", message, fields)
}

func (o Observer) log(ctx context.Context, level string, message string, fields map[string]any) {
	if o.logger == nil {
		return
	}
	fields = RedactSensitiveMap(fields)
	logger := o.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch level {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	case "debug":
		logger.Debug(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (o Observer) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if o.metrics == nil {
		return
	}
	o.metrics.IncCounter(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func (o Observer) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if o.metrics == nil {
		return
	}
	o.metrics.ObserveHistogram(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	operation = strings.TrimSpace(strings.ToLower(operation))
	operation = strings.ReplaceAll(operation, " ", "_")
	operation = strings.ReplaceAll(operation, "-", "_")
	return operation
}

// NopMetricsRecorder discards every measurement.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func cloneTags(tags map[string]string) map[string]string {
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

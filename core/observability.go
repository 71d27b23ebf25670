package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// operationTagKeys are promoted from log fields to metric tags. Entity ids
// stay in the logs.
var operationTagKeys = []string{"credential_type", "attestation_type", "process_state", "status_purpose"}

type operationOutcome struct {
	name     string
	status   string
	duration time.Duration
	err      error
	fields   map[string]any
}

func newOperationOutcome(operation string, startedAt time.Time, err error, fields map[string]any) operationOutcome {
	name := normalizeOperation(operation)
	if name == "" {
		name = "unknown"
	}
	outcome := operationOutcome{
		name:     name,
		status:   "success",
		duration: time.Since(startedAt),
		err:      err,
		fields:   fields,
	}
	if err != nil {
		outcome.status = "failure"
	}
	return outcome
}

func (o operationOutcome) logFields() map[string]any {
	fields := cloneFields(o.fields)
	fields["event_type"] = o.name
	fields["status"] = o.status
	fields["duration_ms"] = o.duration.Milliseconds()
	if o.err == nil {
		return fields
	}
	fields["error"] = o.err.Error()
	var rich *goerrors.Error
	if goerrors.As(o.err, &rich) && rich.TextCode != "" {
		fields["error_code"] = rich.TextCode
	}
	if IsProgrammingError(o.err) {
		fields["severity"] = "critical"
	}
	return fields
}

func (o operationOutcome) tags() map[string]string {
	tags := map[string]string{
		"operation": o.name,
		"status":    o.status,
	}
	for _, key := range operationTagKeys {
		value, ok := o.fields[key]
		if !ok || value == nil {
			continue
		}
		if text := strings.TrimSpace(fmt.Sprint(value)); text != "" {
			tags[key] = text
		}
	}
	return tags
}

// observeOperation logs and meters one public Service call.
func (s *Service) observeOperation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if s == nil {
		return
	}
	outcome := newOperationOutcome(operation, startedAt, err, fields)
	if s.metricsRecorder != nil {
		tags := outcome.tags()
		s.metricsRecorder.IncCounter(ctx, metricName(outcome.name, "total"), 1, tags)
		s.metricsRecorder.ObserveHistogram(ctx, metricName(outcome.name, "duration_ms"), float64(outcome.duration.Milliseconds()), cloneTags(tags))
	}
	if err != nil {
		emitLog(ctx, s.logger, "error", outcome.name+" failed", outcome.logFields())
		return
	}
	emitLog(ctx, s.logger, "info", outcome.name+" succeeded", outcome.logFields())
}

func emitLog(ctx context.Context, logger Logger, level string, message string, fields map[string]any) {
	if logger == nil {
		return
	}
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func cloneFields(fields map[string]any) map[string]any {
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

// flattenFields renders fields as sorted key/value pairs for loggers without
// structured field support.
func flattenFields(fields map[string]any) []any {
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
	return strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(strings.TrimSpace(operation)))
}

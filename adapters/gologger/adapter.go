// Package gologger resolves the issuer loggers from go-logger and bridges
// them to go-job.
package gologger

import (
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	LoggerName = "issuer"

	ComponentJobs           = "jobs"
	ComponentProcessManager = "process_manager"
	ComponentWatchdog       = "watchdog"
)

// Resolve applies provider > logger > nop precedence under the issuer
// logger name.
func Resolve(provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(LoggerName, provider, logger)
}

// Component returns the logger named issuer.<component>.
func Component(provider glog.LoggerProvider, logger glog.Logger, component string) glog.Logger {
	resolvedProvider, resolved := Resolve(provider, logger)
	component = strings.TrimSpace(component)
	if component == "" || resolvedProvider == nil {
		return resolved
	}
	if named := resolvedProvider.GetLogger(LoggerName + "." + component); named != nil {
		return named
	}
	return resolved
}

// ForJobWorker returns the go-job bridges used by issuer job workers.
func ForJobWorker(provider glog.LoggerProvider, logger glog.Logger) (job.LoggerProvider, job.Logger) {
	resolvedProvider, _ := Resolve(provider, logger)
	if resolvedProvider == nil {
		return nil, nil
	}
	return job.GoLoggerProvider(resolvedProvider), job.GoLogger(Component(resolvedProvider, nil, ComponentJobs))
}

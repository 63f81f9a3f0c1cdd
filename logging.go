package gatekeeper

import (
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
)

// Logger is the structured logging contract used across the package.
type Logger = glog.Logger

// LoggerProvider resolves named, scoped loggers so each component can log
// under its own prefix (e.g. "gatekeeper.quota").
type LoggerProvider interface {
	GetLogger(name string) Logger
}

type staticLoggerProvider struct {
	logger Logger
}

func (p staticLoggerProvider) GetLogger(string) Logger {
	return p.logger
}

// ResolveLogger picks a scoped logger for name. Provider wins when it yields
// a non nil logger, then the fallback, then the package default.
func ResolveLogger(name string, provider LoggerProvider, fallback Logger) (LoggerProvider, Logger) {
	if provider != nil {
		if logger := provider.GetLogger(name); logger != nil {
			return provider, logger
		}
	}

	if fallback != nil {
		return staticLoggerProvider{logger: fallback}, fallback
	}

	base := defaultLogger()
	return glog.ProviderFromLogger(base), base.GetLogger(name)
}

func defaultLogger() *glog.BaseLogger {
	return glog.NewLogger(
		glog.WithName("gatekeeper"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
}

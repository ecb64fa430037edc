package app

import "github.com/manuphatak/talks/pkg/logger"

// ConfigureLogging initialises the global logger with the configured level.
// An empty level falls back to info inside the logger package.
func ConfigureLogging(level string) error {
	return logger.Init(level)
}

// Package logger configures the process-wide logrus logger.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var Logger *logrus.Logger

// Init builds the logger. An empty level means debug in development and
// info otherwise; format is "json" or "text", defaulting to json outside
// development.
func Init(level, format string, isDevelopment bool) *logrus.Logger {
	return initTo(os.Stdout, level, format, isDevelopment)
}

func initTo(out io.Writer, level, format string, isDevelopment bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	if level == "" {
		level = "info"
		if isDevelopment {
			level = "debug"
		}
	}
	if parsed, err := logrus.ParseLevel(strings.ToLower(level)); err == nil {
		log.SetLevel(parsed)
	} else {
		log.SetLevel(logrus.InfoLevel)
		log.WithField("invalid_level", level).Warn("Invalid LOG_LEVEL, using INFO")
	}

	format = strings.ToLower(format)
	if format == "json" || (format == "" && !isDevelopment) {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	Logger = log
	return log
}

// GetLogger returns the global logger, creating an info-level one if needed
func GetLogger() *logrus.Logger {
	if Logger == nil {
		return Init("info", "", false)
	}
	return Logger
}

// WithComponent tags log lines with the emitting component
func WithComponent(name string) *logrus.Entry {
	return GetLogger().WithField("component", name)
}

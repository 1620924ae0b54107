// Package logging sets up the logrus logger shared by the cache and its commands.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

const timestampFormat = "2006-01-02 15:04:05.000"

var (
	mu     sync.Mutex
	logger *logrus.Logger
)

// Config selects level and output format.
type Config struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

// Init (re)configures the shared logger.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(cfg, os.Stdout)
}

func newLogger(cfg Config, out io.Writer) *logrus.Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if cfg.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timestampFormat})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: timestampFormat,
			FullTimestamp:   true,
		})
	}
	l.SetOutput(out)
	return l
}

// InitFromEnv configures the logger from LOG_LEVEL and LOG_FORMAT.
func InitFromEnv() {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	format := os.Getenv("LOG_FORMAT")
	if format == "" {
		format = "text"
	}
	Init(Config{Level: level, Format: format})
}

// GetLogger returns the shared logger, initialising it from the
// environment on first use.
func GetLogger() *logrus.Logger {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l != nil {
		return l
	}
	InitFromEnv()
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// WithComponent returns a logger entry tagged with the component name.
func WithComponent(component string) *logrus.Entry {
	return GetLogger().WithField("component", component)
}

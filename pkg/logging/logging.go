package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/doodlesbykumbi/membership-gateway/pkg/config"
)

// New builds the application logger from configuration.
func New(cfg *config.MembershipConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	Apply(logger, cfg)
	return logger
}

// Apply updates level and format in place. Used on config reload.
func Apply(logger *logrus.Logger, cfg *config.MembershipConfig) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// Discard returns a logger that drops everything, for tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

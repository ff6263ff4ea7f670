package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bcnelson/hub-acl-manager/internal/config"
)

// Setup configures the package-level logger from cfg.
func Setup(cfg config.LogConfig) error {
	return configure(log.Default(), cfg)
}

// New returns a standalone logger writing to w, configured like Setup.
func New(w io.Writer, cfg config.LogConfig) (*log.Logger, error) {
	logger := log.New(w)
	if err := configure(logger, cfg); err != nil {
		return nil, err
	}
	return logger, nil
}

func configure(logger *log.Logger, cfg config.LogConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	logger.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		logger.SetFormatter(log.TextFormatter)
	case "json":
		logger.SetFormatter(log.JSONFormatter)
	case "logfmt":
		logger.SetFormatter(log.LogfmtFormatter)
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}

	logger.SetReportTimestamp(true)
	logger.SetTimeFormat(time.RFC3339)
	return nil
}

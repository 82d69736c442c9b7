package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Mark577-code/tech-blog/internal/config"
)

// Setup configures the standard logrus logger from config. verbose forces
// debug level and caller reporting.
func Setup(cfg config.Logging, verbose bool) error {
	level := cfg.Level
	if verbose {
		level = "debug"
	}
	if level == "" {
		level = "info"
	}

	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("parsing log level %q: %w", level, err)
	}
	log.SetLevel(lvl)
	log.SetReportCaller(verbose)

	if cfg.JSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	log.SetOutput(Writer(cfg))
	return nil
}

// Writer returns stderr, tee'd into a rotating file when one is configured.
func Writer(cfg config.Logging) io.Writer {
	if cfg.File == "" {
		return os.Stderr
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "log directory unavailable, logging to stderr only: %v\n", err)
		return os.Stderr
	}
	return io.MultiWriter(os.Stderr, &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   true,
	})
}

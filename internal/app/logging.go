package app

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jxsl13/TeeworldsDiscordBot/internal/config"
)

// configureLogging applies the logging section of cfg to the package logger.
// The returned closer releases the log file, if one was opened.
func configureLogging(cfg config.Config) (io.Closer, error) {
	level := log.InfoLevel
	if cfg.Logging.Level != "" {
		parsed, err := log.ParseLevel(cfg.Logging.Level)
		if err != nil {
			log.Warn("Unknown log level, using info", "level", cfg.Logging.Level)
		} else {
			level = parsed
		}
	}
	log.SetLevel(level)

	if cfg.Logging.File == "" {
		log.SetOutput(os.Stderr)
		return io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0o755); err != nil {
		return nil, err
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.Logging.File,
		MaxSize:    cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAgeDays,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	log.Debug("Logging to file", "path", cfg.Logging.File, "level", level)
	return rotator, nil
}

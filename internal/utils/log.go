// Package utils
package utils

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig controls the process-wide logger.
type LogConfig struct {
	Level      string `yaml:"level"`
	Pretty     bool   `yaml:"pretty"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

var once sync.Once

// InitLogger sets up the global logger. Only the first call has an effect.
func InitLogger(cfg LogConfig) {
	once.Do(func() {
		level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil || cfg.Level == "" {
			level = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(level)
		zerolog.TimeFieldFormat = time.RFC3339

		var out io.Writer = os.Stderr
		if cfg.Pretty {
			out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		}
		if cfg.File != "" {
			// File output is always JSON; the console side keeps its format.
			out = zerolog.MultiLevelWriter(out, &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
			})
		}
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	})
}

// GetLogger returns a logger tagged with the component name
func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

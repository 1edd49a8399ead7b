package logger

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/xauti/content_go_server/config"
)

// Init configures the global logrus logger.
func Init(cfg config.LogConfig, mode string) {
	log.SetOutput(os.Stdout)

	level, err := log.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = log.InfoLevel
		if mode == "debug" {
			level = log.DebugLevel
		}
	}
	log.SetLevel(level)

	format := cfg.Format
	if format == "" && mode == "release" {
		format = "json"
	}

	if format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
		return
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

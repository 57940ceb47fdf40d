package main

import (
	"os"

	"github.com/phuslu/log"

	"realty-engine/internal/config"
)

func setupLogger(cfg config.Config) {
	logger := log.Logger{
		Level:      log.ParseLevel(cfg.Log.Level),
		TimeFormat: "15:04:05",
		Writer:     &log.ConsoleWriter{ColorOutput: true, EndWithMessage: true},
	}
	if cfg.Log.Format == "json" {
		logger.TimeFormat = ""
		logger.Writer = &log.IOWriter{Writer: os.Stderr}
	}
	log.DefaultLogger = logger
}

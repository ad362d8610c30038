package main

import (
	"log/slog"
	"os"

	"github.com/signadot/tony-format/contentstore/debug"
)

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if debug.Ledger() || debug.Storage() {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			if a.Key == slog.LevelKey {
				if a.Value.String() == "INFO" {
					return slog.Attr{}
				}
			}
			return a
		},
	}))
}

package main

import (
	"io"
	"log/slog"
	"time"
)

var testTime = time.Date(2026, time.January, 2, 15, 4, 5, 0, time.UTC)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

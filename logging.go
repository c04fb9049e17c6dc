package resilio

import (
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/resilio/config"
)

// InitLogging installs the default slog logger per cfg. Level "debug" lowers
// the threshold; any other value logs at info and above.
func InitLogging(cfg config.LoggingConfig) {
	slogLevel := slog.LevelInfo
	if cfg.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
	slog.Debug("Logger initialized", "level", slogLevel.String())
}

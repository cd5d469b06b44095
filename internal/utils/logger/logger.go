package logger

import (
	"os"

	"golang.org/x/exp/slog"

	"tradekeeper/internal/app/server/config"
)

// New создает логгер в зависимости от окружения:
// local — текстовый вывод с debug-уровнем, dev — JSON с debug,
// prod — JSON с info.
func New(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case config.EnvDev:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	case config.EnvProd:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	default:
		// local и все неизвестные окружения
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

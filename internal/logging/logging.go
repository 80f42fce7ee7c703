package logging

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New builds the logger of a run. Format is either "console" or "json".
func New(output io.Writer, level string, format string) (zerolog.Logger, error) {
	parsedLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level: %w", err)
	}

	var logger zerolog.Logger
	switch format {
	case "json":
		logger = zerolog.New(output).With().Timestamp().Logger()
	case "console", "":
		logger = zerolog.New(zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	default:
		return zerolog.Logger{}, fmt.Errorf("invalid log format: %s", format)
	}

	return logger.Level(parsedLevel), nil
}

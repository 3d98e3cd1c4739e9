// Package logging sets up the zerolog logger the server and its components
// share: console output, an optional plain log file, and an optional GELF
// (Graylog) writer, all behind one multi-level writer.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Options controls where log output goes.
type Options struct {
	// Level is the minimum level, one of trace/debug/info/warn/error.
	Level string
	// File, if non-nil, receives a plain (non-colored) copy of the output.
	File io.Writer
	// GraylogAddress, if non-empty, adds a GELF UDP writer.
	GraylogAddress string
}

// OptionsFromConfig builds Options from the loaded viper configuration.
func OptionsFromConfig() Options {
	opts := Options{Level: viper.GetString("logLevel")}
	if viper.GetBool("graylog.enabled") {
		opts.GraylogAddress = viper.GetString("graylog.address")
	}
	return opts
}

// LogFilePath builds a session log file path inside logsDir.
func LogFilePath(logsDir string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("labserver.%s.log", sessionStart.Format("20060102_150405")),
	)
}

// New builds the root logger. Log writers that cannot be reached are
// skipped with a warning rather than failing startup.
func New(opts Options) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(opts.Level))
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	writers := []io.Writer{
		zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		},
	}

	if opts.File != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        opts.File,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		})
	}

	var gelfErr error
	if opts.GraylogAddress != "" {
		gw, err := gelf.NewWriter(opts.GraylogAddress)
		if err != nil {
			gelfErr = err
		} else {
			writers = append(writers, gw)
		}
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().Timestamp().Logger()

	if gelfErr != nil {
		logger.Warn().Err(gelfErr).
			Str("address", opts.GraylogAddress).
			Msg("Failed to connect GELF writer, continuing without it")
	}

	return logger
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

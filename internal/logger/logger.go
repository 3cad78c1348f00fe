package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu sync.RWMutex

	isDevelopment = false // if running in debug mode

	logFile io.Writer = nil

	// AdHocLogger is a general logger for when you do not want to create a
	// new one.
	AdHocLogger zerolog.Logger

	base zerolog.Logger
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	AdHocLogger = zerolog.New(os.Stderr).With().Timestamp().Str("service", "ad-hoc-logger").Caller().Logger()
	base = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// Configure rebuilds the base logger every GetLogger call derives from.
// An unknown level falls back to info.
func Configure(level string, development bool, file io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	isDevelopment = development
	logFile = file

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = os.Stderr
	if isDevelopment {
		// Set up zerolog for development mode (human-readable logs)
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339,
			FormatLevel: func(i any) string {
				return strings.ToUpper(fmt.Sprintf("[%5s]", i))
			},
			FormatMessage: func(i any) string {
				return fmt.Sprintf("| %s |", i)
			},
			FormatCaller: func(i any) string {
				return filepath.Base(fmt.Sprintf("%s", i))
			},
			PartsExclude: []string{
				zerolog.TimestampFieldName,
			}}
	}
	if logFile != nil {
		// Use multi-writer for file and console output
		out = zerolog.MultiLevelWriter(out, logFile)
	}

	ctx := zerolog.New(out).Level(lvl).With().Timestamp()
	if isDevelopment {
		ctx = ctx.Caller()
	}
	base = ctx.Logger()
}

// GetLogger returns a logger tagged with the service (component) name.
func GetLogger(serviceName string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base.With().Str("service", serviceName).Logger()
}

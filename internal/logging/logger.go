// Package logging holds the process-wide zap logger. Logs go to stderr so
// that reports written to stdout stay machine readable.
package logging

import (
	"fmt"
	"log"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Logger is the shared sugared logger.
	Logger *zap.SugaredLogger
	// AtomicLevel controls the level of Logger at runtime.
	AtomicLevel = zap.NewAtomicLevelAt(zap.InfoLevel)

	mu sync.Mutex
)

func init() {
	logLevel, ok := os.LookupEnv("LOG_LEVEL")
	if !ok {
		logLevel = "INFO"
	}
	if err := SetLevel(logLevel); err != nil {
		log.Printf("failed to parse log level, fallback to INFO: %v", err)
	}

	logger, err := newConfig().Build()
	if err != nil {
		panic(fmt.Errorf("failed to initialize logger: %w", err))
	}
	Logger = logger.Sugar()
}

func newConfig() zap.Config {
	return zap.Config{
		Level:       AtomicLevel,
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:     "M",
			LevelKey:       "L",
			TimeKey:        "T",
			NameKey:        "N",
			CallerKey:      zapcore.OmitKey,
			FunctionKey:    zapcore.OmitKey,
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
}

// SetLevel parses a level name such as "debug" or "WARN" and applies it.
func SetLevel(level string) error {
	parsed, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}
	AtomicLevel.SetLevel(parsed.Level())
	return nil
}

// SetVerbose switches between debug and info output.
func SetVerbose(verbose bool) {
	if verbose {
		AtomicLevel.SetLevel(zap.DebugLevel)
		return
	}
	AtomicLevel.SetLevel(zap.InfoLevel)
}

// Replace swaps the shared logger and returns a function restoring the
// previous one. Tests use it with zaptest/observer.
func Replace(logger *zap.SugaredLogger) func() {
	mu.Lock()
	defer mu.Unlock()
	previous := Logger
	Logger = logger
	return func() {
		mu.Lock()
		defer mu.Unlock()
		Logger = previous
	}
}

// Sync flushes buffered log entries.
func Sync() {
	_ = Logger.Sync()
}

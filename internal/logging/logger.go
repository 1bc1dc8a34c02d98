package logging

import (
	"fmt"
	"net"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent (no zap output).
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "POSTOFFICE_LOG_LEVEL"

// Structured field keys shared by every package that logs connection events.
const (
	KeyServer     = "server"
	KeyConnID     = "conn_id"
	KeyRemoteAddr = "remote_addr"
	KeyPort       = "port"
	KeyLine       = "line"
	KeyText       = "text"
)

// New creates a logger with the specified level.
// If level is empty, it checks the POSTOFFICE_LOG_LEVEL environment variable.
// If neither is set, the returned logger discards everything.
func New(level string) (*zap.Logger, error) {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}

	if level == "" {
		return zap.NewNop(), nil
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(ParseLevel(level)),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger, nil
}

// ParseLevel maps a level name to a zap level.
// Unknown names fall back to info, matching an explicitly requested but
// misspelled level.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// OrNop returns l, or a discarding logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// Sync flushes any buffered log entries. Errors from syncing a terminal
// are expected on some platforms and ignored.
func Sync(l *zap.Logger) {
	if l != nil {
		_ = l.Sync()
	}
}

// ConnID tags a log entry with a connection identity.
func ConnID(id uint64) zap.Field {
	return zap.Uint64(KeyConnID, id)
}

// Port tags a log entry with the server's bound port.
func Port(port int) zap.Field {
	return zap.Int(KeyPort, port)
}

// RemoteAddr tags a log entry with a peer address.
func RemoteAddr(addr net.Addr) zap.Field {
	if addr == nil {
		return zap.String(KeyRemoteAddr, "unknown")
	}
	return zap.String(KeyRemoteAddr, addr.String())
}

// Line tags a log entry with raw protocol input.
func Line(line string) zap.Field {
	return zap.String(KeyLine, line)
}

// Text tags a log entry with raw protocol output.
func Text(text string) zap.Field {
	return zap.String(KeyText, text)
}

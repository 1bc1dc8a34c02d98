// Package logging provides structured logging for postoffice servers.
//
// This package builds zap loggers with the console layout used throughout the
// project and provides shared field constructors so that every log line about
// a connection carries the same keys.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Raw protocol traffic (every line read, every response written)
//   - Info: Normal operations (listening, connection accepted, connection closed)
//   - Warn: Non-fatal issues
//   - Error: Per-connection failures, always followed by a forced close
//
// # Structured Logging
//
// Connection events use the shared field helpers:
//
//	logger.Info("Connection accepted",
//	    logging.ConnID(c.ID()),
//	    logging.RemoteAddr(c.RemoteAddr()),
//	)
//
// # Configuration
//
// Create the logger at startup and hand it to the server configuration:
//
//	logger, err := logging.New("debug")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync(logger)
//
// An empty level consults POSTOFFICE_LOG_LEVEL; when that is also empty the
// logger is a no-op, so library users get silence unless they opt in.
//
// # Thread Safety
//
// zap loggers are safe for concurrent use; many connection goroutines share
// one logger.
package logging

// Package logger provides a simple, thread-safe logging facility.
//
// The logger supports four levels: Debug, Info, Warn, and Error.
// Each log entry includes a timestamp, level, optional component tag, and message.
//
// # Basic Usage
//
// Using the default logger:
//
//	logger.Infof("leopard started")
//	log := logger.Named("psort")
//	log.Debugf("pool started with %d workers", n)
//
// Creating a custom logger:
//
//	l := logger.New(os.Stderr, logger.LevelDebug)
//	l.Named("bench").Debugf("run %d done", i)
//
// # Log Levels
//
// Messages below the configured level are filtered:
//   - LevelDebug: all messages
//   - LevelInfo: Info, Warn, Error
//   - LevelWarn: Warn, Error
//   - LevelError: Error only
//
// ParseLevel converts configuration strings ("debug", "info", "warn", "error").
//
// # Thread Safety
//
// All logging operations are protected by a mutex and safe for concurrent use.
// Loggers derived with Named share the writer, the level and the mutex.
package logger

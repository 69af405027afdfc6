// Package logger provides structured logging for channelctl and the
// channel managers.
//
// It wraps log/slog:
//
//   - logger.go: handler construction, level parsing, the process-wide logger
//   - context.go: context-carried loggers and operation IDs
//   - redact.go: credential and state-blob redaction
//
// Every handler runs attributes through the redactor, so passwords and
// exported state never reach the output even when a caller logs them by
// mistake.
package logger

package logging

import (
	"os"

	"go.uber.org/zap/zapcore"
)

// Appender is an output for log entries. This is a subset of the `zapcore.Core` interface, so
// zap cores (such as the test observer) can be added directly.
type Appender interface {
	// Write submits a structured log entry to the appender for logging.
	Write(zapcore.Entry, []zapcore.Field) error
	// Sync is for signaling that any buffered logs to `Write` should be flushed. E.g: at shutdown.
	Sync() error
}

// ConsoleAppender will create human readable lines from log events and write them to the desired
// output sync. E.g: stdout or a file.
type ConsoleAppender struct {
	zapcore.Core
}

// NewStdoutAppender creates a new appender that writes debug and above to stdout; the owning
// logger decides which levels reach it.
func NewStdoutAppender() ConsoleAppender {
	return NewWriterAppender(os.Stdout)
}

// NewWriterAppender creates a new appender that writes to the input writer.
func NewWriterAppender(writer zapcore.WriteSyncer) ConsoleAppender {
	encoder := zapcore.NewConsoleEncoder(NewZapLoggerConfig())
	return ConsoleAppender{zapcore.NewCore(encoder, writer, zapcore.DebugLevel)}
}

// Write outputs the entry through the wrapped core.
func (appender ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	return appender.Core.Write(entry, fields)
}

// Sync flushes the wrapped core.
func (appender ConsoleAppender) Sync() error {
	return appender.Core.Sync()
}

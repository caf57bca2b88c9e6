package logging

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// stagedWriter is a thread-safe writer that can hold log output back in a
// buffer until a live target is attached, and can additionally tee all
// output to a file. Holding output back matters when a TUI owns the
// terminal: anything written to stdout before the TUI log pane exists would
// be lost or would corrupt the screen.
type stagedWriter struct {
	mu      sync.Mutex
	staged  *bytes.Buffer
	target  io.Writer
	file    *os.File
	staging bool
}

func (w *stagedWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error

	if w.staging {
		// bytes.Buffer.Write never fails.
		w.staged.Write(p)
	} else if w.target != nil {
		if _, err := w.target.Write(p); err != nil {
			firstErr = err
		}
	}

	if w.file != nil {
		if _, err := w.file.Write(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return len(p), firstErr
}

var (
	writer *stagedWriter
	level  slog.LevelVar
)

// Init sets up the process-wide slog default. When buffered is true, output
// is staged until SetOutput attaches a live target. When logFilePath is
// non-empty, all output is additionally appended to that file.
func Init(levelStr, formatStr string, logFilePath string, buffered bool) error {
	writer = &stagedWriter{
		staged:  &bytes.Buffer{},
		staging: buffered,
	}

	if logFilePath != "" {
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return err
		}
		writer.file = file
	}

	level.Set(parseLevel(levelStr))

	opts := &slog.HandlerOptions{
		Level: &level,
	}

	var handler slog.Handler
	if strings.ToLower(formatStr) == "json" {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// SetLevel changes the log level of the default handler at runtime.
func SetLevel(levelStr string) {
	level.Set(parseLevel(levelStr))
}

func parseLevel(levelStr string) slog.Level {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetOutput flushes any staged output to the new target and switches to
// live logging.
func SetOutput(newTarget io.Writer) error {
	writer.mu.Lock()
	defer writer.mu.Unlock()

	if writer.staged.Len() > 0 {
		if _, err := newTarget.Write(writer.staged.Bytes()); err != nil {
			return err
		}
		writer.staged.Reset()
	}

	writer.target = newTarget
	writer.staging = false
	return nil
}

// BufferOutput detaches the live target and resumes staging.
func BufferOutput() {
	writer.mu.Lock()
	defer writer.mu.Unlock()

	writer.target = nil
	writer.staging = true
}

// Close flushes anything still staged and closes the log file if one was
// opened.
func Close() error {
	writer.mu.Lock()
	defer writer.mu.Unlock()

	var firstErr error

	if writer.file != nil {
		if writer.staged.Len() > 0 {
			if _, err := writer.file.Write(writer.staged.Bytes()); err != nil {
				firstErr = err
			}
		}
		if err := writer.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	} else if writer.target == nil {
		// No file and no live target: dump staged output to stderr rather
		// than dropping it.
		if writer.staged.Len() > 0 {
			if _, err := os.Stderr.Write(writer.staged.Bytes()); err != nil {
				firstErr = err
			}
		}
	}

	writer.staged.Reset()
	return firstErr
}

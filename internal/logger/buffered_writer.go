package logger

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

const (
	// DefaultBufferSize batches small JSON records into fewer writes
	DefaultBufferSize = 32 * 1024

	// DefaultFlushInterval bounds how long a record can sit in the buffer
	DefaultFlushInterval = 5 * time.Second

	// LogFilePermissions restricts log files to the owner
	LogFilePermissions = 0o600
)

// BufferedFileWriter is a goroutine-safe buffered appender for log files.
// A background loop flushes the buffer every flush interval until Close.
type BufferedFileWriter struct {
	mu       sync.Mutex
	file     *os.File
	writer   *bufio.Writer
	filePath string
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	closed   bool
}

// NewBufferedFileWriter opens filePath in append mode
func NewBufferedFileWriter(filePath string, flushInterval time.Duration) (*BufferedFileWriter, error) {
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, LogFilePermissions) //nolint:gosec // path from config
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", filePath, err)
	}

	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}

	w := &BufferedFileWriter{
		file:     file,
		writer:   bufio.NewWriterSize(file, DefaultBufferSize),
		filePath: filePath,
		interval: flushInterval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.flushLoop()

	return w, nil
}

func (w *BufferedFileWriter) flushLoop() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = w.Flush()
		case <-w.stop:
			return
		}
	}
}

// Write implements io.Writer
func (w *BufferedFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, errors.New("write to closed log writer")
	}
	return w.writer.Write(p)
}

// Flush pushes buffered bytes to the OS
func (w *BufferedFileWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	return w.writer.Flush()
}

// Close stops the flush loop, flushes, syncs and closes the file
func (w *BufferedFileWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.stop)
	<-w.done

	w.mu.Lock()
	defer w.mu.Unlock()

	var errs []error
	if err := w.writer.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flush %s: %w", w.filePath, err))
	}
	if err := w.file.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("sync %s: %w", w.filePath, err))
	}
	if err := w.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close %s: %w", w.filePath, err))
	}
	return errors.Join(errs...)
}

// FilePath returns the path of the underlying file
func (w *BufferedFileWriter) FilePath() string {
	return w.filePath
}

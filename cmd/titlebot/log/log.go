package log

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	mu      sync.Mutex
	writers []*fileWriter
)

type fileWriter struct {
	file *os.File
	buf  *bufio.Writer
}

func (w *fileWriter) Write(p []byte) (int, error) {
	mu.Lock()
	defer mu.Unlock()
	n, err := w.buf.Write(p)
	if err != nil {
		return n, err
	}
	return n, w.buf.Flush()
}

// NewLogger builds a text logger writing to stdout and, when dir is set, to a log
// file per day. A non empty kingdom gets its own file and a kingdom attribute.
func NewLogger(debug bool, dir, kingdom string) (*slog.Logger, error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stdout
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}

		name := fmt.Sprintf("titlebot-%s.log", time.Now().Format("2006-01-02"))
		if kingdom != "" {
			name = fmt.Sprintf("kingdom-%s-%s.log", kingdom, time.Now().Format("2006-01-02"))
		}
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}

		w := &fileWriter{file: f, buf: bufio.NewWriter(f)}
		mu.Lock()
		writers = append(writers, w)
		mu.Unlock()
		out = io.MultiWriter(os.Stdout, w)
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	if kingdom != "" {
		logger = logger.With(slog.String("kingdom", kingdom))
	}
	return logger, nil
}

func FlushLog() {
	mu.Lock()
	defer mu.Unlock()
	for _, w := range writers {
		w.buf.Flush()
		w.file.Sync()
	}
}

func FlushAndClose() {
	mu.Lock()
	defer mu.Unlock()
	for _, w := range writers {
		w.buf.Flush()
		w.file.Close()
	}
	writers = nil
}

// Package audit emits flat, append-only audit records for every approval
// check, policy decision, and gated operation result. The external audit
// store consumes these lines; this package only formats and writes them.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Patchlock-Labs/patchlock/core/pkg/contracts"
)

// Logger records flat audit records.
type Logger interface {
	Record(ctx context.Context, record contracts.AuditRecord) error
}

// logger writes one JSON object per line to a configurable writer.
type logger struct {
	mu     sync.Mutex
	writer io.Writer
	clock  func() time.Time
}

// NewLogger creates a Logger writing to os.Stdout.
func NewLogger() Logger {
	return NewLoggerWithWriter(os.Stdout)
}

// NewLoggerWithWriter creates a Logger writing to the given writer.
// This allows injection for testing and custom sinks.
func NewLoggerWithWriter(w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	return &logger{writer: w, clock: time.Now}
}

func (l *logger) Record(ctx context.Context, record contracts.AuditRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = l.clock().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	line, err := json.Marshal(record)
	if err != nil {
		return err
	}
	// Prefix for easy filtering in shared streams.
	_, err = l.writer.Write(append([]byte("AUDIT: "), append(line, '\n')...))
	return err
}

// Nop returns a Logger that discards everything. Useful for tests and for
// callers that wire their own sink.
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Record(context.Context, contracts.AuditRecord) error { return nil }

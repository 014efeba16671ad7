package studio_test

import (
	"context"
	"fmt"
	"sync"

	studio "github.com/goliatone/go-auth-studio"
)

type logCall struct {
	level   string
	message string
}

// captureLogger records every call so tests can assert on what was logged.
type captureLogger struct {
	mu    sync.Mutex
	calls []logCall
}

func (l *captureLogger) record(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, logCall{level: level, message: fmt.Sprintf(format, args...)})
}

func (l *captureLogger) Debug(format string, args ...any) { l.record("debug", format, args...) }
func (l *captureLogger) Info(format string, args ...any)  { l.record("info", format, args...) }
func (l *captureLogger) Warn(format string, args ...any)  { l.record("warn", format, args...) }
func (l *captureLogger) Error(format string, args ...any) { l.record("error", format, args...) }

func (l *captureLogger) messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, c := range l.calls {
		if c.level == level {
			out = append(out, c.message)
		}
	}
	return out
}

// memoryProvider is a single-ingest provider. failures > 0 makes the next N
// Ingest calls fail.
type memoryProvider struct {
	mu       sync.Mutex
	events   []*studio.AuthEvent
	failures int
	shutdown bool
}

func (m *memoryProvider) Ingest(_ context.Context, event *studio.AuthEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return fmt.Errorf("ingest refused")
	}
	m.events = append(m.events, event)
	return nil
}

func (m *memoryProvider) Shutdown(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdown = true
	return nil
}

func (m *memoryProvider) stored() []*studio.AuthEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*studio.AuthEvent, len(m.events))
	copy(out, m.events)
	return out
}

func (m *memoryProvider) wasShutdown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown
}

// batchingProvider adds IngestBatch and records each batch it receives.
type batchingProvider struct {
	memoryProvider
	batches       [][]*studio.AuthEvent
	batchFailures int
}

func (b *batchingProvider) IngestBatch(_ context.Context, events []*studio.AuthEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.batchFailures > 0 {
		b.batchFailures--
		return fmt.Errorf("batch refused")
	}
	batch := make([]*studio.AuthEvent, len(events))
	copy(batch, events)
	b.batches = append(b.batches, batch)
	b.events = append(b.events, events...)
	return nil
}

func (b *batchingProvider) storedBatches() [][]*studio.AuthEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]*studio.AuthEvent, len(b.batches))
	copy(out, b.batches)
	return out
}

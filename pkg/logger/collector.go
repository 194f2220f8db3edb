package logger

import (
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

const defaultBufferSize = 500

// Entry is one collected log line.
type Entry struct {
	Time    time.Time              `json:"time"`
	Level   string                 `json:"level"`
	Logger  string                 `json:"logger,omitempty"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

type ring struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// Collector is a zapcore.Core that retains the last N entries in memory.
type Collector struct {
	zapcore.LevelEnabler
	buf    *ring
	fields []zapcore.Field
}

// NewCollector returns a collector keeping at most size entries.
func NewCollector(size int, enabler zapcore.LevelEnabler) *Collector {
	if size <= 0 {
		size = defaultBufferSize
	}
	if enabler == nil {
		enabler = zapcore.DebugLevel
	}
	return &Collector{
		LevelEnabler: enabler,
		buf:          &ring{entries: make([]Entry, size)},
	}
}

func (c *Collector) With(fields []zapcore.Field) zapcore.Core {
	clone := &Collector{LevelEnabler: c.LevelEnabler, buf: c.buf}
	clone.fields = append(append(clone.fields, c.fields...), fields...)
	return clone
}

func (c *Collector) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *Collector) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	entry := Entry{
		Time:    ent.Time,
		Level:   ent.Level.String(),
		Logger:  ent.LoggerName,
		Message: ent.Message,
	}
	if len(enc.Fields) > 0 {
		entry.Fields = enc.Fields
	}

	c.buf.mu.Lock()
	c.buf.entries[c.buf.next] = entry
	c.buf.next = (c.buf.next + 1) % len(c.buf.entries)
	if c.buf.next == 0 {
		c.buf.full = true
	}
	c.buf.mu.Unlock()
	return nil
}

func (c *Collector) Sync() error { return nil }

// Entries returns the collected entries, oldest first.
func (c *Collector) Entries() []Entry {
	if c == nil {
		return nil
	}
	c.buf.mu.Lock()
	defer c.buf.mu.Unlock()

	if !c.buf.full {
		out := make([]Entry, c.buf.next)
		copy(out, c.buf.entries[:c.buf.next])
		return out
	}
	out := make([]Entry, 0, len(c.buf.entries))
	out = append(out, c.buf.entries[c.buf.next:]...)
	out = append(out, c.buf.entries[:c.buf.next]...)
	return out
}

// Clear drops every collected entry.
func (c *Collector) Clear() {
	if c == nil {
		return
	}
	c.buf.mu.Lock()
	defer c.buf.mu.Unlock()
	c.buf.next = 0
	c.buf.full = false
}

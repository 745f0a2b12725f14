package logging

import (
	"sync"
	"time"
)

// DefaultMaxEntries caps the number of entries kept per key.
const DefaultMaxEntries = 256

// LogEntry is a captured log record.
type LogEntry struct {
	Time       time.Time      `json:"time"`
	Level      string         `json:"level"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// LogCollector stores captured log entries keyed by activity ID. Once a key holds
// maxEntries entries the oldest are discarded.
type LogCollector struct {
	mu         sync.RWMutex
	logs       map[string][]LogEntry
	maxEntries int
}

// NewLogCollector creates a LogCollector holding at most maxEntries per key.
// A non-positive maxEntries selects DefaultMaxEntries.
func NewLogCollector(maxEntries int) *LogCollector {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &LogCollector{
		logs:       make(map[string][]LogEntry),
		maxEntries: maxEntries,
	}
}

// Add appends entry under key.
func (c *LogCollector) Add(key string, entry LogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := append(c.logs[key], entry)
	if over := len(entries) - c.maxEntries; over > 0 {
		entries = append(entries[:0:0], entries[over:]...)
	}
	c.logs[key] = entries
}

// Get returns a copy of the entries for key, or nil if there are none.
func (c *LogCollector) Get(key string) []LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries, ok := c.logs[key]
	if !ok {
		return nil
	}
	result := make([]LogEntry, len(entries))
	copy(result, entries)
	return result
}

// Keys returns the number of keys with captured entries.
func (c *LogCollector) Keys() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.logs)
}

package logging

import (
	"fmt"
	"sync"
)

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type Entry struct {
	Level       Level
	Category    Category
	SubCategory SubCategory
	Message     string
	Extra       map[ExtraKey]any
}

// MemoryLogger keeps every entry in memory. Used by tests that assert on
// what was logged.
type MemoryLogger struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

func (l *MemoryLogger) Init() {}

func (l *MemoryLogger) add(level Level, cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	cp := make(map[ExtraKey]any, len(extra))
	for k, v := range extra {
		cp[k] = v
	}

	l.mu.Lock()
	l.entries = append(l.entries, Entry{Level: level, Category: cat, SubCategory: sub, Message: msg, Extra: cp})
	l.mu.Unlock()
}

func (l *MemoryLogger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Find returns the entries logged at level under sub.
func (l *MemoryLogger) Find(level Level, sub SubCategory) []Entry {
	var out []Entry
	for _, e := range l.Entries() {
		if e.Level == level && e.SubCategory == sub {
			out = append(out, e)
		}
	}
	return out
}

func (l *MemoryLogger) Debug(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.add(LevelDebug, cat, sub, msg, extra)
}

func (l *MemoryLogger) Debugf(template string, args ...any) {
	l.add(LevelDebug, General, "", fmt.Sprintf(template, args...), nil)
}

func (l *MemoryLogger) Info(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.add(LevelInfo, cat, sub, msg, extra)
}

func (l *MemoryLogger) Infof(template string, args ...any) {
	l.add(LevelInfo, General, "", fmt.Sprintf(template, args...), nil)
}

func (l *MemoryLogger) Warn(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.add(LevelWarn, cat, sub, msg, extra)
}

func (l *MemoryLogger) Warnf(template string, args ...any) {
	l.add(LevelWarn, General, "", fmt.Sprintf(template, args...), nil)
}

func (l *MemoryLogger) Error(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.add(LevelError, cat, sub, msg, extra)
}

func (l *MemoryLogger) Errorf(template string, args ...any) {
	l.add(LevelError, General, "", fmt.Sprintf(template, args...), nil)
}

func (l *MemoryLogger) Fatal(_ Category, _ SubCategory, msg string, _ map[ExtraKey]any) {
	panic(msg)
}

func (l *MemoryLogger) Fatalf(template string, args ...any) {
	panic(fmt.Sprintf(template, args...))
}

package logging

import (
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger that keeps every entry in memory, at all levels,
// for assertions in tests of packages that log.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger returns a recording logger.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(zapcore.DebugLevel)
	return &TestLogger{
		Logger:   &Logger{zap: zap.New(core)},
		observed: observed,
	}
}

// Messages returns the messages logged at level, in order.
func (t *TestLogger) Messages(level zapcore.Level) []string {
	var out []string
	for _, e := range t.observed.FilterLevelExact(level).All() {
		out = append(out, e.Message)
	}
	return out
}

func (t *TestLogger) find(level zapcore.Level, msgContains string) bool {
	for _, msg := range t.Messages(level) {
		if strings.Contains(msg, msgContains) {
			return true
		}
	}
	return false
}

// AssertLogged fails tb unless an entry at level contains msgContains.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	if !t.find(level, msgContains) {
		tb.Errorf("no %v log containing %q; got %q", level, msgContains, t.Messages(level))
	}
}

// AssertNotLogged fails tb if an entry at level contains msgContains.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	if t.find(level, msgContains) {
		tb.Errorf("unexpected %v log containing %q", level, msgContains)
	}
}

// AssertField fails tb unless an entry with message msg carries
// key=expected, including fields added from context such as project.id
// or executor.type.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, expected interface{}) {
	tb.Helper()
	for _, e := range t.observed.FilterMessage(msg).All() {
		if v, ok := e.ContextMap()[key]; ok && reflect.DeepEqual(v, expected) {
			return
		}
	}
	tb.Errorf("no %q entry with %s=%v", msg, key, expected)
}

package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// loggerCore is the registry-owned state of one named logger: the swappable
// zerolog instance, its file sink and the compiled templates needed to grow
// the writer chain later.
type loggerCore struct {
	name string
	svc  *Service

	logger atomic.Pointer[zerolog.Logger]
	level  zerolog.Level
	sink   *fileSink
	cfg    LoggerConfig

	writers    []io.Writer
	streamTpl  *recordTemplate
	timeLayout string

	mirrored atomic.Bool
}

// install builds a fresh zerolog logger over the given writer chain and
// swaps it in.
func (c *loggerCore) install(writers []io.Writer) {
	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(c.level).
		With().Str(fieldLogger, c.name).
		Logger()
	c.logger.Store(&zl)
}

// Logger is a handle on a named logger. Handles are cheap: subloggers share
// the core and differ only in their message prefix. The zero value and nil
// are inert.
type Logger struct {
	core   *loggerCore
	prefix string
}

// Name reports the registry name of the logger.
func (l *Logger) Name() string {
	if l == nil || l.core == nil {
		return emptyString
	}
	return l.core.name
}

// Sub derives a sublogger that injects "(name) " before each message body.
// It shares the parent's sinks and level. The worker prefix, when set,
// composes outside the sublogger prefix.
func (l *Logger) Sub(name string) *Logger {
	if l == nil || l.core == nil {
		return l
	}
	name = strings.TrimSpace(name)
	if name == emptyString {
		return l
	}
	return &Logger{core: l.core, prefix: l.prefix + "(" + name + ") "}
}

// MirrorToStdout adds a stdout mirror to the logger, rendered with its
// stream format. The first call wins, later calls are no-ops.
func (l *Logger) MirrorToStdout() {
	if l == nil || l.core == nil || l.core.svc == nil {
		return
	}
	c := l.core
	if !c.mirrored.CompareAndSwap(false, true) {
		return
	}

	s := c.svc
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isInitialized.Load() {
		return
	}

	writers := make([]io.Writer, 0, len(c.writers)+1)
	writers = append(writers, c.writers...)
	writers = append(writers, newFormatWriter(os.Stdout, c.streamTpl, c.timeLayout))
	c.writers = writers
	c.install(writers)
}

// eventAt creates an emission at the given level. The operation is counted
// in-flight before the state check so a concurrent Close always waits for
// it. The returned event is inert when the facility is closed or the level
// is disabled.
func (l *Logger) eventAt(level zerolog.Level, skip int) *logEvent {
	if l == nil || l.core == nil || l.core.svc == nil {
		return noopEvent()
	}
	c := l.core
	s := c.svc
	if !s.isInitialized.Load() {
		return noopEvent()
	}

	s.activeOps.Add(1)
	s.wg.Add(1)

	s.mu.RLock()
	if !s.isInitialized.Load() {
		s.mu.RUnlock()
		s.activeOps.Add(-1)
		s.wg.Done()
		return noopEvent()
	}

	zl := c.logger.Load()
	if zl == nil || zl.GetLevel() > level {
		s.mu.RUnlock()
		s.activeOps.Add(-1)
		s.wg.Done()
		return noopEvent()
	}

	var event *zerolog.Event
	switch level {
	case zerolog.TraceLevel:
		event = zl.Trace()
	case zerolog.DebugLevel:
		event = zl.Debug()
	case zerolog.InfoLevel:
		event = zl.Info()
	case zerolog.WarnLevel:
		event = zl.Warn()
	case zerolog.ErrorLevel:
		event = zl.Error()
	case zerolog.FatalLevel:
		// Critical must never exit the process, so the fatal-severity
		// record is emitted through WithLevel.
		event = zl.WithLevel(zerolog.FatalLevel)
	default:
		s.mu.RUnlock()
		s.activeOps.Add(-1)
		s.wg.Done()
		return noopEvent()
	}
	s.mu.RUnlock()

	return &logEvent{event: event, core: c, prefix: l.prefix, skip: skip}
}

func (l *Logger) TraceWith() LogEvent {
	return l.eventAt(zerolog.TraceLevel, baseCallerSkip)
}

func (l *Logger) DebugWith() LogEvent {
	return l.eventAt(zerolog.DebugLevel, baseCallerSkip)
}

func (l *Logger) InfoWith() LogEvent {
	return l.eventAt(zerolog.InfoLevel, baseCallerSkip)
}

func (l *Logger) WarningWith() LogEvent {
	return l.eventAt(zerolog.WarnLevel, baseCallerSkip)
}

func (l *Logger) ErrorWith() LogEvent {
	return l.eventAt(zerolog.ErrorLevel, baseCallerSkip)
}

func (l *Logger) CriticalWith() LogEvent {
	return l.eventAt(zerolog.FatalLevel, baseCallerSkip)
}

// Printf-style helpers. The format string is expanded only when the level
// is enabled.

func (l *Logger) Tracef(format string, v ...interface{}) {
	e := l.eventAt(zerolog.TraceLevel, baseCallerSkip)
	if e.event == nil {
		return
	}
	e.finalize(fmt.Sprintf(format, v...))
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	e := l.eventAt(zerolog.DebugLevel, baseCallerSkip)
	if e.event == nil {
		return
	}
	e.finalize(fmt.Sprintf(format, v...))
}

func (l *Logger) Infof(format string, v ...interface{}) {
	e := l.eventAt(zerolog.InfoLevel, baseCallerSkip)
	if e.event == nil {
		return
	}
	e.finalize(fmt.Sprintf(format, v...))
}

func (l *Logger) Warningf(format string, v ...interface{}) {
	e := l.eventAt(zerolog.WarnLevel, baseCallerSkip)
	if e.event == nil {
		return
	}
	e.finalize(fmt.Sprintf(format, v...))
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	e := l.eventAt(zerolog.ErrorLevel, baseCallerSkip)
	if e.event == nil {
		return
	}
	e.finalize(fmt.Sprintf(format, v...))
}

func (l *Logger) Criticalf(format string, v ...interface{}) {
	e := l.eventAt(zerolog.FatalLevel, baseCallerSkip)
	if e.event == nil {
		return
	}
	e.finalize(fmt.Sprintf(format, v...))
}

// Print-style helpers, fmt.Sprint semantics.

func (l *Logger) Trace(v ...interface{}) {
	e := l.eventAt(zerolog.TraceLevel, baseCallerSkip)
	if e.event == nil {
		return
	}
	e.finalize(sprint(v...))
}

func (l *Logger) Debug(v ...interface{}) {
	e := l.eventAt(zerolog.DebugLevel, baseCallerSkip)
	if e.event == nil {
		return
	}
	e.finalize(sprint(v...))
}

func (l *Logger) Info(v ...interface{}) {
	e := l.eventAt(zerolog.InfoLevel, baseCallerSkip)
	if e.event == nil {
		return
	}
	e.finalize(sprint(v...))
}

func (l *Logger) Warning(v ...interface{}) {
	e := l.eventAt(zerolog.WarnLevel, baseCallerSkip)
	if e.event == nil {
		return
	}
	e.finalize(sprint(v...))
}

func (l *Logger) Error(v ...interface{}) {
	e := l.eventAt(zerolog.ErrorLevel, baseCallerSkip)
	if e.event == nil {
		return
	}
	e.finalize(sprint(v...))
}

func (l *Logger) Critical(v ...interface{}) {
	e := l.eventAt(zerolog.FatalLevel, baseCallerSkip)
	if e.event == nil {
		return
	}
	e.finalize(sprint(v...))
}

var sprintPool = sync.Pool{
	New: func() interface{} {
		return new(strings.Builder)
	},
}

func sprint(v ...interface{}) string {
	if len(v) == 1 {
		if s, ok := v[0].(string); ok {
			return s
		}
	}
	b := sprintPool.Get().(*strings.Builder)
	b.Reset()
	fmt.Fprint(b, v...)
	out := b.String()
	sprintPool.Put(b)
	return out
}

var _ Emitter = (*Logger)(nil)

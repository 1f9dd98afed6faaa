package logging

import (
	"sync"
	"time"
)

// Perflog tracks named intervals and logs their durations through the perf
// logger. The zero value is usable but emits nothing until bound via a
// Service. The timer map is mutex-guarded; ordering of concurrent Start and
// Stop calls on the same name is the caller's concern.
type Perflog struct {
	mu     sync.Mutex
	timers map[string]time.Time
	logger *Logger
	root   string
}

func newPerflog(logger *Logger) *Perflog {
	p := &Perflog{logger: logger}
	if logger != nil && logger.core != nil && logger.core.svc != nil {
		p.root = logger.core.svc.WorkingDir
	}
	return p
}

// Start begins tracking name. Starting an already-tracked name logs a
// warning and resets its start time.
func (p *Perflog) Start(name string) {
	if p == nil {
		return
	}
	now := time.Now()

	p.mu.Lock()
	if p.timers == nil {
		p.timers = make(map[string]time.Time, 8)
	}
	_, tracked := p.timers[name]
	p.timers[name] = now
	p.mu.Unlock()

	var ev LogEvent
	if tracked {
		ev = p.logger.WarningWith()
	} else {
		ev = p.logger.DebugWith()
	}
	if file, line, ok := callSite(2); ok {
		ev.SourceFile(relPath(p.root, file)).SourceLine(line)
	}
	if tracked {
		ev.Msgf(`"%s" event already started, resetting start time`, name)
	} else {
		ev.Msgf(`"%s" event tracking started`, name)
	}
}

// Stop ends tracking of name and logs the elapsed time. An untracked name
// logs an error and returns the zero duration with false, the absence
// sentinel.
func (p *Perflog) Stop(name string) (time.Duration, bool) {
	if p == nil {
		return 0, false
	}
	now := time.Now()

	p.mu.Lock()
	if p.timers == nil {
		p.timers = make(map[string]time.Time, 8)
	}
	start, tracked := p.timers[name]
	if tracked {
		delete(p.timers, name)
	}
	p.mu.Unlock()

	if !tracked {
		ev := p.logger.ErrorWith()
		if file, line, ok := callSite(2); ok {
			ev.SourceFile(relPath(p.root, file)).SourceLine(line)
		}
		ev.Msgf(`"%s" not being tracked, call Start first`, name)
		return 0, false
	}

	elapsed := now.Sub(start)
	ev := p.logger.InfoWith()
	if file, line, ok := callSite(2); ok {
		ev.SourceFile(relPath(p.root, file)).SourceLine(line)
	}
	ev.Msgf(`"%s" event took %f seconds`, name, elapsed.Seconds())
	return elapsed, true
}

// Tracking reports whether name currently has a running timer.
func (p *Perflog) Tracking(name string) bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.timers[name]
	return ok
}

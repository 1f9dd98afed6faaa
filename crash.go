package logging

import (
	"runtime/debug"
	"strconv"
	"strings"
)

// CrashObserver is notified after a crash has been logged. Observers run in
// registration order.
type CrashObserver func(value interface{}, stack []byte)

// OnCrash registers an observer invoked by NotifyCrash after the crash has
// been written to the default logger.
func (s *Service) OnCrash(obs CrashObserver) {
	if s == nil || obs == nil {
		return
	}
	s.crashMu.Lock()
	s.crashObservers = append(s.crashObservers, obs)
	s.crashMu.Unlock()
}

// NotifyCrash logs an abnormal termination: the value's type at error
// level, then the stack text with its source override pointing at the crash
// origin. Registered observers run afterwards, in order. NotifyCrash does
// not stop the crash, callers re-raise.
func (s *Service) NotifyCrash(value interface{}) {
	if s == nil {
		return
	}
	stack := debug.Stack()

	log := s.Default()
	log.Errorf("Unhandled %T", value)

	text := strings.TrimRight(string(stack), "\n")
	ev := log.ErrorWith()
	if file, line, ok := crashFrame(stack); ok {
		ev.SourceFile(relPath(s.WorkingDir, file)).SourceLine(line)
	} else if file, line, ok := callSite(2); ok {
		ev.SourceFile(relPath(s.WorkingDir, file)).SourceLine(line)
	}
	ev.Msg(text)

	s.crashMu.Lock()
	observers := make([]CrashObserver, len(s.crashObservers))
	copy(observers, s.crashObservers)
	s.crashMu.Unlock()

	for _, obs := range observers {
		s.runObserver(obs, value, stack)
	}
}

// runObserver shields NotifyCrash from a panicking observer so the original
// crash is still re-raised by the caller.
func (s *Service) runObserver(obs CrashObserver, value interface{}, stack []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.Default().Errorf("crash observer failed: %v", r)
		}
	}()
	obs(value, stack)
}

// RecoverNotify is meant to be deferred. It recovers a panic, routes it
// through NotifyCrash and panics again with the original value. A panic is
// never suppressed.
func (s *Service) RecoverNotify() {
	r := recover()
	if r == nil {
		return
	}
	s.NotifyCrash(r)
	panic(r)
}

// crashFrame locates the panic origin in a runtime stack dump: the frame
// pair following the last panic call. Reports false when the stack holds no
// panic, as with a direct NotifyCrash call.
func crashFrame(stack []byte) (string, int, bool) {
	lines := strings.Split(string(stack), "\n")
	anchor := -1
	for i, line := range lines {
		if strings.HasPrefix(line, "panic(") || strings.HasPrefix(line, "runtime.gopanic") {
			anchor = i
		}
	}
	// anchor+1 is the runtime location of panic itself, anchor+2 the origin
	// function, anchor+3 its file:line.
	if anchor < 0 || anchor+3 >= len(lines) {
		return emptyString, 0, false
	}
	loc := strings.TrimSpace(lines[anchor+3])
	if i := strings.IndexByte(loc, ' '); i >= 0 {
		loc = loc[:i]
	}
	colon := strings.LastIndexByte(loc, ':')
	if colon <= 0 {
		return emptyString, 0, false
	}
	line, err := strconv.Atoi(loc[colon+1:])
	if err != nil {
		return emptyString, 0, false
	}
	return loc[:colon], line, true
}

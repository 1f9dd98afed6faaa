package logging

import (
	"fmt"
	"strings"
	"sync"
)

// Warner funnels warning-style messages into the py.warnings logger,
// suppressing repeats. Messages pass two filters in order: project paths
// embedded in the text are relativized, then the normalized body is checked
// against the seen set and dropped when already emitted. The seen set grows
// for the lifetime of the process; dedup never relies on any once-only
// behavior further down the pipeline.
type Warner struct {
	mu     sync.Mutex
	seen   map[string]struct{}
	logger *Logger
	root   string
}

func newWarner(logger *Logger) *Warner {
	w := &Warner{logger: logger}
	if logger != nil && logger.core != nil && logger.core.svc != nil {
		w.root = logger.core.svc.WorkingDir
	}
	return w
}

// Warn emits msg once per normalized body and reports whether it was
// emitted. The normalized body is the first line with any leading
// "Category: " prefix stripped.
func (w *Warner) Warn(msg string) bool {
	if w == nil {
		return false
	}
	return w.emit(msg)
}

// Warnf is Warn with printf formatting. Note dedup applies to the expanded
// message, so variable arguments defeat it.
func (w *Warner) Warnf(format string, v ...interface{}) bool {
	if w == nil {
		return false
	}
	return w.emit(fmt.Sprintf(format, v...))
}

// emit must sit exactly one call below Warn or Warnf so the captured call
// site lands on their caller.
func (w *Warner) emit(msg string) bool {
	if w.root != emptyString {
		msg = strings.ReplaceAll(msg, w.root, ".")
	}

	key := normalizeWarning(msg)

	w.mu.Lock()
	if w.seen == nil {
		w.seen = make(map[string]struct{}, 16)
	}
	if _, dup := w.seen[key]; dup {
		w.mu.Unlock()
		return false
	}
	w.seen[key] = struct{}{}
	w.mu.Unlock()

	ev := w.logger.WarningWith()
	if file, line, ok := callSite(3); ok {
		ev.SourceFile(relPath(w.root, file)).SourceLine(line)
	}
	ev.Msg(msg)
	return true
}

// normalizeWarning reduces a warning to its dedup key: the first line, with
// everything up to and including the first ": " separator removed.
func normalizeWarning(msg string) string {
	line := msg
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if i := strings.Index(line, ": "); i >= 0 {
		line = line[i+2:]
	}
	return line
}

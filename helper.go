package logging

import (
	stderrs "errors"
	"path/filepath"
	"runtime"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// parseLevel parses a severity name into a zerolog.Level. On top of the
// names zerolog knows it accepts the suite's historical spellings:
// "warning" for warn and "critical" for the fatal slot (critical records
// never terminate the process, see Logger.CriticalWith).
func parseLevel(level string) (zerolog.Level, error) {
	name := strings.ToLower(strings.TrimSpace(level))
	switch name {
	case emptyString:
		return zerolog.NoLevel, stderrs.New("empty level name")
	case "warning":
		return zerolog.WarnLevel, nil
	case "critical":
		return zerolog.FatalLevel, nil
	}
	l, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.NoLevel, err
	}
	return l, nil
}

// displayLevel maps a wire level value to its rendered full name and
// one-letter code. Unknown values are passed through upper-cased so a
// record never loses its severity on render.
func displayLevel(wire string) (name string, letter string) {
	switch wire {
	case "trace":
		return "TRACE", "T"
	case "debug":
		return "DEBUG", "D"
	case "info":
		return "INFO", "I"
	case "warn":
		return "WARNING", "W"
	case "error":
		return "ERROR", "E"
	case "fatal":
		return "CRITICAL", "C"
	}
	name = strings.ToUpper(wire)
	if name == emptyString {
		return emptyString, emptyString
	}
	return name, name[:1]
}

// callSite reports the file and line of a caller frame. skip counts as in
// runtime.Caller, from the callSite invocation itself.
func callSite(skip int) (file string, line int, ok bool) {
	_, file, line, ok = runtime.Caller(skip)
	return file, line, ok
}

// relPath rewrites path to be relative to root when possible and returns
// the original path otherwise.
func relPath(root, path string) string {
	if root == emptyString || path == emptyString {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

type causer interface {
	Cause() error
}

// buildErrorChain walks an error's cause chain and returns the messages
// outermost -> innermost plus the innermost (root) message. It prefers
// pkg/errors causes and falls back to stdlib errors.Unwrap, guarding
// against excessive depth and repeated messages to avoid cycles.
func buildErrorChain(err error) (chain []string, root string) {
	const maxDepth = 50
	visited := 0
	seen := map[string]bool{}

	for err != nil && visited < maxDepth {
		visited++

		if c, ok := err.(causer); ok {
			// Stack and message wrappers around the same cause repeat the
			// same text, keep one entry per distinct message.
			msg := err.Error()
			if n := len(chain); n == 0 || chain[n-1] != msg {
				chain = append(chain, msg)
			}
			err = c.Cause()
			continue
		}

		// Fallback: generic error
		msg := err.Error()
		// avoid infinite loops if messages repeat due to unusual cycles
		if seen[msg] {
			break
		}
		seen[msg] = true
		chain = append(chain, msg)
		// unwrap via stdlib
		err = stderrs.Unwrap(err)
	}

	if len(chain) > 0 {
		root = chain[len(chain)-1]
	}
	return chain, root
}

// joinChain returns a single string for the error chain separated by " -> ".
func joinChain(chain []string) string {
	if len(chain) == 0 {
		return emptyString
	}
	return strings.Join(chain, " -> ")
}

// Marker centers msg in a line of '-' runes for use as a log file section
// divider.
func Marker(msg string) string {
	return MarkerWith(msg, '-')
}

// MarkerWith centers msg between runs of the mark rune, padded with one
// space on each side, to a fixed marker width. Messages wider than the
// marker minus the surrounding spaces are returned unchanged.
func MarkerWith(msg string, mark rune) string {
	width := utf8.RuneCountInString(msg)
	if width > markerLen-2 {
		return msg
	}
	total := markerLen - width - 2
	left := total / 2
	return strings.Repeat(string(mark), left) + " " + msg + " " + strings.Repeat(string(mark), total-left)
}

package logging

// Emitter is the emission surface shared by the facility and its loggers.
// Prefer the structured methods with typed fields; the printf-style helpers
// on Logger exist for ported call sites that still build message strings.
type Emitter interface {
	TraceWith() LogEvent
	DebugWith() LogEvent
	InfoWith() LogEvent
	WarningWith() LogEvent
	ErrorWith() LogEvent
	CriticalWith() LogEvent
}

package logging

import (
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
)

// baseCallerSkip reaches the user frame from finalize via Msg, Msgf or
// Send. Helpers that add a frame of their own pass eventAt an incremented
// skip.
const baseCallerSkip = 3

// LogEvent provides a fluent interface for structured logging with type-safe
// field methods. Events on disabled levels are inert: no field is encoded,
// no format verb is expanded, no caller is captured. Finish every event with
// exactly one of Msg, Msgf or Send.
type LogEvent interface {
	Str(key, val string) LogEvent
	Strs(key string, vals []string) LogEvent
	Stringer(key string, val interface{ String() string }) LogEvent
	Int(key string, val int) LogEvent
	Int8(key string, val int8) LogEvent
	Int16(key string, val int16) LogEvent
	Int32(key string, val int32) LogEvent
	Int64(key string, val int64) LogEvent
	Uint(key string, val uint) LogEvent
	Uint8(key string, val uint8) LogEvent
	Uint16(key string, val uint16) LogEvent
	Uint32(key string, val uint32) LogEvent
	Uint64(key string, val uint64) LogEvent
	Float32(key string, val float32) LogEvent
	Float64(key string, val float64) LogEvent
	Bool(key string, val bool) LogEvent
	Bools(key string, vals []bool) LogEvent
	Time(key string, val time.Time) LogEvent
	Dur(key string, val time.Duration) LogEvent
	Err(err error) LogEvent
	AnErr(key string, err error) LogEvent
	Bytes(key string, val []byte) LogEvent
	Hex(key string, val []byte) LogEvent
	IPAddr(key string, val net.IP) LogEvent
	MACAddr(key string, val net.HardwareAddr) LogEvent
	Interface(key string, val interface{}) LogEvent
	Dict(key string, dict func(LogEvent)) LogEvent
	// SourceFile overrides the captured call site. With no SourceLine the
	// record renders the file reference without a line number.
	SourceFile(file string) LogEvent
	// SourceLine sets the line of a SourceFile override. On its own it has
	// no effect.
	SourceLine(line int) LogEvent
	Msg(msg string)
	Msgf(format string, v ...interface{})
	Send()
}

// logEvent implements LogEvent by wrapping zerolog.Event. A nil inner event
// marks a disabled or uninitialized emission, every method no-ops on it.
type logEvent struct {
	event   *zerolog.Event
	core    *loggerCore
	prefix  string
	skip    int
	srcFile string
	srcLine int
	hasLine bool
}

func noopEvent() *logEvent {
	return &logEvent{}
}

func (e *logEvent) Str(key, val string) LogEvent {
	if e.event != nil {
		e.event.Str(key, val)
	}
	return e
}

func (e *logEvent) Strs(key string, vals []string) LogEvent {
	if e.event != nil {
		e.event.Strs(key, vals)
	}
	return e
}

func (e *logEvent) Stringer(key string, val interface{ String() string }) LogEvent {
	if e.event != nil {
		e.event.Stringer(key, val)
	}
	return e
}

func (e *logEvent) Int(key string, val int) LogEvent {
	if e.event != nil {
		e.event.Int(key, val)
	}
	return e
}

func (e *logEvent) Int8(key string, val int8) LogEvent {
	if e.event != nil {
		e.event.Int8(key, val)
	}
	return e
}

func (e *logEvent) Int16(key string, val int16) LogEvent {
	if e.event != nil {
		e.event.Int16(key, val)
	}
	return e
}

func (e *logEvent) Int32(key string, val int32) LogEvent {
	if e.event != nil {
		e.event.Int32(key, val)
	}
	return e
}

func (e *logEvent) Int64(key string, val int64) LogEvent {
	if e.event != nil {
		e.event.Int64(key, val)
	}
	return e
}

func (e *logEvent) Uint(key string, val uint) LogEvent {
	if e.event != nil {
		e.event.Uint(key, val)
	}
	return e
}

func (e *logEvent) Uint8(key string, val uint8) LogEvent {
	if e.event != nil {
		e.event.Uint8(key, val)
	}
	return e
}

func (e *logEvent) Uint16(key string, val uint16) LogEvent {
	if e.event != nil {
		e.event.Uint16(key, val)
	}
	return e
}

func (e *logEvent) Uint32(key string, val uint32) LogEvent {
	if e.event != nil {
		e.event.Uint32(key, val)
	}
	return e
}

func (e *logEvent) Uint64(key string, val uint64) LogEvent {
	if e.event != nil {
		e.event.Uint64(key, val)
	}
	return e
}

func (e *logEvent) Float32(key string, val float32) LogEvent {
	if e.event != nil {
		e.event.Float32(key, val)
	}
	return e
}

func (e *logEvent) Float64(key string, val float64) LogEvent {
	if e.event != nil {
		e.event.Float64(key, val)
	}
	return e
}

func (e *logEvent) Bool(key string, val bool) LogEvent {
	if e.event != nil {
		e.event.Bool(key, val)
	}
	return e
}

func (e *logEvent) Bools(key string, vals []bool) LogEvent {
	if e.event != nil {
		e.event.Bools(key, vals)
	}
	return e
}

func (e *logEvent) Time(key string, val time.Time) LogEvent {
	if e.event != nil {
		e.event.Time(key, val)
	}
	return e
}

func (e *logEvent) Dur(key string, val time.Duration) LogEvent {
	if e.event != nil {
		e.event.Dur(key, val)
	}
	return e
}

func (e *logEvent) Err(err error) LogEvent {
	if e.event != nil {
		e.event.Err(err)
		if err != nil {
			chain, root := buildErrorChain(err)
			if len(chain) > 0 {
				e.event.Strs("error_chain", chain)
				e.event.Str("error_root", root)
				e.event.Str("error_history", joinChain(chain))
			}
		}
	}
	return e
}

func (e *logEvent) AnErr(key string, err error) LogEvent {
	if e.event != nil {
		e.event.AnErr(key, err)
		if err != nil {
			chain, root := buildErrorChain(err)
			if len(chain) > 0 {
				e.event.Strs(key+"_chain", chain)
				e.event.Str(key+"_root", root)
				e.event.Str(key+"_history", joinChain(chain))
			}
		}
	}
	return e
}

func (e *logEvent) Bytes(key string, val []byte) LogEvent {
	if e.event != nil {
		e.event.Bytes(key, val)
	}
	return e
}

func (e *logEvent) Hex(key string, val []byte) LogEvent {
	if e.event != nil {
		e.event.Hex(key, val)
	}
	return e
}

func (e *logEvent) IPAddr(key string, val net.IP) LogEvent {
	if e.event != nil {
		e.event.IPAddr(key, val)
	}
	return e
}

func (e *logEvent) MACAddr(key string, val net.HardwareAddr) LogEvent {
	if e.event != nil {
		e.event.MACAddr(key, val)
	}
	return e
}

func (e *logEvent) Interface(key string, val interface{}) LogEvent {
	if e.event != nil {
		e.event.Interface(key, val)
	}
	return e
}

// Dict for nested objects
func (e *logEvent) Dict(key string, dict func(LogEvent)) LogEvent {
	if e.event != nil {
		dictEvent := zerolog.Dict()
		dict(&logEvent{event: dictEvent})
		e.event.Dict(key, dictEvent)
	}
	return e
}

func (e *logEvent) SourceFile(file string) LogEvent {
	e.srcFile = file
	return e
}

func (e *logEvent) SourceLine(line int) LogEvent {
	e.srcLine = line
	e.hasLine = true
	return e
}

func (e *logEvent) Msg(msg string) {
	e.finalize(msg)
}

func (e *logEvent) Msgf(format string, v ...interface{}) {
	if e.event == nil {
		return
	}
	e.finalize(fmt.Sprintf(format, v...))
}

func (e *logEvent) Send() {
	e.finalize(emptyString)
}

// finalize stamps the call site and wire timestamp, applies the message
// prefixes and writes the record. It releases the in-flight tracking taken
// when the event was created.
func (e *logEvent) finalize(msg string) {
	if e.event == nil || e.core == nil {
		return
	}
	svc := e.core.svc
	defer func() {
		svc.activeOps.Add(-1)
		svc.wg.Done()
	}()

	if e.srcFile != emptyString {
		// Overrides are rendered verbatim, the caller owns their shape.
		e.event.Str(fieldSourceFile, e.srcFile)
		if e.hasLine {
			e.event.Int(fieldSourceLine, e.srcLine)
		}
	} else if file, line, ok := callSite(e.skip); ok {
		e.event.Str(fieldSourceFile, relPath(svc.WorkingDir, file))
		e.event.Int(fieldSourceLine, line)
	}

	if e.prefix != emptyString {
		msg = e.prefix + msg
	}
	if wp := svc.workerPrefix.Load(); wp != emptyString {
		msg = wp + msg
	}

	e.event.Str(fieldTime, time.Now().Format(wireTimeFormat))
	e.event.Msg(msg)
}

package logging

import (
	"fmt"
	"reflect"

	"github.com/rs/zerolog"
)

// Maximum recursion depth to prevent stack overflow
const maxDumpDepth = 10

// maxDumpElements caps how many slice or array elements are logged.
const maxDumpElements = 10

// Dump logs the contents of the provided value at debug level, one record
// per scalar. It handles structs (exported fields), maps, slices and basic
// types, with cycle detection. Every emitted line carries the Dump call
// site, not the dump internals. With debug disabled, no reflection runs.
func (l *Logger) Dump(v interface{}) {
	if l == nil || l.core == nil {
		return
	}
	zl := l.core.logger.Load()
	if zl == nil || zl.GetLevel() > zerolog.DebugLevel {
		return
	}

	d := dumper{logger: l, visited: make(map[uintptr]bool)}
	if file, line, ok := callSite(2); ok {
		d.file, d.line, d.hasSite = relPath(l.core.svc.WorkingDir, file), line, true
	}

	if v == nil {
		d.emitf("Dump: <nil>")
		return
	}
	d.value(v, emptyString, 0)
}

type dumper struct {
	logger  *Logger
	file    string
	line    int
	hasSite bool
	visited map[uintptr]bool
}

func (d *dumper) emitf(format string, args ...interface{}) {
	e := d.logger.eventAt(zerolog.DebugLevel, baseCallerSkip)
	if e.event == nil {
		return
	}
	if d.hasSite {
		e.srcFile = d.file
		e.srcLine = d.line
		e.hasLine = true
	}
	e.finalize(fmt.Sprintf(format, args...))
}

func (d *dumper) value(v interface{}, prefix string, depth int) {
	if depth > maxDumpDepth {
		d.emitf("%s: <max depth reached>", prefix)
		return
	}

	if v == nil {
		d.emitf("%s: <nil>", prefix)
		return
	}

	val := reflect.ValueOf(v)

	// Unwrap interfaces and pointers with cycle detection. Pointer() is only
	// called on kinds that support it.
	for {
		switch val.Kind() {
		case reflect.Interface:
			if val.IsNil() {
				d.emitf("%s: <nil>", prefix)
				return
			}
			val = val.Elem()
			continue
		case reflect.Ptr:
			if val.IsNil() {
				d.emitf("%s: <nil>", prefix)
				return
			}
			ptr := val.Pointer()
			if d.visited[ptr] {
				d.emitf("%s: <circular reference>", prefix)
				return
			}
			d.visited[ptr] = true
			val = val.Elem()
		default:
		}
		break
	}

	typ := val.Type()

	// Addressable non-pointer values reachable by reference more than once
	// are recorded too, so repeated references do not recurse endlessly.
	if val.CanAddr() {
		addrPtr := val.Addr().Pointer()
		if d.visited[addrPtr] {
			d.emitf("%s: <circular reference>", prefix)
			return
		}
		d.visited[addrPtr] = true
	}

	switch val.Kind() {
	case reflect.Struct:
		structName := typ.Name()
		if prefix == emptyString {
			d.emitf("Struct: %s", structName)
		} else {
			d.emitf("%s: %s {", prefix, structName)
		}

		for i := 0; i < val.NumField(); i++ {
			field := typ.Field(i)
			fieldVal := val.Field(i)

			// Skip unexported fields
			if !fieldVal.CanInterface() {
				continue
			}

			fieldPrefix := field.Name
			if prefix != emptyString {
				fieldPrefix = prefix + "." + field.Name
			}

			d.value(fieldVal.Interface(), fieldPrefix, depth+1)
		}

		if prefix != emptyString {
			d.emitf("%s: }", prefix)
		}

	case reflect.Map:
		d.emitf("%s: map[%s]%s (len: %d) {",
			prefix, typ.Key().String(), typ.Elem().String(), val.Len())

		iter := val.MapRange()
		for iter.Next() {
			keyStr := fmt.Sprintf("%v", iter.Key().Interface())
			d.value(iter.Value().Interface(), prefix+"["+keyStr+"]", depth+1)
		}

		d.emitf("%s: }", prefix)

	case reflect.Slice, reflect.Array:
		d.emitf("%s: %s (len: %d, cap: %d) {",
			prefix, typ.String(), val.Len(), val.Cap())

		for i := 0; i < val.Len() && i < maxDumpElements; i++ {
			elemPrefix := fmt.Sprintf("%s[%d]", prefix, i)
			elem := val.Index(i)
			if elem.CanInterface() {
				d.value(elem.Interface(), elemPrefix, depth+1)
			} else {
				d.value(reflect.New(elem.Type()).Elem().Interface(), elemPrefix, depth+1)
			}
		}

		if val.Len() > maxDumpElements {
			d.emitf("%s: ... (%d more elements)", prefix, val.Len()-maxDumpElements)
		}

		d.emitf("%s: }", prefix)

	default:
		if val.IsValid() && val.CanInterface() {
			d.emitf("%s: %v", prefix, val.Interface())
		} else {
			d.emitf("%s: %v", prefix, v)
		}
	}
}

package logging

import (
	"bytes"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type segmentKind int

const (
	segLiteral segmentKind = iota
	segTime
	segLevelName
	segLevelLetter
	segLogger
	segMessage
	segSource
	segPath
	segLine
)

var placeholderKinds = map[string]segmentKind{
	"time":    segTime,
	"level":   segLevelName,
	"level.1": segLevelLetter,
	"logger":  segLogger,
	"message": segMessage,
	"source":  segSource,
	"path":    segPath,
	"line":    segLine,
}

type segment struct {
	kind segmentKind
	text string
}

// recordTemplate is a compiled render template. Templates are compiled once
// at logger setup so a bad placeholder fails loudly instead of corrupting
// output record by record.
type recordTemplate struct {
	segs []segment
}

// compileTemplate parses a template such as
//
//	{time} [{level.1}] [{logger}] {message} ({source})
//
// into literal and placeholder segments. Doubled braces escape to literal
// braces. An unknown or unterminated placeholder is an error.
func compileTemplate(tpl string) (*recordTemplate, error) {
	var segs []segment
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{kind: segLiteral, text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(tpl); {
		c := tpl[i]
		switch c {
		case '{':
			if i+1 < len(tpl) && tpl[i+1] == '{' {
				lit.WriteByte('{')
				i += 2
				continue
			}
			end := strings.IndexByte(tpl[i+1:], '}')
			if end < 0 {
				return nil, errors.Errorf("unterminated placeholder at offset %d", i)
			}
			name := tpl[i+1 : i+1+end]
			kind, ok := placeholderKinds[name]
			if !ok {
				return nil, errors.Errorf("unknown placeholder {%s}", name)
			}
			flush()
			segs = append(segs, segment{kind: kind})
			i += end + 2
		case '}':
			if i+1 < len(tpl) && tpl[i+1] == '}' {
				lit.WriteByte('}')
				i += 2
				continue
			}
			return nil, errors.Errorf("unmatched '}' at offset %d", i)
		default:
			lit.WriteByte(c)
			i++
		}
	}
	flush()

	return &recordTemplate{segs: segs}, nil
}

// wireRecord is one decoded emission. Unknown fields land in extra and are
// appended to the message as sorted key=value pairs.
type wireRecord struct {
	time       string
	level      string
	logger     string
	message    string
	sourceFile string
	sourceLine int64
	hasLine    bool
	extra      map[string]string
}

func decodeWireRecord(p []byte) (*wireRecord, error) {
	raw := make(map[string]interface{}, 8)
	dec := json.NewDecoder(bytes.NewReader(p))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decoding record")
	}

	rec := &wireRecord{}
	for key, val := range raw {
		switch key {
		case fieldTime:
			rec.time = valueString(val)
		case fieldLevel:
			rec.level = valueString(val)
		case fieldLogger:
			rec.logger = valueString(val)
		case fieldMessage:
			rec.message = valueString(val)
		case fieldSourceFile:
			rec.sourceFile = valueString(val)
		case fieldSourceLine:
			if n, ok := val.(json.Number); ok {
				if parsed, err := n.Int64(); err == nil {
					rec.sourceLine = parsed
					rec.hasLine = true
				}
			}
		default:
			if rec.extra == nil {
				rec.extra = make(map[string]string, 4)
			}
			rec.extra[key] = valueString(val)
		}
	}
	return rec, nil
}

func valueString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return "null"
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return emptyString
		}
		return string(b)
	}
}

// sourceRef renders the call site as path:line, or path alone when no line
// is known.
func (r *wireRecord) sourceRef() string {
	if r.sourceFile == emptyString {
		return emptyString
	}
	if !r.hasLine {
		return r.sourceFile
	}
	return r.sourceFile + ":" + strconv.FormatInt(r.sourceLine, 10)
}

func (r *wireRecord) renderedMessage() string {
	if len(r.extra) == 0 {
		return r.message
	}
	keys := make([]string, 0, len(r.extra))
	for k := range r.extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(r.message)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(r.extra[k])
	}
	return b.String()
}

func (t *recordTemplate) render(b *bytes.Buffer, rec *wireRecord, timeLayout string) {
	for _, seg := range t.segs {
		switch seg.kind {
		case segLiteral:
			b.WriteString(seg.text)
		case segTime:
			b.WriteString(renderTime(rec.time, timeLayout))
		case segLevelName:
			name, _ := displayLevel(rec.level)
			b.WriteString(name)
		case segLevelLetter:
			_, letter := displayLevel(rec.level)
			b.WriteString(letter)
		case segLogger:
			b.WriteString(rec.logger)
		case segMessage:
			b.WriteString(rec.renderedMessage())
		case segSource:
			b.WriteString(rec.sourceRef())
		case segPath:
			b.WriteString(rec.sourceFile)
		case segLine:
			if rec.hasLine {
				b.WriteString(strconv.FormatInt(rec.sourceLine, 10))
			}
		}
	}
}

func renderTime(wire, layout string) string {
	if wire == emptyString {
		return emptyString
	}
	ts, err := time.Parse(wireTimeFormat, wire)
	if err != nil {
		return wire
	}
	return ts.Format(layout)
}

var renderPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// formatWriter renders each emitted record through a compiled template and
// writes the rendered line to out. zerolog hands it one complete record per
// Write call.
type formatWriter struct {
	out        io.Writer
	tpl        *recordTemplate
	timeLayout string
}

func newFormatWriter(out io.Writer, tpl *recordTemplate, timeLayout string) *formatWriter {
	return &formatWriter{out: out, tpl: tpl, timeLayout: timeLayout}
}

func (w *formatWriter) Write(p []byte) (int, error) {
	rec, err := decodeWireRecord(p)
	if err != nil {
		// Never drop a record on a decode failure, pass it through raw.
		if _, werr := w.out.Write(p); werr != nil {
			return 0, werr
		}
		return len(p), nil
	}

	buf := renderPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer renderPool.Put(buf)

	w.tpl.render(buf, rec, w.timeLayout)
	buf.WriteByte('\n')

	if _, err := w.out.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	return len(p), nil
}

// minLevelWriter forwards records at or above a level floor and discards the
// rest. It backs the console mirrors.
type minLevelWriter struct {
	w   io.Writer
	min zerolog.Level
}

func (w minLevelWriter) Write(p []byte) (int, error) {
	return w.w.Write(p)
}

func (w minLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < w.min {
		return len(p), nil
	}
	return w.w.Write(p)
}

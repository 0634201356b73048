package metrics

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	logging "gopkg.in/op/go-logging.v1"
)

// Level is a log severity. LevelSilent disables output.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelSilent
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "SILENT"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelSilent {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel parses a level name, case-insensitively. "warning", "off" and
// "none" are accepted as aliases. Unknown names select LevelInfo.
func ParseLevel(s string) Level {
	switch s = strings.ToUpper(strings.TrimSpace(s)); s {
	case "WARNING":
		return LevelWarn
	case "OFF", "NONE":
		return LevelSilent
	}
	if i := slices.Index(levelNames[:], s); i >= 0 {
		return Level(i)
	}
	return LevelInfo
}

// Fields are structured key/value pairs attached to a log entry. Error
// values are rendered with Error().
type Fields map[string]any

// Format selects the log encoding.
type Format int

const (
	FormatText Format = iota // one human-readable line per entry
	FormatJSON               // one JSON object per line
)

// ParseFormat parses "text" or "json". Anything else selects text.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return FormatJSON
	}
	return FormatText
}

// textLayout is the go-logging layout of FormatText lines.
const textLayout = "%{time:15:04:05.000} %{level:.4s} [%{module}] %{message}"

// sink is the output side shared by a logger and all of its children.
type sink struct {
	level  atomic.Int32
	format Format

	mu  sync.Mutex // serializes JSON writes
	out io.Writer
	now func() time.Time

	text logging.LeveledBackend
}

func newSink(out io.Writer, format Format, level Level) *sink {
	s := &sink{format: format, out: out, now: time.Now}
	s.level.Store(int32(level))

	backend := logging.AddModuleLevel(logging.NewBackendFormatter(
		logging.NewLogBackend(out, "", 0),
		logging.MustStringFormatter(textLayout),
	))
	backend.SetLevel(logging.DEBUG, "")
	s.text = backend
	return s
}

type loggerOptions struct {
	out    io.Writer
	level  Level
	format Format
	fields Fields
	name   string
}

// LoggerOption configures NewLogger.
type LoggerOption func(*loggerOptions)

// WithOutput sets the destination. The default is os.Stderr.
func WithOutput(w io.Writer) LoggerOption {
	return func(o *loggerOptions) { o.out = w }
}

// WithLevel sets the minimum level. The default is LevelInfo.
func WithLevel(level Level) LoggerOption {
	return func(o *loggerOptions) { o.level = level }
}

// WithFormat sets the encoding. The default is FormatText.
func WithFormat(format Format) LoggerOption {
	return func(o *loggerOptions) { o.format = format }
}

// WithFields attaches fields to every entry.
func WithFields(fields Fields) LoggerOption {
	return func(o *loggerOptions) { o.fields = fields }
}

// WithName names the logger.
func WithName(name string) LoggerOption {
	return func(o *loggerOptions) { o.name = name }
}

// Logger writes leveled, structured entries. Children made with With and
// Named share the parent's output and level.
type Logger struct {
	sink   *sink
	name   string
	fields Fields
	text   *logging.Logger
}

// NewLogger creates a logger.
func NewLogger(opts ...LoggerOption) *Logger {
	o := loggerOptions{out: os.Stderr, level: LevelInfo, format: FormatText}
	for _, opt := range opts {
		opt(&o)
	}
	return newLogger(newSink(o.out, o.format, o.level), o.name, o.fields)
}

func newLogger(s *sink, name string, fields Fields) *Logger {
	module := name
	if module == "" {
		module = "qmsg"
	}
	text := &logging.Logger{Module: module}
	text.SetBackend(s.text)
	return &Logger{sink: s, name: name, fields: fields, text: text}
}

// With returns a child that adds fields to every entry.
func (l *Logger) With(fields Fields) *Logger {
	return newLogger(l.sink, l.name, merge(l.fields, fields))
}

// Named returns a child whose name is the parent's with name appended,
// dot separated.
func (l *Logger) Named(name string) *Logger {
	if l.name != "" {
		name = l.name + "." + name
	}
	return newLogger(l.sink, name, l.fields)
}

// SetLevel changes the level of l, its parent and all their children.
func (l *Logger) SetLevel(level Level) {
	l.sink.level.Store(int32(level))
}

// Level returns the current minimum level.
func (l *Logger) Level() Level {
	return Level(l.sink.level.Load())
}

// Enabled reports whether an entry at level would be written.
func (l *Logger) Enabled(level Level) bool {
	return level != LevelSilent && level >= l.Level()
}

func (l *Logger) Debug(msg string, fields ...Fields) { l.log(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...Fields)  { l.log(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Fields)  { l.log(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...Fields) { l.log(LevelError, msg, fields) }

func (l *Logger) log(level Level, msg string, extra []Fields) {
	if !l.Enabled(level) {
		return
	}
	fields := merge(l.fields, extra...)

	if l.sink.format == FormatJSON {
		l.writeJSON(level, msg, fields)
		return
	}

	line := msg
	if len(fields) > 0 {
		line += " " + formatFields(fields)
	}
	switch level {
	case LevelDebug:
		l.text.Debugf("%s", line)
	case LevelInfo:
		l.text.Infof("%s", line)
	case LevelWarn:
		l.text.Warningf("%s", line)
	default:
		l.text.Errorf("%s", line)
	}
}

func (l *Logger) writeJSON(level Level, msg string, fields Fields) {
	entry := make(map[string]any, len(fields)+4)
	for k, v := range fields {
		entry[k] = fieldValue(v)
	}
	entry["time"] = l.sink.now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["msg"] = msg
	if l.name != "" {
		entry["logger"] = l.name
	}

	data, err := json.Marshal(entry)
	if err != nil {
		data, _ = json.Marshal(map[string]string{
			"level": level.String(),
			"msg":   msg,
			"error": "unencodable fields: " + err.Error(),
		})
	}

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	_, _ = l.sink.out.Write(append(data, '\n'))
}

// merge returns base overlaid with each of more. The result is always a
// fresh map.
func merge(base Fields, more ...Fields) Fields {
	n := len(base)
	for _, f := range more {
		n += len(f)
	}
	out := make(Fields, n)
	for k, v := range base {
		out[k] = v
	}
	for _, f := range more {
		for k, v := range f {
			out[k] = v
		}
	}
	return out
}

func fieldValue(v any) any {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return v
}

// formatFields renders fields as key=value pairs sorted by key. Values
// containing spaces are quoted.
func formatFields(fields Fields) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		v := fmt.Sprint(fieldValue(fields[k]))
		if strings.ContainsAny(v, " \t\n\"") {
			v = fmt.Sprintf("%q", v)
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
	}
	return b.String()
}

// --- Global Logger ---

var globalLogger atomic.Pointer[Logger]

func init() {
	globalLogger.Store(NewLogger())
}

// SetLogger replaces the global logger. A nil logger is ignored.
func SetLogger(l *Logger) {
	if l != nil {
		globalLogger.Store(l)
	}
}

// GetLogger returns the global logger.
func GetLogger() *Logger {
	return globalLogger.Load()
}

func Debug(msg string, fields ...Fields) { GetLogger().log(LevelDebug, msg, fields) }
func Info(msg string, fields ...Fields)  { GetLogger().log(LevelInfo, msg, fields) }
func Warn(msg string, fields ...Fields)  { GetLogger().log(LevelWarn, msg, fields) }
func Error(msg string, fields ...Fields) { GetLogger().log(LevelError, msg, fields) }

// NullLogger discards everything.
func NullLogger() *Logger {
	return NewLogger(WithOutput(io.Discard), WithLevel(LevelSilent))
}

// TestLogger writes debug-level text to w.
func TestLogger(w io.Writer) *Logger {
	return NewLogger(WithOutput(w), WithLevel(LevelDebug))
}

// ProductionLogger writes info-level JSON to w.
func ProductionLogger(w io.Writer) *Logger {
	return NewLogger(WithOutput(w), WithFormat(FormatJSON))
}

// --- Redaction ---

// Fingerprint returns a short stable identifier for key material or an
// inbox identifier. Log it instead of the value itself.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// FingerprintString is Fingerprint over the bytes of s.
func FingerprintString(s string) string {
	return Fingerprint([]byte(s))
}

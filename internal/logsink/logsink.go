// Package logsink implements the log sink every component is handed at
// construction time (§5's "log sink... must serialize a single log
// record"; the _srvutils.log callback in original_source).
//
// Grounded on the teacher's Logger (aofei-air logger.go): a
// sync.Mutex-guarded io.Writer, a text/template line formatter and a
// buffer pool, adapted here to take structured fields instead of a
// printf-style arg list.
package logsink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"text/template"
	"time"
)

const defaultFormat = `{"time":"{{.time}}","level":"{{.level}}"}`

// Level is a log severity.
type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

// Logger is a structured, mutex-serialized log sink. It satisfies
// dispatch.Logger and any other package that only needs
// Debug/Info/Warn/Error.
type Logger struct {
	Output  io.Writer
	Enabled bool

	once sync.Once
	tmpl *template.Template
	mu   sync.Mutex
	pool sync.Pool
}

// New returns a Logger writing to out. Pass os.Stdout for the process
// default.
func New(out io.Writer) *Logger {
	return &Logger{
		Output:  out,
		Enabled: true,
		pool: sync.Pool{
			New: func() interface{} { return new(bytes.Buffer) },
		},
	}
}

func (l *Logger) Debug(msg string, fields map[string]interface{}) { l.log(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields map[string]interface{})  { l.log(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields map[string]interface{})  { l.log(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields map[string]interface{}) { l.log(LevelError, msg, fields) }

func (l *Logger) log(lvl Level, msg string, fields map[string]interface{}) {
	if !l.Enabled {
		return
	}

	l.once.Do(func() {
		l.tmpl = template.Must(template.New("logsink").Parse(defaultFormat))
	})

	data := map[string]interface{}{
		"time":  time.Now().UTC().Format(time.RFC3339),
		"level": levelNames[lvl],
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	buf := l.pool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		l.pool.Put(buf)
	}()

	if err := l.tmpl.Execute(buf, data); err != nil {
		fmt.Fprintf(l.Output, "%s %s %v\n", levelNames[lvl], msg, fields)
		return
	}

	// Splice msg and fields into the templated JSON header, the same
	// trick the teacher's log() uses to append a message onto a
	// pre-rendered JSON object.
	out := buf.Bytes()
	out = out[:len(out)-1] // drop trailing '}'
	var b bytes.Buffer
	b.Write(out)
	b.WriteString(`,"message":`)
	msgJSON, _ := json.Marshal(msg)
	b.Write(msgJSON)
	if len(fields) > 0 {
		b.WriteString(`,"fields":`)
		fieldsJSON, _ := json.Marshal(fields)
		b.Write(fieldsJSON)
	}
	b.WriteString("}\n")

	l.Output.Write(b.Bytes())
}

// Stdout returns a Logger writing to os.Stdout, the process default.
func Stdout() *Logger {
	return New(os.Stdout)
}

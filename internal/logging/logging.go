// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/sirupsen/logrus"
)

// Formatter writes "time [level] file:line func message key=value...".
type Formatter struct{}

func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b strings.Builder
	b.WriteString(entry.Time.Format(time.DateTime))
	fmt.Fprintf(&b, " [%s]", strings.ToLower(entry.Level.String()))
	if entry.Caller != nil {
		file := filepath.Base(entry.Caller.File)
		fn := entry.Caller.Function
		if i := strings.LastIndex(fn, "."); i >= 0 {
			fn = fn[i+1:]
		}
		fmt.Fprintf(&b, " %s:%d %s", file, entry.Caller.Line, fn)
	}
	b.WriteString(" ")
	b.WriteString(entry.Message)
	for _, k := range sortedKeys(entry.Data) {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	b.WriteString("\n")
	return []byte(b.String()), nil
}

func sortedKeys(data logrus.Fields) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Options select where and how much to log.
type Options struct {
	Level string
	// Dir, when set, adds a daily rotated file next to stderr.
	Dir     string
	MaxAge  time.Duration
	Program string
}

// Setup configures the standard logrus logger and returns it.
func Setup(opts Options) (*logrus.Logger, error) {
	l := logrus.StandardLogger()
	level := logrus.InfoLevel
	if opts.Level != "" {
		lv, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level = lv
	}
	l.SetLevel(level)
	l.SetReportCaller(true)
	l.SetFormatter(&Formatter{})

	var out io.Writer = os.Stderr
	if opts.Dir != "" {
		w, err := rotating(opts)
		if err != nil {
			return nil, err
		}
		out = io.MultiWriter(os.Stderr, w)
	}
	l.SetOutput(out)
	return l, nil
}

func rotating(opts Options) (*rotatelogs.RotateLogs, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("log dir: %w", err)
	}
	program := opts.Program
	if program == "" {
		program = filepath.Base(os.Args[0])
	}
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	w, err := rotatelogs.New(
		filepath.Join(opts.Dir, program+"-%Y%m%d.log"),
		rotatelogs.WithMaxAge(maxAge),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("log writer: %w", err)
	}
	return w, nil
}

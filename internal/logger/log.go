// Package logger configures the process-wide phuslu logger from the
// [logging] section and hands out per-component loggers.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/phuslu/log"

	"hsa_tracer/internal/config"
)

const asyncChannelSize = 4096

var levels = map[string]log.Level{
	"trace":   log.TraceLevel,
	"debug":   log.DebugLevel,
	"info":    log.InfoLevel,
	"warn":    log.WarnLevel,
	"warning": log.WarnLevel,
	"error":   log.ErrorLevel,
	"fatal":   log.FatalLevel,
}

// parseLogLevel returns the named level, info when the name is unknown.
func parseLogLevel(name string) log.Level {
	if l, ok := levels[strings.ToLower(strings.TrimSpace(name))]; ok {
		return l
	}
	return log.InfoLevel
}

func parseTimeLocation(name string) *time.Location {
	if name == "" || name == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

func timeFormat(name string) string {
	switch name {
	case "Unix":
		return log.TimeFormatUnix
	case "UnixMs":
		return log.TimeFormatUnixMs
	}
	return name
}

func maybeAsync(w log.Writer, async bool) log.Writer {
	if !async {
		return w
	}
	return &log.AsyncWriter{ChannelSize: asyncChannelSize, Writer: w}
}

func consoleWriter(c *config.ConsoleConfig) log.Writer {
	var dst io.Writer = os.Stderr
	if c.Writer == "stdout" {
		dst = os.Stdout
	}
	if c.FastIO {
		return maybeAsync(&log.IOWriter{Writer: dst}, c.Async)
	}

	cw := &log.ConsoleWriter{
		ColorOutput:    c.ColorOutput,
		QuoteString:    c.QuoteString,
		EndWithMessage: true,
		Writer:         dst,
	}
	if c.Format == "logfmt" {
		cw.Formatter = log.LogfmtFormatter{TimeField: "time"}.Formatter
	}
	return maybeAsync(cw, c.Async)
}

func fileWriter(c *config.FileConfig) (log.Writer, error) {
	if c.EnsureFolder {
		if err := os.MkdirAll(filepath.Dir(c.Filename), 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	return maybeAsync(&log.FileWriter{
		Filename:     c.Filename,
		FileMode:     0644,
		MaxSize:      c.MaxSize << 20,
		MaxBackups:   c.MaxBackups,
		TimeFormat:   timeFormat(c.TimeFormat),
		LocalTime:    c.LocalTime,
		HostName:     c.HostName,
		ProcessID:    c.ProcessID,
		EnsureFolder: c.EnsureFolder,
	}, c.Async), nil
}

func syslogWriter(c *config.SyslogConfig) log.Writer {
	return maybeAsync(&log.SyslogWriter{
		Network:  c.Network,
		Address:  c.Address,
		Hostname: c.Hostname,
		Tag:      c.Tag,
		Marker:   c.Marker,
	}, c.Async)
}

func outputWriter(out config.LogOutput) (log.Writer, error) {
	switch out.Type {
	case "console":
		if out.Console != nil {
			return consoleWriter(out.Console), nil
		}
	case "file":
		if out.File != nil {
			return fileWriter(out.File)
		}
	case "syslog":
		if out.Syslog != nil {
			return syslogWriter(out.Syslog), nil
		}
	default:
		return nil, fmt.Errorf("unknown log output type %q", out.Type)
	}
	return nil, fmt.Errorf("%s log output has no [%s] settings", out.Type, out.Type)
}

// buildWriter combines the enabled outputs. With none enabled the log goes
// to stderr as JSON.
func buildWriter(outputs []config.LogOutput) (log.Writer, error) {
	var writers log.MultiEntryWriter
	for _, out := range outputs {
		if !out.Enabled {
			continue
		}
		w, err := outputWriter(out)
		if err != nil {
			return nil, err
		}
		writers = append(writers, w)
	}

	switch len(writers) {
	case 0:
		return &log.IOWriter{Writer: os.Stderr}, nil
	case 1:
		return writers[0], nil
	default:
		return &writers, nil
	}
}

// ConfigureLogging replaces log.DefaultLogger. Component loggers created
// before the call keep the old writer.
func ConfigureLogging(cfg config.LoggingConfig) error {
	w, err := buildWriter(cfg.Outputs)
	if err != nil {
		return err
	}

	log.DefaultLogger = log.Logger{
		Level:        parseLogLevel(cfg.Defaults.Level),
		Caller:       cfg.Defaults.Caller,
		TimeField:    cfg.Defaults.TimeField,
		TimeFormat:   timeFormat(cfg.Defaults.TimeFormat),
		TimeLocation: parseTimeLocation(cfg.Defaults.TimeLocation),
		Writer:       w,
	}
	setSampleInterval(cfg.SampleInterval.Duration)

	log.Debug().
		Str("level", cfg.Defaults.Level).
		Dur("sample_interval", cfg.SampleInterval.Duration).
		Msg("Logging configured")
	return nil
}

// NewLoggerWithContext returns a copy of the default logger tagged with
// component. Caller reporting is off for component loggers.
func NewLoggerWithContext(component string) log.Logger {
	l := log.DefaultLogger
	l.Caller = 0
	l.Context = log.NewContext(l.Context).Str("component", component).Value()
	return l
}

// NewSampledLoggerCtx is NewLoggerWithContext for runtime callback paths,
// where a repeating failure would otherwise flood the log.
func NewSampledLoggerCtx(component string) *SampledLogger {
	l := NewLoggerWithContext(component)
	return newSampledLogger(&l)
}

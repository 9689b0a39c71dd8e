// Package logger builds the application's zap logger: JSON lines to a
// rotated file plus a console core.
package logger

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	// File is the log file path. Empty disables file logging.
	File string
	// Console also writes to stdout, or to ConsoleWriter when set.
	Console       bool
	ConsoleWriter io.Writer
	// JSONConsole uses the JSON encoder on the console instead of the
	// human-readable one.
	JSONConsole bool
	// Debug lowers the file level to debug.
	Debug bool

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func fileEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.MessageKey = "message"
	cfg.LevelKey = "level"
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

// New builds a logger from opts. The returned close function syncs the
// logger and closes the rotated file.
func New(opts Options) (*zap.Logger, func() error, error) {
	var cores []zapcore.Core
	var rotator *lumberjack.Logger

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, nil, err
		}
		rotator = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 10),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 30),
			Compress:   true,
		}

		level := zap.InfoLevel
		if opts.Debug {
			level = zap.DebugLevel
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(fileEncoderConfig()),
			zapcore.AddSync(rotator),
			level,
		))
	}

	if opts.Console {
		var enc zapcore.Encoder
		if opts.JSONConsole {
			enc = zapcore.NewJSONEncoder(fileEncoderConfig())
		} else {
			enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		}
		var out zapcore.WriteSyncer = zapcore.Lock(os.Stdout)
		if opts.ConsoleWriter != nil {
			out = zapcore.AddSync(opts.ConsoleWriter)
		}
		cores = append(cores, zapcore.NewCore(enc, out, zap.DebugLevel))
	}

	if len(cores) == 0 {
		return zap.NewNop(), func() error { return nil }, nil
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	closeFn := func() error {
		_ = l.Sync()
		if rotator != nil {
			return rotator.Close()
		}
		return nil
	}
	return l, closeFn, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Entry is one parsed line of the JSON log file.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Logger    string         `json:"logger,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Recent returns up to limit entries from the log file, newest first,
// optionally filtered by level ("INFO", "WARN", ...). A missing file yields
// no entries.
func Recent(path, level string, limit int) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		var raw map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &raw); err != nil {
			continue
		}
		e := Entry{Fields: make(map[string]any)}
		for k, v := range raw {
			s, _ := v.(string)
			switch k {
			case "timestamp":
				e.Timestamp = s
			case "level":
				e.Level = s
			case "logger":
				e.Logger = s
			case "message":
				e.Message = s
			case "caller":
			default:
				e.Fields[k] = v
			}
		}
		if level != "" && e.Level != level {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

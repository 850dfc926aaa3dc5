package core

import (
	"fmt"
	"log"
)

// Logger is any service that can log messages.
// args are usually an error, a map[string]interface{} of extra data, and/or the acting profile.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// StdLogger is a Logger that only writes to a std *log.Logger. Used in tests and CLIs.
type StdLogger struct {
	Std *log.Logger
}

var _ Logger = (*StdLogger)(nil)

func (l StdLogger) print(level, msg string, args []interface{}) {
	if l.Std == nil {
		return
	}
	line := level + " " + msg
	for _, arg := range args {
		line += fmt.Sprintf(" | %+v", arg)
	}
	l.Std.Println(line)
}

func (l StdLogger) Debug(msg string, args ...interface{}) { l.print("DEBUG", msg, args) }
func (l StdLogger) Info(msg string, args ...interface{})  { l.print("INFO", msg, args) }
func (l StdLogger) Warn(msg string, args ...interface{})  { l.print("WARN", msg, args) }
func (l StdLogger) Error(msg string, args ...interface{}) { l.print("ERROR", msg, args) }

func (l StdLogger) Fatal(msg string, args ...interface{}) {
	if l.Std == nil {
		return
	}
	l.print("FATAL", msg, args)
	l.Std.Fatal(msg)
}

// NopLogger discards everything.
var NopLogger Logger = StdLogger{}

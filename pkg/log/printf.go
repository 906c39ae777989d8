package log

import (
	"fmt"
	"strings"
)

// PrintfLogger adapts a Logger to the Println/Printf interface expected by
// the paho MQTT clients.
type PrintfLogger struct {
	logger Logger
	error  bool
}

// NewPrintfLogger returns a PrintfLogger that writes at debug level, or at
// error level when asError is set.
func NewPrintfLogger(logger Logger, asError bool) *PrintfLogger {
	return &PrintfLogger{logger: logger, error: asError}
}

func (p *PrintfLogger) Println(v ...any) {
	p.write(fmt.Sprintln(v...))
}

func (p *PrintfLogger) Printf(format string, v ...any) {
	p.write(fmt.Sprintf(format, v...))
}

func (p *PrintfLogger) write(msg string) {
	msg = strings.TrimSpace(msg)
	if p.error {
		p.logger.Error(nil, msg)
		return
	}
	p.logger.Debug(msg)
}

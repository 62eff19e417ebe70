package logger

import (
	"fmt"

	waLog "go.mau.fi/whatsmeow/util/log"
)

// waLogger routes whatsmeow's printf-style logs into a Logger
type waLogger struct {
	base   Logger
	log    Logger
	module string
}

// ForWhatsmeow wraps l so it can be handed to whatsmeow and its sqlstore
func ForWhatsmeow(l Logger, module string) waLog.Logger {
	return &waLogger{base: l, log: l.WithField("module", module), module: module}
}

func (w *waLogger) Debugf(msg string, args ...interface{}) {
	w.log.Debug(fmt.Sprintf(msg, args...))
}

func (w *waLogger) Infof(msg string, args ...interface{}) {
	w.log.Info(fmt.Sprintf(msg, args...))
}

func (w *waLogger) Warnf(msg string, args ...interface{}) {
	w.log.Warn(fmt.Sprintf(msg, args...))
}

func (w *waLogger) Errorf(msg string, args ...interface{}) {
	w.log.Error(fmt.Sprintf(msg, args...))
}

func (w *waLogger) Sub(module string) waLog.Logger {
	return ForWhatsmeow(w.base, w.module+"/"+module)
}

// logging.go - logrus configuration and audit helpers
//
// Every dashboard action that should appear in the activity log is written
// through Audit(...). Audit entries go through their own logger, pinned at
// TraceLevel, so LOG_LEVEL only filters the console copy. The AuditHook
// turns those entries into Log rows and pushes them to the live terminal hub.

package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Field names shared between writers and the hook.
const (
	FieldAudit  = "audit"
	FieldUserID = "user_id"
)

// auditLogger carries the audit hook; its own output is discarded and
// entries reach the console through forwardHook.
var auditLogger = newAuditLogger()

func newAuditLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.TraceLevel)
	l.ReplaceHooks(hooksFor(nil))
	return l
}

// Setup configures the standard logrus logger.
func Setup(level, format string) {
	logger := logrus.StandardLogger()
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// Audit returns an entry that is persisted to the activity log when written.
// userID 0 means the action was done by the system.
func Audit(userID uint) *logrus.Entry {
	fields := logrus.Fields{FieldAudit: true}
	if userID != 0 {
		fields[FieldUserID] = userID
	}
	return auditLogger.WithFields(fields)
}

// forwardHook copies audit entries to the standard logger, which applies
// the configured level and formatter.
type forwardHook struct{}

func (forwardHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (forwardHook) Fire(e *logrus.Entry) error {
	std := logrus.StandardLogger()
	if e.Level <= logrus.FatalLevel || !std.IsLevelEnabled(e.Level) {
		return nil
	}
	std.WithFields(e.Data).WithTime(e.Time).Log(e.Level, e.Message)
	return nil
}

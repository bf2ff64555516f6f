package audit

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
)

// SDID constants for structured data IDs (RFC5424).
// 32473 is the documentation PEN reserved by RFC 5612.
const (
	PEN         = 32473
	SDIDAuth    = "auth@32473"
	SDIDSubject = "subject@32473"
	SDIDAction  = "action@32473"
	SDIDTenant  = "tenant@32473"
)

// AppName is the APP-NAME field of every audit line
const AppName = "okapictl"

// Syslog facility constants
const (
	FacilityAuth     = 4  // LOG_AUTH - security/authorization messages
	FacilityAuthPriv = 10 // LOG_AUTHPRIV - security/authorization messages (private)
)

// Severity levels matching syslog (RFC5424)
type Severity int

const (
	SeverityEmergency Severity = iota // 0
	SeverityAlert                     // 1
	SeverityCritical                  // 2
	SeverityError                     // 3
	SeverityWarning                   // 4
	SeverityNotice                    // 5
	SeverityInfo                      // 6
	SeverityDebug                     // 7
)

// Event represents an audit event
type Event interface {
	MessageID() string
	Message() string
	Severity() Severity
	Facility() int
	StructuredData() map[string]map[string]string
}

// Logger writes audit events in RFC5424 syslog format
type Logger struct {
	writer   io.Writer
	hostname string
	appName  string
	pid      int
	now      func() time.Time
}

// NewLogger creates a new audit logger writing to w
func NewLogger(w io.Writer) *Logger {
	hostname, _ := os.Hostname()
	return &Logger{
		writer:   w,
		hostname: hostname,
		appName:  AppName,
		pid:      os.Getpid(),
		now:      time.Now,
	}
}

// SetWriter sets the output writer for the logger
func (l *Logger) SetWriter(w io.Writer) {
	l.writer = w
}

// Log writes an audit event in RFC5424 syslog format
// Format: <PRI>VERSION TIMESTAMP HOSTNAME APP-NAME PROCID MSGID SD MSG
func (l *Logger) Log(event Event) {
	pri := event.Facility()*8 + int(event.Severity())
	timestamp := l.now().UTC().Format("2006-01-02T15:04:05.000Z")

	sd := formatStructuredData(event.StructuredData())
	if sd == "" {
		sd = "-"
	}

	hostname := l.hostname
	if hostname == "" {
		hostname = "-"
	}

	logLine := fmt.Sprintf("<%d>1 %s %s %s %d %s %s %s\n",
		pri,
		timestamp,
		hostname,
		l.appName,
		l.pid,
		event.MessageID(),
		sd,
		event.Message(),
	)

	_, _ = l.writer.Write([]byte(logLine))
}

// formatStructuredData formats the structured data according to RFC5424.
// Elements and params are sorted so output is stable.
// Format: [sdid param1="value1" param2="value2"][sdid2 ...]
func formatStructuredData(sd map[string]map[string]string) string {
	if len(sd) == 0 {
		return ""
	}

	var parts []string
	for _, sdid := range sortedIDs(sd) {
		params := sd[sdid]
		keys := make([]string, 0, len(params))
		for key := range params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		paramParts := []string{sdid}
		for _, key := range keys {
			paramParts = append(paramParts, fmt.Sprintf("%s=%s", key, escapeSDValue(params[key])))
		}
		parts = append(parts, "["+strings.Join(paramParts, " ")+"]")
	}
	return strings.Join(parts, "")
}

func sortedIDs(sd map[string]map[string]string) []string {
	ids := make([]string, 0, len(sd))
	for sdid := range sd {
		ids = append(ids, sdid)
	}
	sort.Strings(ids)
	return ids
}

// escapeSDValue escapes special characters in structured data values per RFC5424
func escapeSDValue(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	value = strings.ReplaceAll(value, "]", "\\]")
	return "\"" + value + "\""
}

// Saver persists audit events
type Saver interface {
	Save(event Event) error
}

// Recorder fans events out to a Logger and an optional Saver
type Recorder struct {
	logger  *Logger
	saver   Saver
	enabled bool
	errs    io.Writer
}

// NewRecorder creates a recorder. saver may be nil.
func NewRecorder(logger *Logger, saver Saver) *Recorder {
	return &Recorder{
		logger:  logger,
		saver:   saver,
		enabled: EnabledFromEnv(),
		errs:    os.Stderr,
	}
}

// SetEnabled allows programmatic control of audit logging
func (r *Recorder) SetEnabled(enabled bool) {
	r.enabled = enabled
}

// Log writes an event to the logger and saver, if enabled. Persistence
// failures are reported but never interrupt the run.
func (r *Recorder) Log(event Event) {
	if r == nil || !r.enabled {
		return
	}
	if r.logger != nil {
		r.logger.Log(event)
	}
	if r.saver != nil {
		if err := r.saver.Save(event); err != nil {
			fmt.Fprintf(r.errs, "audit: failed to save event: %v\n", err)
		}
	}
}

// EnabledFromEnv reads OKAPICTL_AUDIT_ENABLED; auditing is on unless it is
// set to false, 0 or no.
func EnabledFromEnv() bool {
	env := strings.ToLower(os.Getenv("OKAPICTL_AUDIT_ENABLED"))
	return env != "false" && env != "0" && env != "no"
}

// Audit logging outputs Datalog-queryable facts for every UI mutation and
// command outcome, so a session can be replayed or queried after the fact.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// AuditEventType defines the type of audit event (maps to a predicate)
type AuditEventType string

const (
	// UI mutations -> ui_mutation/6
	AuditActionPerform  AuditEventType = "action_perform"
	AuditAttributeWrite AuditEventType = "attribute_write"

	// Command outcomes -> command_event/6
	AuditCommandComplete AuditEventType = "command_complete"
	AuditCommandError    AuditEventType = "command_error"

	// Batch outcomes -> batch_event/5
	AuditBatchComplete AuditEventType = "batch_complete"

	// Traversal aborted by its budget -> traversal_timeout/4
	AuditTraversalTimeout AuditEventType = "traversal_timeout"
)

// AuditEvent represents a structured audit log entry.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"`
	EventType  AuditEventType         `json:"event"`
	RequestID  string                 `json:"req"`
	Target     string                 `json:"target"`
	Action     string                 `json:"action"`
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"dur_ms"`
	Error      string                 `json:"error,omitempty"`
	Message    string                 `json:"msg"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
	Fact       string                 `json:"fact"`
}

var (
	auditFile   *os.File
	auditMu     sync.Mutex
	auditLogger *AuditLogger
)

// AuditLogger handles structured audit logging with fact generation
type AuditLogger struct {
	requestID string
}

// InitAudit opens the audit log next to the category logs.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil
	}

	configMu.RLock()
	dir := logsDir
	configMu.RUnlock()

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(dir, fmt.Sprintf("%s_audit.log", date))

	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file
	auditFile.WriteString(fmt.Sprintf("# Audit log started at %s\n", time.Now().Format(time.RFC3339)))
	return nil
}

// CloseAudit closes the audit log file
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns the global audit logger
func Audit() *AuditLogger {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditLogger == nil {
		auditLogger = &AuditLogger{}
	}
	return auditLogger
}

// AuditWithRequest creates an audit logger scoped to a request id
func AuditWithRequest(requestID string) *AuditLogger {
	return &AuditLogger{requestID: requestID}
}

// Log writes an audit event
func (a *AuditLogger) Log(event AuditEvent) {
	if !IsDebugMode() {
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.RequestID == "" {
		event.RequestID = a.requestID
	}
	event.Fact = generateFact(event)

	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile == nil {
		return
	}
	if data, err := json.Marshal(event); err == nil {
		auditFile.WriteString(string(data) + "\n")
	}
}

// generateFact renders an event as a Datalog fact string
func generateFact(e AuditEvent) string {
	switch e.EventType {
	case AuditActionPerform, AuditAttributeWrite:
		return fmt.Sprintf("ui_mutation(%d, /%s, \"%s\", \"%s\", \"%s\", %v).",
			e.Timestamp, e.EventType, escapeString(e.RequestID), escapeString(e.Target), escapeString(e.Action), e.Success)

	case AuditCommandComplete, AuditCommandError:
		return fmt.Sprintf("command_event(%d, /%s, \"%s\", \"%s\", %v, %d).",
			e.Timestamp, e.EventType, escapeString(e.RequestID), escapeString(e.Action), e.Success, e.DurationMs)

	case AuditBatchComplete:
		items := 0
		if n, ok := e.Fields["items"].(int); ok {
			items = n
		}
		return fmt.Sprintf("batch_event(%d, \"%s\", %d, %v, %d).",
			e.Timestamp, escapeString(e.RequestID), items, e.Success, e.DurationMs)

	case AuditTraversalTimeout:
		return fmt.Sprintf("traversal_timeout(%d, \"%s\", \"%s\", %d).",
			e.Timestamp, escapeString(e.RequestID), escapeString(e.Target), e.DurationMs)

	default:
		return fmt.Sprintf("audit_event(%d, /%s, \"%s\", %v).",
			e.Timestamp, e.EventType, escapeString(e.Message), e.Success)
	}
}

func escapeString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/10)

	for _, c := range s {
		switch c {
		case '"':
			b.WriteString("\\\"")
		case '\\':
			b.WriteString("\\\\")
		case '\n':
			b.WriteString("\\n")
		case '\r':
			b.WriteString("\\r")
		case '\t':
			b.WriteString("\\t")
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// ActionPerform logs an action executed against a UI node
func (a *AuditLogger) ActionPerform(target, action string, success bool, errMsg string) {
	a.Log(AuditEvent{
		EventType: AuditActionPerform,
		Target:    target,
		Action:    action,
		Success:   success,
		Error:     errMsg,
		Message:   fmt.Sprintf("Action %s on %s (success=%v)", action, target, success),
	})
}

// AttributeWrite logs an attribute mutation
func (a *AuditLogger) AttributeWrite(target, attribute string, success bool, errMsg string) {
	a.Log(AuditEvent{
		EventType: AuditAttributeWrite,
		Target:    target,
		Action:    attribute,
		Success:   success,
		Error:     errMsg,
		Message:   fmt.Sprintf("Write %s on %s (success=%v)", attribute, target, success),
	})
}

// CommandOutcome logs the final outcome of one command
func (a *AuditLogger) CommandOutcome(kind string, durationMs int64, success bool, errMsg string) {
	event := AuditCommandComplete
	if !success {
		event = AuditCommandError
	}
	a.Log(AuditEvent{
		EventType:  event,
		Action:     kind,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
		Message:    fmt.Sprintf("Command %s finished (success=%v, %dms)", kind, success, durationMs),
	})
}

// BatchOutcome logs the aggregate result of a batch
func (a *AuditLogger) BatchOutcome(items int, durationMs int64, success bool) {
	a.Log(AuditEvent{
		EventType:  AuditBatchComplete,
		Success:    success,
		DurationMs: durationMs,
		Fields:     map[string]interface{}{"items": items},
		Message:    fmt.Sprintf("Batch of %d finished (success=%v)", items, success),
	})
}

// TraversalTimeout logs a walk aborted by its budget
func (a *AuditLogger) TraversalTimeout(start string, durationMs int64) {
	a.Log(AuditEvent{
		EventType:  AuditTraversalTimeout,
		Target:     start,
		DurationMs: durationMs,
		Message:    fmt.Sprintf("Traversal from %s timed out after %dms", start, durationMs),
	})
}

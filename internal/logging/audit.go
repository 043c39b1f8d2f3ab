package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType names a session lifecycle event.
type AuditEventType string

const (
	AuditLogin        AuditEventType = "login"
	AuditLoginFailed  AuditEventType = "login_failed"
	AuditRegister     AuditEventType = "register"
	AuditRegisterFail AuditEventType = "register_failed"
	AuditLogout       AuditEventType = "logout"
	AuditRestore      AuditEventType = "restore"
	AuditUserRefresh  AuditEventType = "user_refresh"
)

// AuditEvent is one line of the audit log. Credentials never appear in it.
type AuditEvent struct {
	Timestamp int64          `json:"ts"` // Unix milliseconds
	Event     AuditEventType `json:"event"`
	User      string         `json:"user,omitempty"`
	Success   bool           `json:"success"`
	Status    int            `json:"status,omitempty"`
	Error     string         `json:"error,omitempty"`
}

var (
	auditFile *os.File
	auditMu   sync.Mutex
)

// initAudit opens the day's audit file. Callers hold no locks.
func initAudit(dir string) error {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_audit.jsonl", time.Now().Format("2006-01-02")))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file
	return nil
}

func closeAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit appends an event to the audit log. It is a no-op outside debug mode.
func Audit(e AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile == nil {
		return
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	auditFile.Write(append(data, '\n'))
}

// AuditResult records the outcome of an operation on behalf of user.
func AuditResult(event AuditEventType, user string, err error) {
	e := AuditEvent{Event: event, User: user, Success: err == nil}
	if err != nil {
		e.Error = err.Error()
	}
	Audit(e)
}

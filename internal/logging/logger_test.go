package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func readLog(t *testing.T, dir string, cat Category) string {
	t.Helper()
	path := filepath.Join(dir, time.Now().Format("2006-01-02")+"_"+string(cat)+".log")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log %s: %v", path, err)
	}
	return string(data)
}

// TestAllCategoriesLog tests that all categories create log files when debug_mode is true
func TestAllCategoriesLog(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, Options{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	defer CloseAll()

	if !IsDebugMode() {
		t.Error("Expected debug mode to be enabled")
	}

	categories := []Category{CategoryBoot, CategorySession, CategoryAPI, CategoryStore}
	for _, cat := range categories {
		logger := Get(cat)
		logger.Info("info for %s", cat)
		logger.Debug("debug for %s", cat)
		logger.Warn("warn for %s", cat)
		logger.Error("error for %s", cat)
	}

	for _, cat := range categories {
		content := readLog(t, dir, cat)
		for _, want := range []string{"[INFO] info for", "[DEBUG] debug for", "[WARN] warn for", "[ERROR] error for"} {
			if !strings.Contains(content, want) {
				t.Errorf("category %s: log missing %q", cat, want)
			}
		}
	}
}

func TestDisabledDebugModeWritesNothing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	if err := Initialize(dir, Options{DebugMode: false}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	Session("should not appear")
	API("should not appear")

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("logs dir should not be created in production mode, stat err=%v", err)
	}
}

func TestCategoryFilter(t *testing.T) {
	dir := t.TempDir()
	err := Initialize(dir, Options{
		DebugMode:  true,
		Level:      "debug",
		Categories: map[string]bool{"api": false},
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	if IsCategoryEnabled(CategoryAPI) {
		t.Error("api category should be disabled")
	}
	if !IsCategoryEnabled(CategorySession) {
		t.Error("unlisted categories default to enabled")
	}

	APIDebug("hidden")
	path := filepath.Join(dir, time.Now().Format("2006-01-02")+"_api.log")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("disabled category must not create a log file")
	}
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, Options{DebugMode: true, Level: "warn"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	SessionDebug("debug line")
	Session("info line")
	SessionWarn("warn line")

	content := readLog(t, dir, CategorySession)
	if strings.Contains(content, "debug line") || strings.Contains(content, "info line") {
		t.Errorf("lines below warn should be filtered, got:\n%s", content)
	}
	if !strings.Contains(content, "warn line") {
		t.Errorf("warn line missing, got:\n%s", content)
	}
}

func TestJSONFormatRequestEntry(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, Options{DebugMode: true, Level: "debug", JSONFormat: true}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	Get(CategoryAPI).Request("req-1", "GET /api/v1/posts", map[string]interface{}{"status": 200})

	content := strings.TrimSpace(readLog(t, dir, CategoryAPI))
	lines := strings.Split(content, "\n")
	last := lines[len(lines)-1]
	// log.Logger prefixes the date/time before the JSON payload
	idx := strings.Index(last, "{")
	if idx < 0 {
		t.Fatalf("no JSON payload in %q", last)
	}

	var entry StructuredLogEntry
	if err := json.Unmarshal([]byte(last[idx:]), &entry); err != nil {
		t.Fatalf("invalid JSON entry: %v", err)
	}
	if entry.RequestID != "req-1" || entry.Category != "api" {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestInitializeRequiresDir(t *testing.T) {
	if err := Initialize("", Options{}); err == nil {
		t.Error("expected error for empty dir")
	}
}

func TestAuditTrail(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, Options{DebugMode: true}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	AuditResult(AuditLogin, "alice", nil)
	AuditResult(AuditLoginFailed, "bob", os.ErrPermission)
	CloseAll()

	// Events after close are dropped.
	AuditResult(AuditLogout, "alice", nil)

	data, err := os.ReadFile(filepath.Join(dir, time.Now().Format("2006-01-02")+"_audit.jsonl"))
	if err != nil {
		t.Fatalf("Failed to read audit log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 audit lines, got %d: %q", len(lines), data)
	}

	var first, second AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("bad audit line: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("bad audit line: %v", err)
	}
	if first.Event != AuditLogin || first.User != "alice" || !first.Success || first.Timestamp == 0 {
		t.Errorf("unexpected first event: %+v", first)
	}
	if second.Event != AuditLoginFailed || second.Success || second.Error == "" {
		t.Errorf("unexpected second event: %+v", second)
	}
}

func TestAuditDisabled(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	if err := Initialize(dir, Options{}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	AuditResult(AuditRestore, "alice", nil)
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("audit must not create files outside debug mode, stat err=%v", err)
	}
}

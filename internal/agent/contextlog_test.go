package agent

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func readAllRawLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan %s: %v", path, err)
	}
	return lines
}

func TestNormalizeExternalTextStripsStampAndAttachments(t *testing.T) {
	in := "[2026-07-30 10:15:00+00:00] hello there <slack_attachments>[{\"id\":1}]</slack_attachments>"
	got := NormalizeExternalText(in)
	if got != "hello there" {
		t.Fatalf("expected normalized text %q, got %q", "hello there", got)
	}
}

func TestContextLogAppendAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	log, err := NewContextLog(path, "session-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer log.Close()

	if err := log.Append("user", "hi"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := log.Append("assistant", "hello"); err != nil {
		t.Fatalf("append: %v", err)
	}

	entries, err := log.LoadContext()
	if err != nil {
		t.Fatalf("load context: %v", err)
	}
	// header + 2 messages
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d: %+v", len(entries), entries)
	}
	if entries[0].Type != ContextEntryHeader {
		t.Errorf("expected first entry to be the session header, got %s", entries[0].Type)
	}
}

func TestContextLogSyncFromExternalDedupesAndOrders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	log, err := NewContextLog(path, "session-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer log.Close()

	anchor := time.Now()
	if err := log.Append("user", "already seen"); err != nil {
		t.Fatalf("append: %v", err)
	}

	external := []ExternalEntry{
		{Text: "[2026-07-30 09:00:00+00:00] already seen", Ts: anchor.Add(-2 * time.Minute)},
		{Text: "[2026-07-30 09:01:00+00:00] new message", Ts: anchor.Add(-1 * time.Minute)},
		{Text: "[2026-07-30 09:02:00+00:00] too late", Ts: anchor.Add(1 * time.Minute)},
	}
	if err := log.SyncFromExternal(external, anchor); err != nil {
		t.Fatalf("sync: %v", err)
	}

	entries, err := log.LoadContext()
	if err != nil {
		t.Fatalf("load context: %v", err)
	}

	var contents []string
	for _, e := range entries {
		if e.Type == ContextEntryMessage {
			contents = append(contents, e.Content)
		}
	}
	if len(contents) != 2 {
		t.Fatalf("expected dedup to drop the repeat and anchor to drop the future entry, got %v", contents)
	}
	if contents[0] != "already seen" || contents[1] != "[2026-07-30 09:01:00+00:00] new message" {
		t.Errorf("unexpected message set: %v", contents)
	}
}

func TestContextLogCompactPreservesAppendOnlyHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	log, err := NewContextLog(path, "session-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer log.Close()

	if err := log.Append("user", "message one"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := log.Compact("summary of earlier turns"); err != nil {
		t.Fatalf("compact: %v", err)
	}
	if err := log.Append("user", "message two"); err != nil {
		t.Fatalf("append: %v", err)
	}

	entries, err := log.LoadContext()
	if err != nil {
		t.Fatalf("load context: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected summary + trailing message, got %d: %+v", len(entries), entries)
	}
	if entries[0].Type != ContextEntrySummary {
		t.Errorf("expected first loaded entry to be the summary, got %s", entries[0].Type)
	}
	if entries[1].Content != "message two" {
		t.Errorf("expected trailing message after the summary, got %q", entries[1].Content)
	}

	raw := readAllRawLines(t, path)
	if len(raw) != 4 {
		t.Fatalf("compaction must not delete prior lines: expected 4 raw lines, got %d", len(raw))
	}
}

func TestContextLogReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	log, err := NewContextLog(path, "session-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer log.Close()

	if err := log.Append("user", "pre-reset"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := log.Reset("session-2"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	entries, err := log.LoadContext()
	if err != nil {
		t.Fatalf("load context: %v", err)
	}
	if len(entries) != 1 || entries[0].Type != ContextEntryHeader || entries[0].SessionID != "session-2" {
		t.Fatalf("expected only a fresh session header after reset, got %+v", entries)
	}
}

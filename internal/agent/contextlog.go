package agent

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
)

// ContextEntryType distinguishes the kinds of lines a context log holds.
type ContextEntryType string

const (
	ContextEntryHeader  ContextEntryType = "session_header"
	ContextEntryMessage ContextEntryType = "message"
	ContextEntrySummary ContextEntryType = "summary"
)

// ContextEntry is a single append-only line in a context log: either
// the session header, a conversation message, or a compaction summary.
type ContextEntry struct {
	Type      ContextEntryType `json:"type"`
	Role      string           `json:"role,omitempty"`
	Content   string           `json:"content,omitempty"`
	Timestamp time.Time        `json:"ts"`
	SessionID string           `json:"session_id,omitempty"`
}

// ExternalEntry is one line from a caller-maintained human-readable log
// (channel chatter, backfills) that may need reconciling into the
// context log before a turn runs.
type ExternalEntry struct {
	Text string
	Ts   time.Time
}

var (
	timestampStampPattern  = regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}[+-]\d{2}:\d{2}\]\s*`)
	slackAttachmentPattern = regexp.MustCompile(`(?s)\s*<slack_attachments>.*</slack_attachments>\s*$`)
)

// NormalizeExternalText strips a leading "[YYYY-MM-DD HH:MM:SS±HH:MM]"
// stamp and a trailing <slack_attachments> block, so that the same
// semantic message read from two different logs compares equal.
func NormalizeExternalText(text string) string {
	text = timestampStampPattern.ReplaceAllString(text, "")
	text = slackAttachmentPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// ContextLog is a strictly append-only JSONL file that doubles as a
// conversation transcript and the LLM's context source.
type ContextLog struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	sessionID string
	seen      map[string]struct{}
}

// NewContextLog opens (creating if necessary) the JSONL file at path
// for append, replaying its existing entries to rebuild the dedup set
// used by SyncFromExternal.
func NewContextLog(path, sessionID string) (*ContextLog, error) {
	log := &ContextLog{
		path:      path,
		sessionID: sessionID,
		seen:      make(map[string]struct{}),
	}

	if err := log.loadExisting(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open context log: %w", err)
	}
	log.file = f

	if log.isEmpty() {
		if err := log.appendLocked(ContextEntry{
			Type:      ContextEntryHeader,
			Timestamp: time.Now(),
			SessionID: sessionID,
		}); err != nil {
			f.Close()
			return nil, err
		}
	}

	return log, nil
}

func (l *ContextLog) loadExisting() error {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read context log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		var entry ContextEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if entry.Type == ContextEntryMessage {
			l.seen[NormalizeExternalText(entry.Content)] = struct{}{}
		}
	}
	return scanner.Err()
}

func (l *ContextLog) isEmpty() bool {
	info, err := os.Stat(l.path)
	return err == nil && info.Size() == 0
}

// SyncFromExternal reconciles entries from a parallel external log:
// every entry whose timestamp is strictly before anchor and whose
// normalized text is not already present is appended as a user
// message, in the order given.
func (l *ContextLog) SyncFromExternal(entries []ExternalEntry, anchor time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, ext := range entries {
		if !ext.Ts.Before(anchor) {
			continue
		}
		normalized := NormalizeExternalText(ext.Text)
		if normalized == "" {
			continue
		}
		if _, ok := l.seen[normalized]; ok {
			continue
		}
		if err := l.appendLocked(ContextEntry{
			Type:      ContextEntryMessage,
			Role:      "user",
			Content:   ext.Text,
			Timestamp: ext.Ts,
			SessionID: l.sessionID,
		}); err != nil {
			return err
		}
		l.seen[normalized] = struct{}{}
	}
	return nil
}

// Append records a conversation message.
func (l *ContextLog) Append(role, content string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.appendLocked(ContextEntry{
		Type:      ContextEntryMessage,
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		SessionID: l.sessionID,
	}); err != nil {
		return err
	}
	l.seen[NormalizeExternalText(content)] = struct{}{}
	return nil
}

// Compact appends a summary entry describing the trailing history.
// It never rewrites earlier lines; the append-only invariant holds
// because compaction is itself just another entry. LoadContext uses
// the most recent summary entry (if any) as the starting point for
// replay instead of the full message history.
func (l *ContextLog) Compact(summary string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.appendLocked(ContextEntry{
		Type:      ContextEntrySummary,
		Content:   summary,
		Timestamp: time.Now(),
		SessionID: l.sessionID,
	})
}

// Reset truncates the log file and starts a new session header,
// clearing the in-memory dedup set.
func (l *ContextLog) Reset(sessionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}

	f, err := os.OpenFile(l.path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("reset context log: %w", err)
	}
	l.file = f
	l.sessionID = sessionID
	l.seen = make(map[string]struct{})

	return l.appendLocked(ContextEntry{
		Type:      ContextEntryHeader,
		Timestamp: time.Now(),
		SessionID: sessionID,
	})
}

// LoadContext reads back the entries an LLM turn should see: every
// entry after (and including) the most recent summary entry, or the
// full message history if the log was never compacted.
func (l *ContextLog) LoadContext() ([]ContextEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		if err := l.file.Sync(); err != nil {
			return nil, err
		}
	}

	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("read context log: %w", err)
	}
	defer f.Close()

	var all []ContextEntry
	lastSummary := -1
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		var entry ContextEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if entry.Type == ContextEntrySummary {
			lastSummary = len(all)
		}
		all = append(all, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if lastSummary >= 0 {
		return all[lastSummary:], nil
	}
	return all, nil
}

// Close releases the underlying file handle.
func (l *ContextLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func (l *ContextLog) appendLocked(entry ContextEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal context entry: %w", err)
	}
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write context entry: %w", err)
	}
	return l.file.Sync()
}

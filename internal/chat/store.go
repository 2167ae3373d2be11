// Package chat persists the per-chat transcript the drafting engine works
// against. The chat orchestrator proper (message routing, run triggering)
// is a collaborator; this package only owns the append-only JSONL
// transcript and the chat registry on disk.
package chat

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Message is one transcript entry. Role user/assistant entries carry chat
// text; system entries record pipeline milestones (checkpoint raised,
// decision submitted, run canceled) so a reopened chat can explain itself.
type Message struct {
	Type       string         `json:"type"`
	MessageID  string         `json:"message_id"`
	Role       string         `json:"role"`
	Text       string         `json:"text"`
	CreatedAt  string         `json:"created_at"`
	EventKind  string         `json:"event_kind,omitempty"`
	Checkpoint string         `json:"checkpoint,omitempty"`
	JobID      string         `json:"job_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Meta describes one chat in the registry.
type Meta struct {
	ChatID    string `json:"chat_id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

// Store keeps chats under baseDir, one directory per chat with a meta.json
// and a transcript.jsonl.
type Store struct {
	baseDir string
	mu      sync.Mutex
}

func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Create(title string) (Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta := Meta{
		ChatID:    uuid.NewString(),
		Title:     strings.TrimSpace(title),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if meta.Title == "" {
		meta.Title = "Untitled matter"
	}
	dir := filepath.Join(s.baseDir, meta.ChatID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Meta{}, err
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return Meta{}, err
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o600); err != nil {
		return Meta{}, err
	}
	return meta, nil
}

func (s *Store) List() ([]Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Meta{}, nil
		}
		return nil, err
	}
	var metas []Meta
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name(), "meta.json"))
		if err != nil {
			continue
		}
		var meta Meta
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt > metas[j].CreatedAt
	})
	return metas, nil
}

func (s *Store) Exists(chatID string) bool {
	_, err := os.Stat(filepath.Join(s.baseDir, chatID, "meta.json"))
	return err == nil
}

// Append writes one transcript entry. Missing IDs and timestamps are
// filled in so callers can hand over minimal records.
func (s *Store) Append(chatID string, entry Message) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.MessageID == "" {
		entry.MessageID = uuid.NewString()
	}
	if entry.CreatedAt == "" {
		entry.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if entry.Type == "" {
		switch entry.Role {
		case "assistant":
			entry.Type = "assistant_message"
		case "system":
			entry.Type = "system_event"
		default:
			entry.Type = "user_message"
		}
	}
	path := filepath.Join(s.baseDir, chatID, "transcript.jsonl")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Message{}, err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return Message{}, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return Message{}, err
	}
	defer file.Close()
	if _, err := file.Write(append(data, '\n')); err != nil {
		return Message{}, err
	}
	return entry, nil
}

// Transcript reads the full transcript, skipping lines that no longer
// decode. A corrupted line loses itself, not the chat.
func (s *Store) Transcript(chatID string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := filepath.Join(s.baseDir, chatID, "transcript.jsonl")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Message{}, nil
		}
		return nil, err
	}
	var entries []Message
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var entry Message
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

package chat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndList(t *testing.T) {
	store := NewStore(t.TempDir())
	first, err := store.Create("Silva v. Banco Azul")
	require.NoError(t, err)
	assert.NotEmpty(t, first.ChatID)
	assert.Equal(t, "Silva v. Banco Azul", first.Title)
	assert.True(t, store.Exists(first.ChatID))

	second, err := store.Create("   ")
	require.NoError(t, err)
	assert.Equal(t, "Untitled matter", second.Title)

	metas, err := store.List()
	require.NoError(t, err)
	assert.Len(t, metas, 2)
}

func TestListEmptyBaseDir(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing"))
	metas, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, metas)
}

func TestAppendFillsDefaults(t *testing.T) {
	store := NewStore(t.TempDir())
	meta, err := store.Create("test")
	require.NoError(t, err)

	entry, err := store.Append(meta.ChatID, Message{Role: "user", Text: "draft the complaint"})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.MessageID)
	assert.NotEmpty(t, entry.CreatedAt)
	assert.Equal(t, "user_message", entry.Type)

	entry, err = store.Append(meta.ChatID, Message{Role: "system", EventKind: "checkpoint_raised", Checkpoint: "outline"})
	require.NoError(t, err)
	assert.Equal(t, "system_event", entry.Type)

	transcript, err := store.Transcript(meta.ChatID)
	require.NoError(t, err)
	require.Len(t, transcript, 2)
	assert.Equal(t, "draft the complaint", transcript[0].Text)
	assert.Equal(t, "checkpoint_raised", transcript[1].EventKind)
}

func TestTranscriptSkipsCorruptedLines(t *testing.T) {
	base := t.TempDir()
	store := NewStore(base)
	meta, err := store.Create("test")
	require.NoError(t, err)
	_, err = store.Append(meta.ChatID, Message{Role: "user", Text: "kept"})
	require.NoError(t, err)

	path := filepath.Join(base, meta.ChatID, "transcript.jsonl")
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = file.WriteString("{broken json\n")
	require.NoError(t, err)
	require.NoError(t, file.Close())
	_, err = store.Append(meta.ChatID, Message{Role: "user", Text: "also kept"})
	require.NoError(t, err)

	transcript, err := store.Transcript(meta.ChatID)
	require.NoError(t, err)
	require.Len(t, transcript, 2)
	assert.Equal(t, "kept", transcript[0].Text)
	assert.Equal(t, "also kept", transcript[1].Text)
}

func TestTranscriptMissingChat(t *testing.T) {
	store := NewStore(t.TempDir())
	transcript, err := store.Transcript("nope")
	require.NoError(t, err)
	assert.Empty(t, transcript)
}

package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yctsai/baobei/internal/persona"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), "users.json"), zerolog.Nop())
}

func TestGetMissingReturnsZero(t *testing.T) {
	s := newTestStore(t)

	cfg := s.Get("12345")
	assert.False(t, cfg.Onboarded())
	assert.Empty(t, cfg.GirlfriendName)
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)

	want := UserConfig{
		GirlfriendType: persona.Mature,
		GirlfriendName: "小婷",
		UserName:       "Alex",
	}
	require.NoError(t, s.Put("12345", want))

	got := s.Get("12345")
	assert.Equal(t, want, got)
	assert.True(t, got.Onboarded())

	// other identities are untouched
	assert.False(t, s.Get("67890").Onboarded())
}

func TestPutOverwrites(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Put("u", UserConfig{GirlfriendType: persona.Highschool, GirlfriendName: "A", UserName: "B"}))
	require.NoError(t, s.Put("u", UserConfig{GirlfriendType: persona.Spicy, GirlfriendName: "C", UserName: "D"}))

	got := s.Get("u")
	assert.Equal(t, persona.Spicy, got.GirlfriendType)
	assert.Equal(t, "C", got.GirlfriendName)
}

func TestCorruptFileDegradesToZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := NewFileStore(path, zerolog.Nop())
	assert.False(t, s.Get("u").Onboarded())

	// a write replaces the corrupt file and subsequent reads work
	require.NoError(t, s.Put("u", UserConfig{GirlfriendType: persona.Highschool, GirlfriendName: "小美", UserName: "明"}))
	assert.True(t, s.Get("u").Onboarded())
}

func TestFileIsHumanReadableJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	s := NewFileStore(path, zerolog.Nop())
	require.NoError(t, s.Put("42", UserConfig{GirlfriendType: persona.Mature, GirlfriendName: "小婷", UserName: "Alex"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"girlfriend_type": "mature"`)
	assert.Contains(t, string(data), `"42"`)
}

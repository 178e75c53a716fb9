package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndRecent(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Append("u1", RoleUser, KindText, "嗨"))
	require.NoError(t, s.Append("u1", RoleAssistant, KindText, "嗨嗨！"))
	require.NoError(t, s.Append("u2", RoleUser, KindText, "someone else"))

	messages, err := s.Recent("u1", 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	// newest first
	assert.Equal(t, "嗨嗨！", messages[0].Content)
	assert.Equal(t, RoleAssistant, messages[0].Role)
	assert.Equal(t, "嗨", messages[1].Content)
	assert.NotEmpty(t, messages[0].ID)
	assert.NotEqual(t, messages[0].ID, messages[1].ID)
}

func TestRecentLimit(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append("u1", RoleUser, KindText, "msg"))
	}

	messages, err := s.Recent("u1", 3)
	require.NoError(t, err)
	assert.Len(t, messages, 3)

	// non-positive limit falls back to the default
	messages, err = s.Recent("u1", 0)
	require.NoError(t, err)
	assert.Len(t, messages, 5)
}

func TestRecentUnknownUser(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	messages, err := s.Recent("nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestReopenPersists(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Append("u1", RoleAssistant, KindImage, "一張自拍的提示詞"))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()

	messages, err := s.Recent("u1", 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, KindImage, messages[0].Kind)
}

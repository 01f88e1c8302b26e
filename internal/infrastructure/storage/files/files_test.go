package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndRead(t *testing.T) {
	s := New(t.TempDir())

	path, err := s.Save(100, "nota.pdf", []byte("conteudo"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), "100", "nota.pdf"), path)
	assert.True(t, s.Exists(100, "nota.pdf"))
	assert.False(t, s.Exists(100, "outro.pdf"))

	data, err := s.Read(100, "nota.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("conteudo"), data)
}

func TestListTicketDirsSkipsNonNumeric(t *testing.T) {
	s := New(t.TempDir())

	_, err := s.Save(100, "a.txt", []byte("x"))
	require.NoError(t, err)
	_, err = s.Save(200, "b.txt", []byte("y"))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), "old"), 0o755))

	ids, err := s.ListTicketDirs()
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{100, 200}, ids)
}

func TestListFilesMissingDir(t *testing.T) {
	s := New(t.TempDir())

	names, err := s.ListFiles(999)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestMoveToOld(t *testing.T) {
	s := New(t.TempDir())

	_, err := s.Save(100, "a.txt", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, s.MoveToOld(100))

	assert.False(t, s.Exists(100, "a.txt"))
	moved := filepath.Join(s.Root(), "old", "100", "a.txt")
	_, err = os.Stat(moved)
	assert.NoError(t, err)

	ids, err := s.ListTicketDirs()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

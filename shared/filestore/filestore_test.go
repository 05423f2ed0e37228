package filestore

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveOpen(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	n, err := store.Save("imports/a.csv", strings.NewReader("User,Stock\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)

	rc, err := store.Open("imports/a.csv")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "User,Stock\n", string(data))
}

func TestStore_OpenMissing(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open("missing.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_PathStaysInsideRoot(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(store.path("../../etc/passwd"), dir))
}

func TestStore_Remove(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("a.csv", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, store.Remove("a.csv"))
	require.NoError(t, store.Remove("a.csv"))

	_, err = store.Open("a.csv")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNew_EmptyDir(t *testing.T) {
	store, err := New("")
	require.Error(t, err)
	assert.Nil(t, store)
}

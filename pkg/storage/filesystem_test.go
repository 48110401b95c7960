package storage

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveOpenDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	name, err := store.SaveStream("cert.png", bytes.NewReader([]byte("png-bytes")))
	require.NoError(t, err)
	assert.Equal(t, "cert.png", name)

	f, err := store.Open(name)
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, store.Delete(name))
	_, err = os.Stat(store.Path(name))
	assert.True(t, os.IsNotExist(err))

	// deleting twice is not an error
	require.NoError(t, store.Delete(name))
}

func TestLocalStorageKeepsNamesInsideRoot(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("../../etc/passwd", []byte("x"))
	require.NoError(t, err)
	assert.FileExists(t, store.Path("etc/passwd"))
}

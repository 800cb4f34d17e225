package storagesvc

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cts/core"
)

func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	key, err := store.Save(ctx, "transcripts", core.Upload{
		Filename:    "My Transcript.PDF",
		ContentType: "application/pdf",
		Content:     strings.NewReader("%PDF-1.4 transcript"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "transcripts/"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "%PDF-1.4 transcript", string(content))

	_, err = store.Open(ctx, "../../etc/passwd")
	assert.Equal(t, ErrNotFound, err)

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Open(ctx, key)
	assert.True(t, core.IsNotFound(err))
	assert.Equal(t, ErrNotFound, store.Delete(ctx, key))
}

func TestNew(t *testing.T) {
	conf := &core.Config{}
	conf.Storage.Driver = "local"
	conf.Storage.LocalDir = t.TempDir()
	store, err := New(context.Background(), conf)
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, store)

	conf.Storage.Driver = "ftp"
	_, err = New(context.Background(), conf)
	assert.Error(t, err)
}

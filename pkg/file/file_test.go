package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceExt(t *testing.T) {
	assert.Equal(t, "/videos/ep01.srt", ReplaceExt("/videos/ep01.mp4", ".srt"))
	assert.Equal(t, "/videos/ep01.srt", ReplaceExt("/videos/ep01.mp4", "srt"))
	assert.Equal(t, "/videos/.hidden.srt", ReplaceExt("/videos/.hidden", "srt"))
	assert.Equal(t, "", ReplaceExt("", "srt"))
}

func TestStatRegular(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	info, err := StatRegular(path)
	require.NoError(t, err)
	assert.EqualValues(t, 4, info.Size())

	_, err = StatRegular(dir)
	assert.Error(t, err)

	_, err = StatRegular(filepath.Join(dir, "missing.mp4"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

package ledger

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/video-uploader/internal/errs"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l := New(filepath.Join(t.TempDir(), "state", "uploaded_video.json"))
	l.now = func() time.Time { return time.Unix(1716800500, 0) }
	return l
}

func entry(id int64, status Status) Entry {
	return Entry{
		ItemID:        id,
		CreatedAt:     1716800000,
		CategoryID:    1,
		SubCategoryID: 2,
		VideoURL:      "https://b.e/video/1.mp4",
		SubtitleURL:   "https://b.e/video/1.srt",
		Status:        status,
	}
}

func TestLedger_MissingAndEmptyFileAreEmpty(t *testing.T) {
	l := newTestLedger(t)

	entries, err := l.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, os.MkdirAll(filepath.Dir(l.Path()), 0o755))
	require.NoError(t, os.WriteFile(l.Path(), []byte("  \n"), 0o644))
	entries, err = l.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLedger_AppendReplaceRemove(t *testing.T) {
	l := newTestLedger(t)

	require.NoError(t, l.Append(entry(1, StatusCatalogued)))
	require.NoError(t, l.Append(entry(2, StatusCatalogFailed)))
	require.NoError(t, l.Append(entry(3, StatusUploadFailed)))

	err := l.Append(entry(2, StatusCatalogued))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindValidation))

	fixed := entry(2, StatusCatalogued)
	require.NoError(t, l.Replace(2, fixed))

	got, err := l.Get(2)
	require.NoError(t, err)
	assert.Equal(t, StatusCatalogued, got.Status)
	assert.NotEmpty(t, got.AttemptID)
	assert.EqualValues(t, 1716800500, got.UpdatedAt)

	require.NoError(t, l.Remove(1))
	require.NoError(t, l.Remove(1))

	entries, err := l.LoadAll()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[0].ItemID)
	assert.Equal(t, int64(3), entries[1].ItemID)

	err = l.Replace(99, entry(99, StatusCatalogued))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindNotFound))

	_, err = l.Get(1)
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestLedger_ReadsLegacyFile(t *testing.T) {
	l := newTestLedger(t)
	legacy := `[
  {
    "id": null,
    "item_id": 1622300000555,
    "create_time": 1622300000,
    "item_type": 3,
    "sub_category": 7,
    "video_url": "https://b.e/video/1622300000555.mp4",
    "sub_url": "https://b.e/video/1622300000555.srt",
    "upload_status": 2
  }
]`
	require.NoError(t, os.MkdirAll(filepath.Dir(l.Path()), 0o755))
	require.NoError(t, os.WriteFile(l.Path(), []byte(legacy), 0o644))

	entries, err := l.LoadAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1622300000555), entries[0].ItemID)
	assert.Equal(t, StatusCatalogFailed, entries[0].Status)
	assert.True(t, entries[0].Status.Retryable())
}

func TestLedger_CorruptFile(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(l.Path()), 0o755))
	require.NoError(t, os.WriteFile(l.Path(), []byte("{not json"), 0o644))

	_, err := l.LoadAll()
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindPersistence))

	err = l.Append(entry(1, StatusCatalogued))
	require.Error(t, err)

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(data))
}

func TestLedger_ConcurrentAppends(t *testing.T) {
	l := newTestLedger(t)

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			assert.NoError(t, l.Append(entry(id, StatusCatalogued)))
		}(int64(i))
	}
	wg.Wait()

	entries, err := l.LoadAll()
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "catalog_failed", StatusCatalogFailed.String())
	assert.Equal(t, "status(9)", Status(9).String())
	assert.True(t, StatusUploadFailed.Discardable())
	assert.False(t, StatusCatalogued.Discardable())
	assert.False(t, StatusUploadFailed.Retryable())
}

package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/stretchr/testify/assert"

	"github.com/MimeLyc/video-uploader/internal/ledger"
)

func TestWriteHistoryTable(t *testing.T) {
	now := time.Unix(1700003600, 0)
	entries := []ledger.Entry{
		{ItemID: 1700000000123, CreatedAt: 1700000000, CategoryID: 1, SubCategoryID: 10, Status: ledger.StatusCatalogued},
		{ItemID: 1700000000456, CreatedAt: 1700000000, CategoryID: 2, SubCategoryID: 20, Status: ledger.StatusCatalogFailed,
			Error: "[Persistence] write cue | context: cue=3, item_id=1700000000456"},
	}

	var buf bytes.Buffer
	writeHistoryTable(&buf, entries, now)
	out := buf.String()

	assert.Contains(t, out, "ITEM")
	assert.Contains(t, out, "1700000000123")
	assert.Contains(t, out, "catalog_failed")
	assert.Contains(t, out, "2/20")
	assert.Contains(t, out, "1 hour ago")
}

func TestRenderHistoryTable_ColorsStatus(t *testing.T) {
	now := time.Unix(1700003600, 0)
	entries := []ledger.Entry{
		{ItemID: 11, CreatedAt: 1700000000, Status: ledger.StatusCatalogued},
		{ItemID: 12, CreatedAt: 1700000000, Status: ledger.StatusUploadFailed, Error: "put object: timeout"},
	}

	plain := renderHistoryTable(entries, now, false)
	assert.NotContains(t, plain, text.EscapeStart)
	assert.Contains(t, plain, "upload_failed")

	colored := renderHistoryTable(entries, now, true)
	assert.Contains(t, colored, text.Colors{text.FgGreen}.EscapeSeq()+"catalogued")
	assert.Contains(t, colored, text.Colors{text.FgRed, text.Bold}.EscapeSeq()+"upload_failed")
	assert.Contains(t, text.StripEscape(colored), "put object: timeout")
}

func TestWriteHistoryTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	writeHistoryTable(&buf, nil, time.Now())
	assert.Equal(t, "Ledger is empty\n", buf.String())
}

func TestDiscardableFilter(t *testing.T) {
	got := discardable([]ledger.Entry{
		{ItemID: 1, Status: ledger.StatusCatalogued},
		{ItemID: 2, Status: ledger.StatusCatalogFailed},
		{ItemID: 3, Status: ledger.StatusUploadFailed},
	})
	assert.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ItemID)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	long := strings.Repeat("字", 20)
	assert.Equal(t, strings.Repeat("字", 9)+"…", truncate(long, 10))
}

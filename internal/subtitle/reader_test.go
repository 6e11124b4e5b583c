package subtitle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/video-uploader/internal/errs"
)

const twoCues = "1\n00:00:01,000 --> 00:00:02,500\nHello there.\n你好。\n\n2\n00:00:03,000 --> 00:00:04,000\nGood morning.\n早上好。\n"

func TestExtract_TwoCues(t *testing.T) {
	cues, err := Extract([]byte(twoCues))
	require.NoError(t, err)
	require.Len(t, cues, 2)

	assert.Equal(t, Cue{
		Sequence: 1,
		Begin:    time.Second,
		End:      2500 * time.Millisecond,
		Source:   "Hello there.",
		Target:   "你好。",
	}, cues[0])
	assert.Equal(t, 2, cues[1].Sequence)
	assert.Equal(t, "早上好。", cues[1].Target)
}

func TestExtract_RenumbersRegardlessOfSourceIndices(t *testing.T) {
	data := "7\n00:00:01,000 --> 00:00:02,000\na\nb\n\n" +
		"3\n00:00:03,000 --> 00:00:04,000\nc\nd\n\n" +
		"00:00:05,000 --> 00:00:06,000\ne\nf\n"

	cues, err := Extract([]byte(data))
	require.NoError(t, err)
	require.Len(t, cues, 3)
	for i, c := range cues {
		assert.Equal(t, i+1, c.Sequence)
	}
	assert.Equal(t, "e", cues[2].Source)
}

func TestExtract_ToleratesBOMAndCRLF(t *testing.T) {
	data := "\xEF\xBB\xBF1\r\n00:00:01.000 --> 00:00:02.000 X1:10\r\n<i>Hi</i>\r\n{\\an8}嗨\r\n\r\n"

	cues, err := Extract([]byte(data))
	require.NoError(t, err)
	require.Len(t, cues, 1)
	assert.Equal(t, "Hi", cues[0].Source)
	assert.Equal(t, "嗨", cues[0].Target)
}

func TestExtract_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: "\n\n"},
		{name: "single text line", data: "1\n00:00:01,000 --> 00:00:02,000\nonly one line\n"},
		{name: "three text lines", data: "1\n00:00:01,000 --> 00:00:02,000\na\nb\nc\n"},
		{name: "bad timing", data: "1\n00:00:01 --> 00:00:02\na\nb\n"},
		{name: "end before begin", data: "1\n00:00:05,000 --> 00:00:02,000\na\nb\n"},
		{name: "not srt", data: "WEBVTT\n\nsomething else\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.KindMalformedSubtitle), err.Error())
		})
	}
}

func TestExtract_SecondCueMalformedAbortsWholeDocument(t *testing.T) {
	data := "1\n00:00:01,000 --> 00:00:02,000\na\nb\n\n2\n00:00:03,000 --> 00:00:04,000\nlonely\n"

	cues, err := Extract([]byte(data))
	require.Error(t, err)
	assert.Nil(t, cues)
	assert.Contains(t, err.Error(), "cue=2")
}

func TestCue_Timestamps(t *testing.T) {
	c := Cue{
		Begin: time.Hour + 2*time.Minute + 3*time.Second + 4*time.Millisecond,
		End:   25*time.Hour + 500*time.Millisecond,
	}
	assert.Equal(t, "01:02:03,004", c.BeginTimestamp())
	// wall clock of day wraps past midnight
	assert.Equal(t, "01:00:00,500", c.EndTimestamp())
}

func TestDetectLanguages(t *testing.T) {
	cues := []Cue{
		{Source: "The weather is really nice today, let us go for a walk in the park.", Target: "今天天气真好，我们去公园散步吧。"},
		{Source: "I would like a cup of coffee with milk and no sugar, please.", Target: "请给我一杯加牛奶不加糖的咖啡。"},
	}

	langs := DetectLanguages(cues)
	assert.Equal(t, "en", langs.Source)
	assert.Equal(t, "zh", langs.Target)
	assert.Equal(t, Languages{Source: "und", Target: "und"}, DetectLanguages(nil))
}

package subtitle

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"

	"github.com/MimeLyc/video-uploader/internal/errs"
)

// SRT time format: 00:02:16,612 --> 00:02:19,376 (a '.' separator and trailing cue settings are tolerated)
var timingPattern = regexp.MustCompile(`^(\d{1,3}):(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(\d{1,3}):(\d{2}):(\d{2})[,.](\d{3})`)

// formatting tags: <i>, </font>, {\an8}
var tagPattern = regexp.MustCompile(`<[^>]*>|\{\\[^}]*\}`)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type block struct {
	line  int
	lines []string
}

// Extract parses SRT content into bilingual cues. Cues come back in source order and are
// renumbered 1..N regardless of the indices written in the file.
func Extract(content []byte) ([]Cue, error) {
	blocks := splitBlocks(content)
	if len(blocks) == 0 {
		return nil, errs.New(errs.KindMalformedSubtitle, "no subtitle cues found")
	}

	cues := make([]Cue, 0, len(blocks))
	for _, b := range blocks {
		cue, err := parseBlock(b, len(cues)+1)
		if err != nil {
			return nil, err
		}
		cues = append(cues, cue)
	}
	return cues, nil
}

func splitBlocks(content []byte) []block {
	content = bytes.TrimPrefix(content, utf8BOM)
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var blocks []block
	current := block{}
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			if len(current.lines) > 0 {
				blocks = append(blocks, current)
			}
			current = block{}
			continue
		}
		if len(current.lines) == 0 {
			current.line = i + 1
		}
		current.lines = append(current.lines, line)
	}
	if len(current.lines) > 0 {
		blocks = append(blocks, current)
	}
	return blocks
}

func parseBlock(b block, sequence int) (Cue, error) {
	malformed := func(msg string) error {
		return errs.New(errs.KindMalformedSubtitle, msg).
			With("cue", sequence).
			With("line", b.line)
	}

	timing := 0
	if !strings.Contains(b.lines[0], "-->") {
		if _, err := strconv.Atoi(b.lines[0]); err != nil || len(b.lines) < 2 || !strings.Contains(b.lines[1], "-->") {
			return Cue{}, malformed("expected cue index followed by a timing line")
		}
		timing = 1
	}

	begin, end, err := parseSRTTime(b.lines[timing])
	if err != nil {
		return Cue{}, malformed(err.Error())
	}
	if begin >= end {
		return Cue{}, malformed("cue begins at or after its end")
	}

	text := make([]string, 0, 2)
	for _, line := range b.lines[timing+1:] {
		text = append(text, strings.TrimSpace(tagPattern.ReplaceAllString(line, "")))
	}
	if len(text) != 2 {
		return Cue{}, malformed("cue must have exactly two text lines, got " + strconv.Itoa(len(text)))
	}

	return Cue{
		Sequence: sequence,
		Begin:    begin,
		End:      end,
		Source:   text[0],
		Target:   text[1],
	}, nil
}

// parseSRTTime parses an SRT timing line
func parseSRTTime(timeString string) (time.Duration, time.Duration, error) {
	matches := timingPattern.FindStringSubmatch(timeString)
	if len(matches) != 9 {
		return 0, 0, errs.Newf(errs.KindMalformedSubtitle, "invalid time format: %s", timeString)
	}

	parseTime := func(hours, minutes, seconds, milliseconds string) time.Duration {
		h, _ := strconv.Atoi(hours)
		m, _ := strconv.Atoi(minutes)
		s, _ := strconv.Atoi(seconds)
		ms, _ := strconv.Atoi(milliseconds)

		return time.Duration(h)*time.Hour +
			time.Duration(m)*time.Minute +
			time.Duration(s)*time.Second +
			time.Duration(ms)*time.Millisecond
	}

	return parseTime(matches[1], matches[2], matches[3], matches[4]),
		parseTime(matches[5], matches[6], matches[7], matches[8]),
		nil
}

// DetectLanguages runs language detection over each text track and returns the majority
// language of each as a BCP 47 tag string ("und" when nothing was recognised).
func DetectLanguages(cues []Cue) Languages {
	source := make([]string, 0, len(cues))
	target := make([]string, 0, len(cues))
	for _, c := range cues {
		source = append(source, c.Source)
		target = append(target, c.Target)
	}
	return Languages{
		Source: detectLanguage(source).String(),
		Target: detectLanguage(target).String(),
	}
}

// detectLanguage simple language detection based on common characters
func detectLanguage(lines []string) language.Tag {
	if len(lines) == 0 {
		return language.Und
	}

	langMap := make(map[string]int)
	for _, line := range lines {
		lang := whatlanggo.DetectLang(line).Iso6391()
		if lang == "" {
			continue
		}
		langMap[lang]++
	}

	// Get top language
	var topLang string
	var topCount int
	for lang, count := range langMap {
		if count > topCount || (count == topCount && lang < topLang) {
			topLang = lang
			topCount = count
		}
	}
	if topLang == "" {
		return language.Und
	}

	tag, err := language.Parse(topLang)
	if err != nil {
		return language.Und
	}
	return tag
}

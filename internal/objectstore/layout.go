package objectstore

import (
	"path"
	"strconv"
	"strings"

	"github.com/MimeLyc/video-uploader/internal/errs"
)

const (
	VideoExt    = ".mp4"
	SubtitleExt = ".srt"
)

// Layout names objects inside one bucket and maps them to public URLs of the
// form https://{bucket}.{endpoint}/{key}.
type Layout struct {
	Bucket   string
	Endpoint string
	SaveDir  string
}

// Key returns the object key for an item's file, e.g. video/1716800000123.mp4.
func (l Layout) Key(itemID int64, ext string) string {
	name := strconv.FormatInt(itemID, 10) + ext
	if l.SaveDir == "" {
		return name
	}
	return path.Join(l.SaveDir, name)
}

func (l Layout) URL(key string) string {
	return "https://" + l.Bucket + "." + l.host() + "/" + key
}

// KeyFromURL recovers the object key from a URL produced by URL. Everything after
// the first "{endpoint}/" is the key.
func (l Layout) KeyFromURL(rawURL string) (string, error) {
	marker := l.host() + "/"
	idx := strings.Index(rawURL, marker)
	if idx < 0 {
		return "", errs.New(errs.KindValidation, "url does not belong to the configured endpoint").
			With("url", rawURL)
	}
	key := rawURL[idx+len(marker):]
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}
	if key == "" {
		return "", errs.New(errs.KindValidation, "url has no object key").With("url", rawURL)
	}
	return key, nil
}

func (l Layout) host() string {
	h := strings.TrimPrefix(l.Endpoint, "https://")
	h = strings.TrimPrefix(h, "http://")
	return strings.TrimSuffix(h, "/")
}

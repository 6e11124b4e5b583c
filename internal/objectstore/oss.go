package objectstore

import (
	"context"
	"io"
	"mime"
	"path"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/MimeLyc/video-uploader/internal/config"
	"github.com/MimeLyc/video-uploader/internal/errs"
	"github.com/MimeLyc/video-uploader/pkg/log"
)

// ProgressFunc receives the bytes sent so far and the total size of one transfer.
type ProgressFunc func(consumed, total int64)

// bucket is the part of *oss.Bucket the gateway uses.
type bucket interface {
	PutObjectFromFile(objectKey, filePath string, options ...oss.Option) error
	DeleteObject(objectKey string, options ...oss.Option) error
	IsObjectExist(objectKey string, options ...oss.Option) (bool, error)
	GetObject(objectKey string, options ...oss.Option) (io.ReadCloser, error)
}

// OSSGateway stores item files in an Alibaba Cloud OSS bucket.
type OSSGateway struct {
	Layout
	bucket bucket
}

func NewOSSGateway(cfg config.OSSConfig) (*OSSGateway, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret,
		oss.Timeout(int64(cfg.ConnectTimeout.Seconds()), int64(cfg.ReadWriteTimeout.Seconds())))
	if err != nil {
		return nil, errs.Wrap(err, errs.KindConfig, "create oss client").With("endpoint", cfg.Endpoint)
	}
	b, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindConfig, "open oss bucket").With("bucket", cfg.Bucket)
	}
	return newOSSGateway(Layout{Bucket: cfg.Bucket, Endpoint: cfg.Endpoint, SaveDir: cfg.SaveDir}, b), nil
}

func newOSSGateway(layout Layout, b bucket) *OSSGateway {
	return &OSSGateway{Layout: layout, bucket: b}
}

// PutFromFile uploads localPath under key, overwriting any existing object, and
// returns the object's URL.
func (g *OSSGateway) PutFromFile(ctx context.Context, key, localPath string, onProgress ProgressFunc) (string, error) {
	options := []oss.Option{oss.WithContext(ctx)}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		options = append(options, oss.ContentType(ct))
	}
	if onProgress != nil {
		options = append(options, oss.Progress(&progressListener{fn: onProgress}))
	}

	log.Debug("Uploading %s to %s", localPath, key)
	if err := g.bucket.PutObjectFromFile(key, localPath, options...); err != nil {
		return "", errs.Wrap(err, errs.KindTransfer, "upload object").
			With("key", key).
			With("path", localPath)
	}
	return g.URL(key), nil
}

// Delete removes key. Deleting an absent object succeeds.
func (g *OSSGateway) Delete(ctx context.Context, key string) error {
	if err := g.bucket.DeleteObject(key, oss.WithContext(ctx)); err != nil {
		return errs.Wrap(err, errs.KindTransfer, "delete object").With("key", key)
	}
	return nil
}

func (g *OSSGateway) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := g.bucket.IsObjectExist(key, oss.WithContext(ctx))
	if err != nil {
		return false, errs.Wrap(err, errs.KindTransfer, "check object").With("key", key)
	}
	return ok, nil
}

// FetchText downloads the object behind url as text.
func (g *OSSGateway) FetchText(ctx context.Context, url string) (string, error) {
	key, err := g.KeyFromURL(url)
	if err != nil {
		return "", err
	}

	body, err := g.bucket.GetObject(key, oss.WithContext(ctx))
	if err != nil {
		return "", errs.Wrap(err, errs.KindTransfer, "download object").With("key", key)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", errs.Wrap(err, errs.KindTransfer, "read object").With("key", key)
	}
	return string(data), nil
}

type progressListener struct {
	fn ProgressFunc
}

func (l *progressListener) ProgressChanged(event *oss.ProgressEvent) {
	switch event.EventType {
	case oss.TransferDataEvent, oss.TransferCompletedEvent:
		l.fn(event.ConsumedBytes, event.TotalBytes)
	}
}

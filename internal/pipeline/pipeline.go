package pipeline

import (
	"context"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MimeLyc/video-uploader/internal/catalog"
	"github.com/MimeLyc/video-uploader/internal/errs"
	"github.com/MimeLyc/video-uploader/internal/ledger"
	"github.com/MimeLyc/video-uploader/internal/objectstore"
	"github.com/MimeLyc/video-uploader/internal/subtitle"
	"github.com/MimeLyc/video-uploader/pkg/file"
	"github.com/MimeLyc/video-uploader/pkg/log"
)

// ObjectStore is the part of the object store the pipeline uploads through.
type ObjectStore interface {
	Key(itemID int64, ext string) string
	URL(key string) string
	PutFromFile(ctx context.Context, key, localPath string, onProgress objectstore.ProgressFunc) (string, error)
}

type Catalog interface {
	WriteTransaction(ctx context.Context, record catalog.Record, cues []subtitle.Cue) error
}

type Ledger interface {
	Append(entry ledger.Entry) error
}

// UploadRequest names one video and its bilingual subtitle plus the category they belong to.
type UploadRequest struct {
	VideoPath     string `json:"video_path"`
	SubtitlePath  string `json:"subtitle_path"`
	CategoryID    int    `json:"category_id"`
	SubCategoryID int    `json:"sub_category_id"`
}

// Pipeline uploads a video and its subtitle, writes the catalog rows and records the
// outcome in the ledger. It runs at most one submission at a time.
type Pipeline struct {
	store   ObjectStore
	catalog Catalog
	ledger  Ledger
	ids     *IdentityGenerator

	recordUploadFailures bool
	now                  func() time.Time

	state atomic.Pointer[Snapshot]
}

// Option is a function type for configuring Pipeline
type Option func(*Pipeline)

// WithRecordUploadFailures controls whether failed uploads also get a ledger entry.
func WithRecordUploadFailures(record bool) Option {
	return func(p *Pipeline) {
		p.recordUploadFailures = record
	}
}

func WithIdentityGenerator(ids *IdentityGenerator) Option {
	return func(p *Pipeline) {
		p.ids = ids
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

func New(store ObjectStore, cat Catalog, led Ledger, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:                store,
		catalog:              cat,
		ledger:               led,
		ids:                  NewIdentityGenerator(),
		recordUploadFailures: true,
		now:                  time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.state.Store(&Snapshot{State: StateIdle})
	return p
}

// Status returns the latest published snapshot.
func (p *Pipeline) Status() Snapshot {
	return *p.state.Load()
}

// Handle tracks one accepted submission.
type Handle struct {
	ItemID int64

	done  chan struct{}
	final Snapshot
}

// Done is closed once the submission reached a terminal state.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the submission finishes and returns its terminal snapshot.
func (h *Handle) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-h.done:
		return h.final, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

type submission struct {
	req       UploadRequest
	itemID    int64
	cues      []subtitle.Cue
	languages subtitle.Languages
}

// Submit validates req, claims the pipeline and starts the upload in the background.
// Input problems are returned here, before anything leaves the machine; upload and
// catalog failures are reported through Status and the returned Handle.
func (p *Pipeline) Submit(ctx context.Context, req UploadRequest) (*Handle, error) {
	cues, err := validate(req)
	if err != nil {
		return nil, err
	}

	current := p.state.Load()
	if current.State.InFlight() {
		return nil, busy(current)
	}

	itemID := p.ids.Next()
	now := p.now()
	next := &Snapshot{
		Version:   current.Version + 1,
		State:     StateUploading,
		ItemID:    itemID,
		CueCount:  len(cues),
		StartedAt: now,
		UpdatedAt: now,
	}
	if !p.state.CompareAndSwap(current, next) {
		return nil, busy(p.state.Load())
	}

	sub := submission{
		req:       req,
		itemID:    itemID,
		cues:      cues,
		languages: subtitle.DetectLanguages(cues),
	}
	h := &Handle{ItemID: itemID, done: make(chan struct{})}

	log.Info("Accepted upload %d: video=%s subtitle=%s cues=%d", itemID, req.VideoPath, req.SubtitlePath, len(cues))
	go func() {
		defer close(h.done)
		h.final = p.run(context.WithoutCancel(ctx), sub)
	}()
	return h, nil
}

// Run submits req and waits for it to finish. The returned error is the stage error
// of a failed submission.
func (p *Pipeline) Run(ctx context.Context, req UploadRequest) (Snapshot, error) {
	h, err := p.Submit(ctx, req)
	if err != nil {
		return Snapshot{}, err
	}
	snap, err := h.Wait(ctx)
	if err != nil {
		return snap, err
	}
	return snap, snap.Err
}

func validate(req UploadRequest) ([]subtitle.Cue, error) {
	var missing []string
	if strings.TrimSpace(req.VideoPath) == "" {
		missing = append(missing, "video_path")
	}
	if strings.TrimSpace(req.SubtitlePath) == "" {
		missing = append(missing, "subtitle_path")
	}
	if req.CategoryID <= 0 {
		missing = append(missing, "category_id")
	}
	if req.SubCategoryID <= 0 {
		missing = append(missing, "sub_category_id")
	}
	if len(missing) > 0 {
		return nil, errs.New(errs.KindValidation, "upload request is incomplete").
			With("missing", strings.Join(missing, ","))
	}

	for _, path := range []string{req.VideoPath, req.SubtitlePath} {
		if _, err := file.StatRegular(path); err != nil {
			return nil, errs.Wrap(err, errs.KindFileNotFound, "file not found").With("path", path)
		}
	}

	content, err := os.ReadFile(req.SubtitlePath)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindFileNotFound, "read subtitle").With("path", req.SubtitlePath)
	}
	if len(content) == 0 {
		return nil, errs.New(errs.KindEmptyContent, "subtitle file is empty").With("path", req.SubtitlePath)
	}

	return subtitle.Extract(content)
}

func busy(current *Snapshot) error {
	return errs.New(errs.KindBusy, "an upload is already in progress").
		With("item_id", current.ItemID).
		With("state", current.State.String())
}

func (p *Pipeline) run(ctx context.Context, sub submission) Snapshot {
	videoKey := p.store.Key(sub.itemID, objectstore.VideoExt)
	subtitleKey := p.store.Key(sub.itemID, objectstore.SubtitleExt)

	videoURL, err := p.upload(ctx, FileVideo, videoKey, sub.req.VideoPath)
	if err != nil {
		return p.uploadFailed(sub, videoKey, subtitleKey, err)
	}
	subtitleURL, err := p.upload(ctx, FileSubtitle, subtitleKey, sub.req.SubtitlePath)
	if err != nil {
		return p.uploadFailed(sub, videoKey, subtitleKey, err)
	}
	return p.catalogue(ctx, sub, videoURL, subtitleURL)
}

func (p *Pipeline) uploadFailed(sub submission, videoKey, subtitleKey string, err error) Snapshot {
	log.Error("Upload %d failed: %v", sub.itemID, err)
	var ledgerErr error
	if p.recordUploadFailures {
		ledgerErr = p.ledger.Append(ledger.Entry{
			ItemID:        sub.itemID,
			CreatedAt:     p.now().Unix(),
			CategoryID:    sub.req.CategoryID,
			SubCategoryID: sub.req.SubCategoryID,
			VideoURL:      p.store.URL(videoKey),
			SubtitleURL:   p.store.URL(subtitleKey),
			Status:        ledger.StatusUploadFailed,
			Error:         err.Error(),
		})
	}
	return p.finish(StateUploadFailed, err, ledgerErr)
}

func (p *Pipeline) upload(ctx context.Context, fileKind, key, localPath string) (string, error) {
	p.update(func(s *Snapshot) {
		s.setProgress(fileKind, 0)
	})

	url, err := p.store.PutFromFile(ctx, key, localPath, func(consumed, total int64) {
		pct := percent(consumed, total)
		p.update(func(s *Snapshot) {
			s.setProgress(fileKind, pct)
		})
	})
	if err != nil {
		return "", err
	}

	p.update(func(s *Snapshot) {
		s.setProgress(fileKind, 100)
	})
	log.Debug("Uploaded %s for item to %s", fileKind, url)
	return url, nil
}

// catalogue runs the catalog stage once both objects are remote.
func (p *Pipeline) catalogue(ctx context.Context, sub submission, videoURL, subtitleURL string) Snapshot {
	p.update(func(s *Snapshot) {
		s.State = StateUploaded
		s.VideoURL = videoURL
		s.SubtitleURL = subtitleURL
	})

	record := catalog.Record{
		ItemID:         sub.itemID,
		CreatedAt:      p.now().Unix(),
		CategoryID:     sub.req.CategoryID,
		SubCategoryID:  sub.req.SubCategoryID,
		VideoURL:       videoURL,
		SubtitleURL:    subtitleURL,
		SourceLanguage: sub.languages.Source,
		TargetLanguage: sub.languages.Target,
	}

	state := StateCatalogued
	status := ledger.StatusCatalogued
	err := p.catalog.WriteTransaction(ctx, record, sub.cues)
	if err != nil {
		log.Error("Catalog write for %d failed: %v", sub.itemID, err)
		state = StateCatalogFailed
		status = ledger.StatusCatalogFailed
	}

	entry := ledger.Entry{
		ItemID:        record.ItemID,
		CreatedAt:     record.CreatedAt,
		CategoryID:    record.CategoryID,
		SubCategoryID: record.SubCategoryID,
		VideoURL:      record.VideoURL,
		SubtitleURL:   record.SubtitleURL,
		Status:        status,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	ledgerErr := p.ledger.Append(entry)

	return p.finish(state, err, ledgerErr)
}

func (p *Pipeline) finish(state State, err, ledgerErr error) Snapshot {
	if ledgerErr != nil {
		log.Error("Ledger append failed: %v", ledgerErr)
	}
	final := p.update(func(s *Snapshot) {
		s.fail(state, err)
		if ledgerErr != nil {
			s.LedgerError = ledgerErr.Error()
		}
	})
	log.Info("Upload %d finished: %s", final.ItemID, final.State)
	return final
}

// update publishes a modified copy of the current snapshot. fn may run more than once.
func (p *Pipeline) update(fn func(*Snapshot)) Snapshot {
	for {
		current := p.state.Load()
		next := *current
		fn(&next)
		next.Version = current.Version + 1
		next.UpdatedAt = p.now()
		if p.state.CompareAndSwap(current, &next) {
			return next
		}
	}
}

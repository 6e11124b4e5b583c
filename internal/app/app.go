package app

import (
	"context"

	"github.com/MimeLyc/video-uploader/internal/catalog"
	"github.com/MimeLyc/video-uploader/internal/config"
	"github.com/MimeLyc/video-uploader/internal/errs"
	"github.com/MimeLyc/video-uploader/internal/jobs"
	"github.com/MimeLyc/video-uploader/internal/ledger"
	"github.com/MimeLyc/video-uploader/internal/objectstore"
	"github.com/MimeLyc/video-uploader/internal/pipeline"
	"github.com/MimeLyc/video-uploader/internal/reconcile"
	"github.com/MimeLyc/video-uploader/pkg/log"
)

// ObjectStore is everything the uploader needs from the remote bucket.
type ObjectStore interface {
	pipeline.ObjectStore
	reconcile.ObjectStore
}

// App holds the wired components shared by the CLI commands and the HTTP server.
type App struct {
	Config    *config.Config
	Store     ObjectStore
	Catalog   *catalog.Store
	Ledger    *ledger.Ledger
	Pipeline  *pipeline.Pipeline
	Monitor   *pipeline.Monitor
	Reconcile *reconcile.Service
	Queue     *jobs.Queue
}

// Open connects to the configured object store and catalog database.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := objectstore.NewOSSGateway(cfg.OSS)
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg, store)
}

// New wires the components around an already constructed object store.
func New(ctx context.Context, cfg *config.Config, store ObjectStore) (*App, error) {
	cat, err := catalog.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	led := ledger.New(cfg.Ledger.File)
	p := pipeline.New(store, cat, led,
		pipeline.WithRecordUploadFailures(cfg.Ledger.RecordUploadFailures))

	return &App{
		Config:    cfg,
		Store:     store,
		Catalog:   cat,
		Ledger:    led,
		Pipeline:  p,
		Monitor:   pipeline.NewMonitor(p),
		Reconcile: reconcile.New(store, cat, led),
		Queue:     jobs.NewQueue(1),
	}, nil
}

// Execute runs one queued upload to completion.
func (a *App) Execute(ctx context.Context, job *jobs.UploadJob) (int64, error) {
	snap, err := a.Pipeline.Run(ctx, pipeline.UploadRequest{
		VideoPath:     job.Payload.VideoFile,
		SubtitlePath:  job.Payload.SubtitleFile,
		CategoryID:    job.Payload.CategoryID,
		SubCategoryID: job.Payload.SubCategoryID,
	})
	return snap.ItemID, err
}

func (a *App) Close() error {
	a.Queue.Stop()
	return a.Catalog.Close()
}

// InitLogging installs the global logger described by cfg. The returned func
// releases the log file, if any.
func InitLogging(cfg config.SystemConfig) (func() error, error) {
	level := log.ParseLevel(cfg.LogLevel)
	if cfg.LogFile == "" {
		log.InitLogger(level)
		return func() error { return nil }, nil
	}

	fl, err := log.NewFileLogger(cfg.LogFile, level)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindConfig, "open log file").With("path", cfg.LogFile)
	}
	log.SetLogger(fl.Logger)
	return fl.Close, nil
}

package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/MimeLyc/video-uploader/internal/catalog"
	"github.com/MimeLyc/video-uploader/internal/jobs"
	"github.com/MimeLyc/video-uploader/internal/ledger"
	"github.com/MimeLyc/video-uploader/internal/pipeline"
	"github.com/MimeLyc/video-uploader/internal/reconcile"
)

type reconciler interface {
	Failed() ([]ledger.Entry, error)
	Retry(ctx context.Context, entry ledger.Entry) (ledger.Entry, error)
	Discard(ctx context.Context, entry ledger.Entry) error
	RetryAll(ctx context.Context) (reconcile.Report, error)
}

type ledgerReader interface {
	LoadAll() ([]ledger.Entry, error)
	Get(itemID int64) (ledger.Entry, error)
}

type catalogReader interface {
	Record(ctx context.Context, itemID int64) (catalog.Record, error)
	Cues(ctx context.Context, itemID int64) ([]catalog.StoredCue, error)
}

type Server struct {
	monitor   *pipeline.Monitor
	queue     *jobs.Queue
	reconcile reconciler
	ledger    ledgerReader
	catalog   catalogReader

	streamInterval time.Duration

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

func WithStreamInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.streamInterval = d
		}
	}
}

func NewServer(monitor *pipeline.Monitor, queue *jobs.Queue, rec reconciler, led ledgerReader, cat catalogReader, opts ...Option) *Server {
	s := &Server{
		monitor:        monitor,
		queue:          queue,
		reconcile:      rec,
		ledger:         led,
		catalog:        cat,
		streamInterval: 500 * time.Millisecond,
		mux:            http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	s.server = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server.Addr = addr
	return s.server.ListenAndServe()
}

// Shutdown stops the server. A later ListenAndServe returns http.ErrServerClosed.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/status/stream", s.handleStatusStream)
	s.mux.HandleFunc("/api/uploads", s.handleUploads)
	s.mux.HandleFunc("/api/uploads/", s.handleUploadDetail)
	s.mux.HandleFunc("/api/ledger", s.handleLedger)
	s.mux.HandleFunc("/api/ledger/", s.handleLedgerEntry)
	s.mux.HandleFunc("/api/reconcile", s.handleReconcile)
	s.mux.HandleFunc("/api/items/", s.handleItemDetail)
}

package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MimeLyc/video-uploader/internal/httpapi"
	"github.com/MimeLyc/video-uploader/internal/reconcile"
	"github.com/MimeLyc/video-uploader/pkg/log"
)

type scheduler interface {
	Schedule(ctx context.Context) error
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

type schedulerFunc func(ctx context.Context) error

func (f schedulerFunc) Schedule(ctx context.Context) error { return f(ctx) }

// Serve starts the upload queue, the optional reconcile schedule and the HTTP API,
// and blocks until ctx ends or the server fails.
func (a *App) Serve(ctx context.Context) error {
	c := cron.New()
	sched := schedulerFunc(func(ctx context.Context) error {
		expr := a.Config.Reconcile.CronExpr
		if expr == "" {
			log.Info("No RECONCILE_CRON set, scheduled reconcile disabled")
			return nil
		}
		if _, err := a.Reconcile.Schedule(ctx, c, expr); err != nil {
			return err
		}
		if info, err := NextSweepInfo(expr); err == nil {
			log.Info("Next reconcile sweep at %s", info)
		}
		return nil
	})

	srv := httpapi.NewServer(a.Monitor, a.Queue, a.Reconcile, a.Ledger, a.Catalog)

	a.Queue.Start(a.Execute)
	defer a.Queue.Stop()

	return runWithComponents(ctx, a.Config.HTTP.Addr, sched, c, srv)
}

func runWithComponents(ctx context.Context, addr string, sched scheduler, engine cronEngine, srv httpServer) error {
	if err := sched.Schedule(ctx); err != nil {
		return err
	}
	engine.Start()
	defer func() {
		<-engine.Stop().Done()
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP API listening on %s", addr)
		errCh <- srv.ListenAndServe(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// NextSweepInfo renders when a reconcile schedule fires next.
func NextSweepInfo(expr string) (string, error) {
	info, err := reconcile.NextSweep(expr, time.Now())
	if err != nil {
		return "", err
	}
	return info.Next.Format(time.RFC3339) + " (in " + info.TimeUntilNext.Round(time.Second).String() + ")", nil
}

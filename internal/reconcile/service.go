package reconcile

import (
	"context"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/video-uploader/internal/catalog"
	"github.com/MimeLyc/video-uploader/internal/errs"
	"github.com/MimeLyc/video-uploader/internal/ledger"
	"github.com/MimeLyc/video-uploader/internal/subtitle"
	"github.com/MimeLyc/video-uploader/pkg/log"
)

type ObjectStore interface {
	KeyFromURL(url string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	FetchText(ctx context.Context, url string) (string, error)
}

type Catalog interface {
	Exists(ctx context.Context, itemID int64) (bool, error)
	WriteTransaction(ctx context.Context, record catalog.Record, cues []subtitle.Cue) error
}

type Ledger interface {
	LoadAll() ([]ledger.Entry, error)
	Replace(itemID int64, entry ledger.Entry) error
	Remove(itemID int64) error
}

// Service recovers items that were uploaded but not catalogued, either by retrying
// the catalog write or by discarding the remote objects.
type Service struct {
	store   ObjectStore
	catalog Catalog
	ledger  Ledger
	now     func() time.Time

	group singleflight.Group
}

func New(store ObjectStore, cat Catalog, led Ledger) *Service {
	return &Service{
		store:   store,
		catalog: cat,
		ledger:  led,
		now:     time.Now,
	}
}

// Failed returns the ledger entries that still need operator action.
func (s *Service) Failed() ([]ledger.Entry, error) {
	entries, err := s.ledger.LoadAll()
	if err != nil {
		return nil, err
	}
	ret := make([]ledger.Entry, 0)
	for _, e := range entries {
		if e.Status.Discardable() {
			ret = append(ret, e)
		}
	}
	return ret, nil
}

// Retry re-reads the uploaded subtitle and writes the catalog rows again. On success
// the ledger entry is marked catalogued and returned. Concurrent retries of the same
// item share one attempt.
func (s *Service) Retry(ctx context.Context, entry ledger.Entry) (ledger.Entry, error) {
	if !entry.Status.Retryable() {
		return entry, errs.New(errs.KindValidation, "only catalog failures can be retried").
			With("item_id", entry.ItemID).
			With("status", entry.Status.String())
	}

	v, err, shared := s.group.Do("retry:"+strconv.FormatInt(entry.ItemID, 10), func() (any, error) {
		return s.retry(ctx, entry)
	})
	if shared {
		log.Debug("Retry of %d shared with a concurrent caller", entry.ItemID)
	}
	if err != nil {
		return entry, err
	}
	return v.(ledger.Entry), nil
}

func (s *Service) retry(ctx context.Context, entry ledger.Entry) (ledger.Entry, error) {
	exists, err := s.catalog.Exists(ctx, entry.ItemID)
	if err != nil {
		return entry, err
	}

	if exists {
		log.Warn("Item %d is already catalogued, repairing ledger only", entry.ItemID)
	} else {
		text, err := s.store.FetchText(ctx, entry.SubtitleURL)
		if err != nil {
			return entry, err
		}
		cues, err := subtitle.Extract([]byte(text))
		if err != nil {
			return entry, err
		}
		langs := subtitle.DetectLanguages(cues)

		record := catalog.Record{
			ItemID:         entry.ItemID,
			CreatedAt:      s.now().Unix(),
			CategoryID:     entry.CategoryID,
			SubCategoryID:  entry.SubCategoryID,
			VideoURL:       entry.VideoURL,
			SubtitleURL:    entry.SubtitleURL,
			SourceLanguage: langs.Source,
			TargetLanguage: langs.Target,
		}
		if err := s.catalog.WriteTransaction(ctx, record, cues); err != nil {
			return entry, err
		}
		entry.CreatedAt = record.CreatedAt
		log.Info("Catalogued item %d with %d cues on retry", entry.ItemID, len(cues))
	}

	entry.Status = ledger.StatusCatalogued
	entry.Error = ""
	entry.AttemptID = ""
	if err := s.ledger.Replace(entry.ItemID, entry); err != nil {
		return entry, err
	}
	return entry, nil
}

// Discard deletes both remote objects of a failed item and then its ledger entry.
// Both objects are checked before anything is deleted; if either check or either
// delete fails the ledger entry is left in place so the discard can be repeated.
// After a partial delete the entry keeps its status and its error names the keys
// still stored.
func (s *Service) Discard(ctx context.Context, entry ledger.Entry) error {
	if !entry.Status.Discardable() {
		return errs.New(errs.KindValidation, "only failed uploads can be discarded").
			With("item_id", entry.ItemID).
			With("status", entry.Status.String())
	}

	keys := make([]string, 0, 2)
	for _, url := range []string{entry.VideoURL, entry.SubtitleURL} {
		key, err := s.store.KeyFromURL(url)
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}

	present := make([]bool, len(keys))
	check, checkCtx := errgroup.WithContext(ctx)
	for i, key := range keys {
		check.Go(func() error {
			ok, err := s.store.Exists(checkCtx, key)
			present[i] = ok
			return err
		})
	}
	if err := check.Wait(); err != nil {
		return errs.Wrap(err, errs.KindTransfer, "discard aborted before deleting").With("item_id", entry.ItemID)
	}

	deleteErrs := make([]error, len(keys))
	var deletes errgroup.Group
	for i, key := range keys {
		if !present[i] {
			log.Debug("Object %s already absent", key)
		}
		deletes.Go(func() error {
			deleteErrs[i] = s.store.Delete(ctx, key)
			return deleteErrs[i]
		})
	}
	if err := deletes.Wait(); err != nil {
		remaining := make([]string, 0, len(keys))
		for i, key := range keys {
			if deleteErrs[i] != nil {
				remaining = append(remaining, key)
			}
		}
		entry.Error = "discard incomplete, still stored: " + strings.Join(remaining, ", ")
		if rerr := s.ledger.Replace(entry.ItemID, entry); rerr != nil {
			log.Error("Failed to record partial discard of %d: %v", entry.ItemID, rerr)
		}
		return errs.Wrap(err, errs.KindTransfer, "discard incomplete, ledger entry kept").
			With("item_id", entry.ItemID).
			With("remaining", strings.Join(remaining, ","))
	}

	if err := s.ledger.Remove(entry.ItemID); err != nil {
		return err
	}
	log.Info("Discarded item %d", entry.ItemID)
	return nil
}

// Report summarises one RetryAll sweep.
type Report struct {
	Retried   []int64          `json:"retried"`
	Failed    map[int64]string `json:"failed"`
	StartedAt time.Time        `json:"started_at"`
}

// RetryAll retries every catalog failure in the ledger, one after another.
func (s *Service) RetryAll(ctx context.Context) (Report, error) {
	report := Report{Failed: map[int64]string{}, StartedAt: s.now()}

	entries, err := s.ledger.LoadAll()
	if err != nil {
		return report, err
	}
	for _, e := range entries {
		if !e.Status.Retryable() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if _, err := s.Retry(ctx, e); err != nil {
			log.Error("Retry of %d failed: %v", e.ItemID, err)
			report.Failed[e.ItemID] = err.Error()
			continue
		}
		report.Retried = append(report.Retried, e.ItemID)
	}
	return report, nil
}

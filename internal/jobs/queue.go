package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MimeLyc/video-uploader/pkg/log"
)

// Executor runs one upload and returns the item id it was assigned, if any.
type Executor func(ctx context.Context, job *UploadJob) (int64, error)

// Queue serialises upload submissions from callers that must not be turned away
// while the pipeline is busy.
type Queue struct {
	workerCount int
	maxJobs     int

	mu         sync.RWMutex
	jobs       map[string]*UploadJob
	dedupe     map[string]string
	idCounter  uint64
	started    bool
	pendingIDs chan string
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

func NewQueue(workerCount int) *Queue {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Queue{
		workerCount: workerCount,
		maxJobs:     1000,
		jobs:        make(map[string]*UploadJob),
		dedupe:      make(map[string]string),
		pendingIDs:  make(chan string, 1024),
		stopCh:      make(chan struct{}),
	}
}

// Enqueue adds a job unless one with the same dedupe key is still pending or
// running, in which case the existing job is returned with created false.
func (q *Queue) Enqueue(req EnqueueRequest) (*UploadJob, bool) {
	now := time.Now()
	if req.DedupeKey == "" {
		req.DedupeKey = req.Payload.DedupeKey()
	}

	q.mu.Lock()
	if id, ok := q.dedupe[req.DedupeKey]; ok {
		if existing, exists := q.jobs[id]; exists {
			snapshot := cloneJob(existing)
			q.mu.Unlock()
			return snapshot, false
		}
		delete(q.dedupe, req.DedupeKey)
	}

	seq := atomic.AddUint64(&q.idCounter, 1)
	id := fmt.Sprintf("job-%d", seq)
	job := &UploadJob{
		seq:       seq,
		ID:        id,
		Source:    req.Source,
		DedupeKey: req.DedupeKey,
		Payload:   req.Payload,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	q.jobs[id] = job
	q.dedupe[req.DedupeKey] = id
	started := q.started
	snapshot := cloneJob(job)
	q.mu.Unlock()

	log.Debug("Queued %s from %s: %s", id, req.Source, req.DedupeKey)
	if started {
		q.enqueuePendingID(id)
	}
	return snapshot, true
}

func (q *Queue) Get(id string) (*UploadJob, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job, ok := q.jobs[id]
	if !ok {
		return nil, false
	}
	return cloneJob(job), true
}

// List returns all retained jobs, oldest first.
func (q *Queue) List() []*UploadJob {
	q.mu.RLock()
	ret := make([]*UploadJob, 0, len(q.jobs))
	for _, job := range q.jobs {
		ret = append(ret, cloneJob(job))
	}
	q.mu.RUnlock()

	sort.Slice(ret, func(i, j int) bool { return ret[i].seq < ret[j].seq })
	return ret
}

func (q *Queue) Start(exec Executor) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true

	pending := make([]*UploadJob, 0)
	for _, job := range q.jobs {
		if job.Status == StatusPending {
			pending = append(pending, job)
		}
	}
	q.mu.Unlock()

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].seq < pending[j].seq
	})
	for _, job := range pending {
		q.enqueuePendingID(job.ID)
	}

	for range q.workerCount {
		q.wg.Add(1)
		go q.worker(exec)
	}
}

func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopCh)
		q.wg.Wait()
	})
}

func (q *Queue) worker(exec Executor) {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopCh:
			return
		case id := <-q.pendingIDs:
			job, ok := q.markRunning(id)
			if !ok {
				continue
			}

			itemID, err := exec(context.Background(), job)
			if err != nil {
				q.markFailed(id, itemID, err)
				continue
			}
			q.markSuccess(id, itemID)
		}
	}
}

func (q *Queue) enqueuePendingID(id string) {
	select {
	case q.pendingIDs <- id:
	default:
		go func() { q.pendingIDs <- id }()
	}
}

func (q *Queue) markRunning(id string) (*UploadJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok || job.Status != StatusPending {
		return nil, false
	}
	job.Status = StatusRunning
	job.UpdatedAt = time.Now()
	return cloneJob(job), true
}

func (q *Queue) markSuccess(id string, itemID int64) {
	q.finish(id, func(job *UploadJob) {
		job.Status = StatusSuccess
		job.ItemID = itemID
		job.Error = ""
	})
}

func (q *Queue) markFailed(id string, itemID int64, err error) {
	q.finish(id, func(job *UploadJob) {
		job.Status = StatusFailed
		job.ItemID = itemID
		if err != nil {
			job.Error = err.Error()
		}
	})
	log.Error("Upload %s failed: %v", id, err)
}

func (q *Queue) finish(id string, fn func(*UploadJob)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return
	}
	fn(job)
	job.UpdatedAt = time.Now()
	q.releaseDedupeLocked(job)
	q.pruneTerminalJobsLocked()
}

func (q *Queue) releaseDedupeLocked(job *UploadJob) {
	if job == nil || job.DedupeKey == "" {
		return
	}
	if id, ok := q.dedupe[job.DedupeKey]; ok && id == job.ID {
		delete(q.dedupe, job.DedupeKey)
	}
}

func (q *Queue) pruneTerminalJobsLocked() {
	if q.maxJobs <= 0 || len(q.jobs) <= q.maxJobs {
		return
	}

	terminal := make([]*UploadJob, 0, len(q.jobs))
	for _, job := range q.jobs {
		if job.Status == StatusPending || job.Status == StatusRunning {
			continue
		}
		terminal = append(terminal, job)
	}
	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].UpdatedAt.Before(terminal[j].UpdatedAt)
	})

	toRemove := min(len(q.jobs)-q.maxJobs, len(terminal))
	for _, job := range terminal[:toRemove] {
		q.releaseDedupeLocked(job)
		delete(q.jobs, job.ID)
	}
}

func cloneJob(job *UploadJob) *UploadJob {
	if job == nil {
		return nil
	}
	tmp := *job
	return &tmp
}

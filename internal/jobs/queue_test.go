package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload(video string) JobPayload {
	return JobPayload{VideoFile: video, SubtitleFile: video + ".srt", CategoryID: 1}
}

func TestQueue_Enqueue_DeduplicatesSameFiles(t *testing.T) {
	q := NewQueue(1)

	jobA, createdA := q.Enqueue(EnqueueRequest{Source: "http", Payload: payload("/v/a.mp4")})
	jobB, createdB := q.Enqueue(EnqueueRequest{Source: "cli", Payload: payload("/v/a.mp4")})

	require.True(t, createdA)
	require.False(t, createdB)
	assert.Equal(t, jobA.ID, jobB.ID)
	assert.Equal(t, "/v/a.mp4|/v/a.mp4.srt", jobA.DedupeKey)
}

func TestQueue_Enqueue_AllowsRetryAfterFailure(t *testing.T) {
	q := NewQueue(1)

	var attempts int
	q.Start(func(_ context.Context, _ *UploadJob) (int64, error) {
		attempts++
		if attempts == 1 {
			return 0, assert.AnError
		}
		return 1700000000123, nil
	})
	defer q.Stop()

	first, created := q.Enqueue(EnqueueRequest{Source: "http", Payload: payload("/v/retry.mp4")})
	require.True(t, created)

	require.Eventually(t, func() bool {
		got, ok := q.Get(first.ID)
		return ok && got.Status == StatusFailed
	}, time.Second, 10*time.Millisecond)

	got, _ := q.Get(first.ID)
	assert.Equal(t, assert.AnError.Error(), got.Error)

	second, created := q.Enqueue(EnqueueRequest{Source: "http", Payload: payload("/v/retry.mp4")})
	require.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)

	require.Eventually(t, func() bool {
		got, ok := q.Get(second.ID)
		return ok && got.Status == StatusSuccess
	}, time.Second, 10*time.Millisecond)

	got, _ = q.Get(second.ID)
	assert.Equal(t, int64(1700000000123), got.ItemID)
	assert.Empty(t, got.Error)
}

func TestQueue_Worker_RunsJobsInOrder(t *testing.T) {
	q := NewQueue(1)

	var mu sync.Mutex
	var order []string
	for _, v := range []string{"/v/1.mp4", "/v/2.mp4", "/v/3.mp4"} {
		q.Enqueue(EnqueueRequest{Source: "http", Payload: payload(v)})
	}
	q.Start(func(_ context.Context, job *UploadJob) (int64, error) {
		mu.Lock()
		order = append(order, job.Payload.VideoFile)
		mu.Unlock()
		return 1, nil
	})
	defer q.Stop()

	require.Eventually(t, func() bool {
		for _, job := range q.List() {
			if job.Status != StatusSuccess {
				return false
			}
		}
		return true
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/v/1.mp4", "/v/2.mp4", "/v/3.mp4"}, order)

	listed := q.List()
	require.Len(t, listed, 3)
	assert.Equal(t, "job-1", listed[0].ID)
	assert.Equal(t, "job-3", listed[2].ID)
}

func TestQueue_PrunesOldestTerminalJobs(t *testing.T) {
	q := NewQueue(1)
	q.maxJobs = 2
	q.Start(func(_ context.Context, _ *UploadJob) (int64, error) { return 1, nil })
	defer q.Stop()

	for _, v := range []string{"/v/1.mp4", "/v/2.mp4", "/v/3.mp4"} {
		job, _ := q.Enqueue(EnqueueRequest{Source: "http", Payload: payload(v)})
		require.Eventually(t, func() bool {
			got, ok := q.Get(job.ID)
			return !ok || got.Status == StatusSuccess
		}, time.Second, 10*time.Millisecond)
	}

	_, ok := q.Get("job-1")
	assert.False(t, ok)
	assert.Len(t, q.List(), 2)
}

func TestQueue_GetAndListWhileWorkerRuns(t *testing.T) {
	q := NewQueue(1)
	q.Start(func(_ context.Context, _ *UploadJob) (int64, error) { return 1, nil })
	defer q.Stop()

	ids := make([]string, 0, 8)
	for _, v := range []string{"/v/1.mp4", "/v/2.mp4", "/v/3.mp4", "/v/4.mp4", "/v/5.mp4", "/v/6.mp4", "/v/7.mp4", "/v/8.mp4"} {
		job, created := q.Enqueue(EnqueueRequest{Source: "http", Payload: payload(v)})
		require.True(t, created)
		ids = append(ids, job.ID)
	}

	// readers poll the snapshots while the worker moves each job through its states
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			deadline := time.Now().Add(time.Second)
			for time.Now().Before(deadline) {
				done := true
				for _, id := range ids {
					got, ok := q.Get(id)
					if !ok || got.Status != StatusSuccess {
						done = false
					}
				}
				_ = q.List()
				if done {
					return
				}
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		got, ok := q.Get(id)
		require.True(t, ok, id)
		assert.Equal(t, StatusSuccess, got.Status, id)
		assert.False(t, got.UpdatedAt.IsZero(), id)
	}
}

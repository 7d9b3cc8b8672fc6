package services

import (
	"context"
	"sort"
	"sync"

	"github.com/kerbaras/comicdl/pkg/metrics"
)

// QueueKey identifies one chapter of one comic.
type QueueKey struct {
	ComicID   string
	ChapterID string
}

// QueueEntry is a read-only copy of an in-flight chapter.
type QueueEntry struct {
	ComicID   string  `json:"comicId"`
	ChapterID string  `json:"chapterId"`
	BatchID   string  `json:"batchId"`
	Status    Status  `json:"status"`
	Progress  float64 `json:"progress"`
	Err       error   `json:"-"`
}

type queueEntry struct {
	QueueEntry
	ctx    context.Context
	cancel context.CancelFunc
}

// Queue holds chapters that are queued, downloading or failed. It is never persisted.
type Queue struct {
	mu      sync.Mutex
	entries map[QueueKey]*queueEntry
}

func NewQueue() *Queue {
	return &Queue{entries: make(map[QueueKey]*queueEntry)}
}

// Enqueue adds key as queued with progress 0 and returns the entry's context,
// which is cancelled when the entry is cancelled. A failed entry is replaced;
// any other existing entry makes Enqueue return false.
func (q *Queue) Enqueue(parent context.Context, key QueueKey, batchID string) (context.Context, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if e, ok := q.entries[key]; ok {
		if e.Status != StatusFailed {
			return nil, false
		}
		e.cancel()
	}

	ctx, cancel := context.WithCancel(parent)
	q.entries[key] = &queueEntry{
		QueueEntry: QueueEntry{
			ComicID:   key.ComicID,
			ChapterID: key.ChapterID,
			BatchID:   batchID,
			Status:    StatusQueued,
		},
		ctx:    ctx,
		cancel: cancel,
	}
	q.report()
	return ctx, true
}

// Start moves a queued entry to downloading with progress 0.
func (q *Queue) Start(key QueueKey) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.live(key)
	if !ok || e.Status != StatusQueued {
		return false
	}
	e.Status = StatusDownloading
	e.Progress = 0
	q.report()
	return true
}

// SetProgress records progress for a downloading entry. Updates for removed or
// cancelled entries are discarded, as are values lower than the current one.
func (q *Queue) SetProgress(key QueueKey, progress float64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.live(key)
	if !ok || e.Status != StatusDownloading {
		return false
	}
	if progress > 1 {
		progress = 1
	}
	if progress > e.Progress {
		e.Progress = progress
	}
	return true
}

// Fail marks a live entry failed, keeping its last progress.
func (q *Queue) Fail(key QueueKey, err error) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.live(key)
	if !ok {
		return false
	}
	e.Status = StatusFailed
	e.Err = err
	e.cancel()
	q.report()
	return true
}

// Remove drops the entry without marking it cancelled.
func (q *Queue) Remove(key QueueKey) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if e, ok := q.entries[key]; ok {
		delete(q.entries, key)
		e.cancel()
		q.report()
	}
}

// Cancel cancels the entry's context and removes it. It reports whether an entry existed.
func (q *Queue) Cancel(key QueueKey) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[key]
	if !ok {
		return false
	}
	e.cancel()
	delete(q.entries, key)
	q.report()
	return true
}

// Get returns a copy of the entry.
func (q *Queue) Get(key QueueKey) (QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[key]
	if !ok {
		return QueueEntry{}, false
	}
	return e.QueueEntry, true
}

// Snapshot returns every entry ordered by comic and chapter.
func (q *Queue) Snapshot() []QueueEntry {
	q.mu.Lock()
	out := make([]QueueEntry, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, e.QueueEntry)
	}
	q.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ComicID != out[j].ComicID {
			return out[i].ComicID < out[j].ComicID
		}
		return out[i].ChapterID < out[j].ChapterID
	})
	return out
}

// HasPending reports whether any chapter of the comic is queued or downloading.
func (q *Queue) HasPending(comicID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for key, e := range q.entries {
		if key.ComicID == comicID && e.Status != StatusFailed && e.ctx.Err() == nil {
			return true
		}
	}
	return false
}

// Len returns the number of entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// live returns the entry if it exists and has not been cancelled. Caller holds mu.
func (q *Queue) live(key QueueKey) (*queueEntry, bool) {
	e, ok := q.entries[key]
	if !ok || e.ctx.Err() != nil {
		return nil, false
	}
	return e, true
}

// report publishes entry counts. Caller holds mu.
func (q *Queue) report() {
	counts := map[Status]int{}
	for _, e := range q.entries {
		counts[e.Status]++
	}
	for _, s := range []Status{StatusQueued, StatusDownloading, StatusFailed} {
		metrics.QueueEntries.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}

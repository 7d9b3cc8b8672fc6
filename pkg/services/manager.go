package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/kerbaras/comicdl/pkg/data"
	"github.com/kerbaras/comicdl/pkg/fetch"
	"github.com/kerbaras/comicdl/pkg/metrics"
	"github.com/kerbaras/comicdl/pkg/storage"
)

// Store is the durable record of completed downloads.
type Store interface {
	Open(ctx context.Context) error
	Get(comicID string) (*data.DownloadRecord, bool)
	All() data.Records
	Commit(ctx context.Context, fn func(data.Records) error) error
	Close() error
}

// Options configures a Manager.
type Options struct {
	Dir            string
	Store          Store
	Fetcher        fetch.Fetcher
	Workers        int // chapters downloaded in parallel; 1 keeps request order
	ProgressBuffer int
	Logger         zerolog.Logger
}

// Manager downloads comic chapters for offline reading and answers status queries.
//
// Chapters move none → queued → downloading → downloaded, or end in failed when
// a fetch fails. A chapter is either in the queue or in the store, never both.
type Manager struct {
	layout  storage.Layout
	store   Store
	fetcher fetch.Fetcher
	queue   *Queue
	workers int
	logger  zerolog.Logger

	// mu orders enqueue decisions against the post-commit queue removal.
	mu     sync.Mutex
	covers singleflight.Group

	ctx       context.Context
	cancel    context.CancelFunc
	scheduler *scheduler
	open      bool

	progressMu     sync.RWMutex
	progressChan   chan DownloadProgress
	progressClosed bool
}

// NewManager wires a manager. Call Open before use.
func NewManager(opts Options) *Manager {
	if opts.ProgressBuffer <= 0 {
		opts.ProgressBuffer = 100
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Manager{
		layout:       storage.NewLayout(opts.Dir),
		store:        opts.Store,
		fetcher:      opts.Fetcher,
		queue:        NewQueue(),
		workers:      opts.Workers,
		logger:       opts.Logger.With().Str("component", "manager").Logger(),
		progressChan: make(chan DownloadProgress, opts.ProgressBuffer),
	}
}

// Open ensures the comics directory exists, loads the store and starts the workers.
func (m *Manager) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open {
		return nil
	}

	if err := m.layout.EnsureDirectory(); err != nil {
		return err
	}
	if err := m.store.Open(ctx); err != nil {
		m.store.Close()
		return err
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.scheduler = newScheduler(m.workers, m.runChapter)
	m.open = true
	m.logger.Info().Str("dir", m.layout.Dir).Int("workers", m.workers).Msg("Download manager opened")
	return nil
}

// Close cancels in-flight downloads, stops the workers and closes the store.
func (m *Manager) Close() error {
	m.mu.Lock()
	if !m.open {
		m.mu.Unlock()
		return nil
	}
	m.open = false
	m.cancel()
	m.mu.Unlock()

	m.scheduler.stop()

	m.progressMu.Lock()
	if !m.progressClosed {
		m.progressClosed = true
		close(m.progressChan)
	}
	m.progressMu.Unlock()

	return m.store.Close()
}

// Progress returns the channel for receiving download progress updates.
// Updates are dropped when the channel is full.
func (m *Manager) Progress() <-chan DownloadProgress {
	return m.progressChan
}

// DownloadChapters queues the chapters and blocks until each one it queued is
// downloaded, failed or cancelled. Chapters already downloaded or in flight are
// skipped. The returned error joins a *ChapterError per chapter that did not
// complete.
func (m *Manager) DownloadChapters(ctx context.Context, comicID string, chapterIDs []string, sources AssetSources) error {
	wait, err := m.Submit(ctx, comicID, chapterIDs, sources)
	if err != nil {
		return err
	}
	return wait()
}

// Submit queues the chapters and hands them to the workers. When it returns,
// every chapter it accepted reads as queued (or later). wait blocks like
// DownloadChapters and must be called at most once.
func (m *Manager) Submit(ctx context.Context, comicID string, chapterIDs []string, sources AssetSources) (wait func() error, err error) {
	batchID := uuid.NewString()
	log := m.logger.With().Str("batch_id", batchID).Str("comic_id", comicID).Logger()

	var errs []error
	jobs, err := m.enqueue(comicID, chapterIDs, sources, batchID, &errs)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return func() error { return errors.Join(errs...) }, nil
	}
	log.Info().Int("chapters", len(jobs)).Msg("Chapters queued")

	done := make(chan *ChapterError, len(jobs))
	submitted := 0
	for _, j := range jobs {
		j.done = done
		if err := m.scheduler.submit(ctx, j); err != nil {
			for _, rest := range jobs[submitted:] {
				m.queue.Cancel(rest.key)
			}
			errs = append(errs, err)
			break
		}
		submitted++
	}

	wait = func() error {
		for i := 0; i < submitted; i++ {
			select {
			case cerr := <-done:
				if cerr != nil {
					errs = append(errs, cerr)
				}
			case <-ctx.Done():
				for _, j := range jobs {
					m.queue.Cancel(j.key)
				}
				return ctx.Err()
			case <-m.ctx.Done():
				return ErrClosed
			}
		}
		return errors.Join(errs...)
	}
	return wait, nil
}

// enqueue moves each requestable chapter to queued and builds its job.
func (m *Manager) enqueue(comicID string, chapterIDs []string, sources AssetSources, batchID string, errs *[]error) ([]*chapterJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		return nil, ErrClosed
	}

	record, _ := m.store.Get(comicID)
	seen := make(map[string]bool, len(chapterIDs))
	var jobs []*chapterJob

	for _, chapterID := range chapterIDs {
		if seen[chapterID] {
			continue
		}
		seen[chapterID] = true

		if record.HasChapter(chapterID) {
			continue
		}
		pages := sources.Pages[chapterID]
		if len(pages) == 0 {
			*errs = append(*errs, &ChapterError{ComicID: comicID, ChapterID: chapterID, Err: ErrNoSources})
			continue
		}

		key := QueueKey{ComicID: comicID, ChapterID: chapterID}
		ctx, ok := m.queue.Enqueue(m.ctx, key, batchID)
		if !ok {
			continue
		}
		m.sendProgress(DownloadProgress{
			BatchID:    batchID,
			ComicID:    comicID,
			ChapterID:  chapterID,
			TotalPages: len(pages),
			Status:     StatusQueued,
		})
		jobs = append(jobs, &chapterJob{
			ctx:     ctx,
			key:     key,
			batchID: batchID,
			cover:   sources.Cover,
			pages:   append([]string(nil), pages...),
		})
	}
	return jobs, nil
}

// Cancel stops a queued, downloading or failed chapter and removes it from the queue.
func (m *Manager) Cancel(comicID, chapterID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Cancel(QueueKey{ComicID: comicID, ChapterID: chapterID})
}

// DeleteChapter removes a downloaded chapter's pages and its store entry. An
// in-flight download of the chapter is cancelled first. Deleting the last
// chapter of a comic also removes the cover and the comic's record.
func (m *Manager) DeleteChapter(ctx context.Context, comicID, chapterID string) error {
	if m.Cancel(comicID, chapterID) {
		m.logger.Info().Str("comic_id", comicID).Str("chapter_id", chapterID).Msg("Cancelled in-flight download before delete")
	}

	record, ok := m.store.Get(comicID)
	if !ok || !record.HasChapter(chapterID) {
		return nil
	}

	var errs []error
	for _, page := range record.Chapters[chapterID] {
		if err := storage.RemoveFile(page); err != nil {
			errs = append(errs, err)
		}
	}

	var cover string
	err := m.store.Commit(ctx, func(rs data.Records) error {
		r, ok := rs[comicID]
		if !ok {
			return nil
		}
		delete(r.Chapters, chapterID)
		if len(r.Chapters) == 0 {
			cover = r.CoverURI
			delete(rs, comicID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete chapter %s: %w", chapterID, err)
	}
	metrics.ChapterDeletionsTotal.Inc()

	if cover != "" {
		m.logger.Info().Str("comic_id", comicID).Msg("Removed last chapter, comic record dropped")
		if err := m.removeCover(comicID, cover); err != nil {
			errs = append(errs, err)
		}
	}
	m.logger.Info().Str("comic_id", comicID).Str("chapter_id", chapterID).Msg("Chapter deleted")
	return errors.Join(errs...)
}

// removeCover deletes the cover of a dropped comic record unless another chapter
// of the comic is queued or downloading, or has already committed a new record
// that uses it. Holding mu keeps new enqueues and post-commit queue removals out.
func (m *Manager) removeCover(comicID, cover string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.queue.HasPending(comicID) {
		m.logger.Debug().Str("comic_id", comicID).Msg("Keeping cover for chapters still downloading")
		return nil
	}
	if r, ok := m.store.Get(comicID); ok && r.CoverURI == cover {
		return nil
	}
	m.covers.Forget(comicID)
	return storage.RemoveFile(cover)
}

// GetChapterStatus reports the chapter's effective status.
func (m *Manager) GetChapterStatus(comicID, chapterID string) ChapterStatus {
	if r, ok := m.store.Get(comicID); ok && r.HasChapter(chapterID) {
		return ChapterStatus{Status: StatusDownloaded, Progress: 1}
	}
	if e, ok := m.queue.Get(QueueKey{ComicID: comicID, ChapterID: chapterID}); ok {
		status := ChapterStatus{Status: e.Status, Progress: e.Progress}
		if e.Err != nil {
			status.Error = e.Err.Error()
		}
		return status
	}
	return ChapterStatus{Status: StatusNone}
}

// GetDownloadInfo counts downloaded chapters against totalChapters.
func (m *Manager) GetDownloadInfo(comicID string, totalChapters int) DownloadInfo {
	if totalChapters <= 0 {
		return DownloadInfo{}
	}
	r, ok := m.store.Get(comicID)
	if !ok {
		return DownloadInfo{}
	}
	count := len(r.Chapters)
	return DownloadInfo{
		DownloadedCount: count,
		Progress:        float64(count) / float64(totalChapters),
	}
}

// GetDownloadedCoverURI returns the comic's local cover path.
func (m *Manager) GetDownloadedCoverURI(comicID string) (string, bool) {
	r, ok := m.store.Get(comicID)
	if !ok || r.CoverURI == "" {
		return "", false
	}
	return r.CoverURI, true
}

// GetDownloadedPages returns the chapter's local page paths in page order.
func (m *Manager) GetDownloadedPages(comicID, chapterID string) ([]string, bool) {
	r, ok := m.store.Get(comicID)
	if !ok || !r.HasChapter(chapterID) {
		return nil, false
	}
	return r.Chapters[chapterID], true
}

// Queue returns a snapshot of in-flight and failed chapters.
func (m *Manager) Queue() []QueueEntry {
	return m.queue.Snapshot()
}

// Downloads returns every downloaded comic.
func (m *Manager) Downloads() data.Records {
	return m.store.All()
}

// Record returns the download record of one comic.
func (m *Manager) Record(comicID string) (*data.DownloadRecord, bool) {
	return m.store.Get(comicID)
}

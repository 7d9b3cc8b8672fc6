package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kerbaras/comicdl/pkg/data"
	"github.com/kerbaras/comicdl/pkg/metrics"
	"github.com/kerbaras/comicdl/pkg/storage"
)

// runChapter downloads one chapter page by page and commits it to the store.
func (m *Manager) runChapter(j *chapterJob) {
	log := m.logger.With().
		Str("batch_id", j.batchID).
		Str("comic_id", j.key.ComicID).
		Str("chapter_id", j.key.ChapterID).
		Logger()

	err := m.downloadChapter(j, log)
	switch {
	case err == nil:
		metrics.ChapterDownloadsTotal.WithLabelValues(string(StatusDownloaded)).Inc()
		j.done <- nil
	case j.ctx.Err() != nil:
		// The entry was cancelled (or the manager closed) while we worked.
		log.Info().Msg("Chapter download cancelled")
		metrics.ChapterDownloadsTotal.WithLabelValues("cancelled").Inc()
		j.done <- &ChapterError{ComicID: j.key.ComicID, ChapterID: j.key.ChapterID, Err: ErrCancelled}
	default:
		m.queue.Fail(j.key, err)
		log.Error().Err(err).Msg("Chapter download failed")
		metrics.ChapterDownloadsTotal.WithLabelValues(string(StatusFailed)).Inc()
		m.sendProgress(DownloadProgress{
			BatchID:   j.batchID,
			ComicID:   j.key.ComicID,
			ChapterID: j.key.ChapterID,
			Status:    StatusFailed,
			Error:     err,
		})
		j.done <- &ChapterError{ComicID: j.key.ComicID, ChapterID: j.key.ChapterID, Err: err}
	}
}

func (m *Manager) downloadChapter(j *chapterJob, log zerolog.Logger) (err error) {
	if !m.queue.Start(j.key) {
		return ErrCancelled
	}
	total := len(j.pages)
	m.sendProgress(DownloadProgress{
		BatchID:    j.batchID,
		ComicID:    j.key.ComicID,
		ChapterID:  j.key.ChapterID,
		TotalPages: total,
		Status:     StatusDownloading,
	})

	cover, err := m.ensureCover(j.ctx, j.key.ComicID, j.cover)
	if err != nil {
		return fmt.Errorf("failed to fetch cover: %w", err)
	}

	paths := make([]string, 0, total)
	defer func() {
		if err != nil {
			// Partially downloaded pages never reach the store.
			for _, p := range paths {
				storage.RemoveFile(p)
			}
		}
	}()

	for i, ref := range j.pages {
		if err := j.ctx.Err(); err != nil {
			return err
		}
		path, err := m.fetcher.FetchToLocal(j.ctx, ref, m.layout.PagePath(j.key.ComicID, j.key.ChapterID, i))
		if err != nil {
			return fmt.Errorf("failed to download page %d: %w", i, err)
		}
		paths = append(paths, path)
		if i+1 == total {
			// Progress reaches 1 only with the commit.
			break
		}

		progress := float64(i+1) / float64(total)
		if !m.queue.SetProgress(j.key, progress) {
			return ErrCancelled
		}
		log.Debug().Int("page", i).Float64("progress", progress).Msg("Page downloaded")
		m.sendProgress(DownloadProgress{
			BatchID:     j.batchID,
			ComicID:     j.key.ComicID,
			ChapterID:   j.key.ChapterID,
			CurrentPage: i + 1,
			TotalPages:  total,
			Progress:    progress,
			Status:      StatusDownloading,
		})
	}

	// A cascade delete of the comic's last chapter may have removed the cover meanwhile.
	if cover != "" && !storage.Exists(cover) {
		if cover, err = m.ensureCover(j.ctx, j.key.ComicID, j.cover); err != nil {
			return fmt.Errorf("failed to fetch cover: %w", err)
		}
	}

	if err := m.commitChapter(j, cover, paths); err != nil {
		return err
	}

	log.Info().Int("pages", total).Msg("Chapter downloaded")
	m.sendProgress(DownloadProgress{
		BatchID:     j.batchID,
		ComicID:     j.key.ComicID,
		ChapterID:   j.key.ChapterID,
		CurrentPage: total,
		TotalPages:  total,
		Progress:    1,
		Status:      StatusDownloaded,
	})
	return nil
}

// commitChapter writes the chapter into the store and then drops its queue entry.
func (m *Manager) commitChapter(j *chapterJob, cover string, paths []string) error {
	err := m.store.Commit(m.ctx, func(rs data.Records) error {
		// Checked under the store's commit lock so a concurrent delete wins.
		if err := j.ctx.Err(); err != nil {
			return err
		}
		r := rs.Record(j.key.ComicID)
		if r.CoverURI == "" || !storage.Exists(r.CoverURI) {
			r.CoverURI = cover
		}
		r.Chapters[j.key.ChapterID] = paths
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("failed to commit chapter: %w", err)
	}

	m.mu.Lock()
	m.queue.Remove(j.key)
	m.mu.Unlock()
	return nil
}

// ensureCover returns the comic's local cover path, fetching it at most once per
// comic. An empty ref yields an empty path.
func (m *Manager) ensureCover(ctx context.Context, comicID, ref string) (string, error) {
	if r, ok := m.store.Get(comicID); ok && storage.Exists(r.CoverURI) {
		return r.CoverURI, nil
	}
	if ref == "" {
		return "", nil
	}

	// The shared fetch runs on the manager context so cancelling one chapter
	// does not fail the others waiting on the same cover.
	ch := m.covers.DoChan(comicID, func() (interface{}, error) {
		path := m.layout.CoverPath(comicID)
		if storage.Exists(path) {
			return path, nil
		}
		m.logger.Debug().Str("comic_id", comicID).Msg("Fetching cover")
		return m.fetcher.FetchToLocal(m.ctx, ref, path)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// sendProgress sends a progress update (non-blocking)
func (m *Manager) sendProgress(progress DownloadProgress) {
	m.progressMu.RLock()
	defer m.progressMu.RUnlock()
	if m.progressClosed {
		return
	}
	select {
	case m.progressChan <- progress:
	default:
		// Channel full, skip this update
	}
}

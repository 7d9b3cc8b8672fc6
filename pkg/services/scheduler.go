package services

import (
	"context"
	"sync"
)

// chapterJob is one chapter waiting for a worker.
type chapterJob struct {
	ctx     context.Context
	key     QueueKey
	batchID string
	cover   string
	pages   []string
	done    chan<- *ChapterError // receives nil on success
}

// scheduler feeds chapter jobs to a fixed pool of workers in FIFO order.
type scheduler struct {
	jobs chan *chapterJob
	quit chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func newScheduler(workers int, run func(*chapterJob)) *scheduler {
	if workers < 1 {
		workers = 1
	}
	s := &scheduler{
		jobs: make(chan *chapterJob, 256),
		quit: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.quit:
					return
				case j := <-s.jobs:
					run(j)
				}
			}
		}()
	}
	return s
}

func (s *scheduler) submit(ctx context.Context, j *chapterJob) error {
	select {
	case <-s.quit:
		return ErrClosed
	default:
	}
	select {
	case s.jobs <- j:
		return nil
	case <-s.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop waits for running jobs to return. Jobs still buffered are dropped.
func (s *scheduler) stop() {
	s.once.Do(func() {
		close(s.quit)
	})
	s.wg.Wait()
}

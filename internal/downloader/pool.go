// internal/downloader/pool.go
package downloader

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/catalog/pkg/models"
)

// WorkerPool manages concurrent downloads using a worker pool pattern
type WorkerPool struct {
	downloader  *Downloader
	concurrency int
}

// NewWorkerPool creates a new worker pool with specified concurrency
func NewWorkerPool(concurrency int, d *Downloader) *WorkerPool {
	if concurrency <= 0 {
		concurrency = 4
	}
	if concurrency > 16 {
		concurrency = 16
	}
	return &WorkerPool{downloader: d, concurrency: concurrency}
}

// JobsFromListings builds one Job per listing with an image. Stems are
// unique within the batch.
func JobsFromListings(listings []models.MarkedUpListing) []Job {
	jobs := make([]Job, 0, len(listings))
	used := make(map[string]int)
	for _, l := range listings {
		if l.Image == "" {
			continue
		}
		stem := Slug(l.Name)
		used[stem]++
		if n := used[stem]; n > 1 {
			stem = fmt.Sprintf("%s-%d", stem, n)
		}
		jobs = append(jobs, Job{Name: l.Name, URL: l.Image, Stem: stem})
	}
	return jobs
}

// DownloadAll runs every job into dir and returns results in job order
func (wp *WorkerPool) DownloadAll(ctx context.Context, jobs []Job, dir string) []*Result {
	results := make([]*Result, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 1; w <= min(wp.concurrency, len(jobs)); w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := range indexes {
				log.Debug().Int("worker_id", id).Str("url", jobs[i].URL).Msg("Worker processing download")
				results[i] = wp.downloader.Download(ctx, jobs[i], dir)
			}
		}(w)
	}

	for i := range jobs {
		select {
		case indexes <- i:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(indexes)
	wg.Wait()

	for i, r := range results {
		if r == nil {
			results[i] = &Result{Job: jobs[i], Err: ctx.Err()}
		}
	}
	return results
}

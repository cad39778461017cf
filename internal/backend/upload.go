package backend

import (
	"context"
	"sync"
	"time"
)

// UploadResult is the outcome of uploading a single file
type UploadResult struct {
	Path     string
	Document *Document
	Error    error
	Duration time.Duration
}

// UploadMany uploads files in parallel with at most workers uploads in
// flight. Results come back in input order.
func (c *Client) UploadMany(ctx context.Context, paths []string, workers int) []UploadResult {
	if len(paths) == 0 {
		return []UploadResult{}
	}

	type job struct {
		index int
		path  string
	}

	jobs := make(chan job, len(paths))
	results := make([]UploadResult, len(paths))

	// Don't start more workers than there are files
	numWorkers := workers
	if numWorkers < 1 {
		numWorkers = 1
	}
	if len(paths) < numWorkers {
		numWorkers = len(paths)
	}

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.index] = c.uploadSingle(ctx, j.path)
			}
		}()
	}

	for i, p := range paths {
		jobs <- job{index: i, path: p}
	}
	close(jobs)

	wg.Wait()
	return results
}

func (c *Client) uploadSingle(ctx context.Context, path string) UploadResult {
	start := time.Now()
	result := UploadResult{Path: path}

	if err := ctx.Err(); err != nil {
		result.Error = err
		return result
	}

	result.Document, result.Error = c.UploadFile(ctx, path)
	result.Duration = time.Since(start)
	return result
}

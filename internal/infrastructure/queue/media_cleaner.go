package queue

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/rs/zerolog"

	"github.com/videotube/account-service/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	deleteTimeout  = 30 * time.Second
)

type cleanupJob struct {
	userID string
	url    string
}

// MediaCleaner deletes replaced images on a fixed set of workers. Jobs are
// sharded by user id so one user's deletions run in the order they were queued.
type MediaCleaner struct {
	workers []chan cleanupJob
	media   ports.MediaStore
	log     zerolog.Logger
}

// NewMediaCleaner creates a MediaCleaner with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewMediaCleaner(numWorkers int, media ports.MediaStore, log zerolog.Logger) *MediaCleaner {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	c := &MediaCleaner{
		workers: make([]chan cleanupJob, numWorkers),
		media:   media,
		log:     log,
	}
	for i := range c.workers {
		c.workers[i] = make(chan cleanupJob, channelBuffer)
	}
	return c
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (c *MediaCleaner) Start(ctx context.Context) {
	for i, ch := range c.workers {
		go c.runWorker(ctx, i, ch)
	}
}

// Discard queues url for deletion. It never blocks: when the worker's buffer
// is full the job is dropped and the object stays in the bucket.
func (c *MediaCleaner) Discard(userID, url string) {
	select {
	case c.workers[c.shardIndex(userID)] <- cleanupJob{userID: userID, url: url}:
	default:
		c.log.Warn().Str("user_id", userID).Str("url", url).Msg("cleanup queue full, dropping job")
	}
}

// shardIndex maps a user id deterministically to a worker index.
func (c *MediaCleaner) shardIndex(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(len(c.workers)))
}

func (c *MediaCleaner) runWorker(ctx context.Context, id int, ch <-chan cleanupJob) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-ch:
			c.delete(ctx, id, job)
		}
	}
}

func (c *MediaCleaner) delete(ctx context.Context, worker int, job cleanupJob) {
	ctx, cancel := context.WithTimeout(ctx, deleteTimeout)
	defer cancel()

	if err := c.media.Delete(ctx, job.url); err != nil {
		c.log.Error().Err(err).
			Str("user_id", job.userID).
			Str("url", job.url).
			Int("worker_id", worker).
			Msg("media cleanup failed")
		return
	}
	c.log.Debug().Str("user_id", job.userID).Str("url", job.url).Msg("replaced media deleted")
}

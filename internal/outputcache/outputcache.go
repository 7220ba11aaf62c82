// Package outputcache keeps captured stdout/stderr bytes for completed
// jobs off the long-lived Job struct, in a TTL'd off-heap cache the way
// the teacher's internal/cache/freecache wraps coocood/freecache for
// build artifacts, adapted here to two fixed sub-keys per job
// (SPEC_FULL.md §10).
package outputcache

import (
	"encoding/binary"
	"fmt"

	fc "github.com/coocood/freecache"
)

const (
	suffixStdout = ":stdout"
	suffixStderr = ":stderr"
)

// Cache stores a job's captured output, evicting it automatically after
// ttlSeconds regardless of whether the scheduler's retirement sweep has
// run yet.
type Cache struct {
	cache      *fc.Cache
	ttlSeconds int
}

func New(sizeBytes int, ttlSeconds int) *Cache {
	return &Cache{cache: fc.NewCache(sizeBytes), ttlSeconds: ttlSeconds}
}

func key(jobID uint32, suffix string) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, jobID)
	return append(buf, []byte(suffix)...)
}

// Put stores stdout and stderr for jobID, overwriting any prior entry.
func (c *Cache) Put(jobID uint32, stdout, stderr []byte) error {
	if err := c.cache.Set(key(jobID, suffixStdout), stdout, c.ttlSeconds); err != nil {
		return fmt.Errorf("outputcache: put stdout for job %d: %w", jobID, err)
	}
	if err := c.cache.Set(key(jobID, suffixStderr), stderr, c.ttlSeconds); err != nil {
		return fmt.Errorf("outputcache: put stderr for job %d: %w", jobID, err)
	}
	return nil
}

// Get retrieves stdout/stderr for jobID. ok is false if either has
// expired or was never stored (e.g. the job is still running).
func (c *Cache) Get(jobID uint32) (stdout, stderr []byte, ok bool) {
	out, err := c.cache.Get(key(jobID, suffixStdout))
	if err != nil {
		return nil, nil, false
	}
	errOut, err := c.cache.Get(key(jobID, suffixStderr))
	if err != nil {
		return nil, nil, false
	}
	return out, errOut, true
}

// Evict removes jobID's output ahead of its natural TTL expiry, used by
// the scheduler's retirement sweep.
func (c *Cache) Evict(jobID uint32) {
	c.cache.Del(key(jobID, suffixStdout))
	c.cache.Del(key(jobID, suffixStderr))
}

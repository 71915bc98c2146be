package batch

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/rs/zerolog"
)

// Result is one unique generated image.
type Result struct {
	Bytes  []byte
	Hash   string
	Prompt string
}

// Collector deduplicates generation outcomes by content hash. State
// lives for exactly one batch run; a new run gets a new Collector.
type Collector struct {
	mu         sync.Mutex
	seen       map[[sha256.Size]byte]struct{}
	results    []Result
	duplicates int
	failures   int
	logger     zerolog.Logger
}

func NewCollector(logger zerolog.Logger) *Collector {
	return &Collector{
		seen:   make(map[[sha256.Size]byte]struct{}),
		logger: logger,
	}
}

// Ingest folds one job outcome into the run state. Failures are logged
// and dropped; byte-identical duplicates are counted and dropped;
// everything else is appended in arrival order. Ingest is idempotent
// with respect to identical byte content.
func (c *Collector) Ingest(prompt string, data []byte, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.failures++
		c.logger.Warn().Err(err).Msg("batch: job failed, skipping")
		return false
	}
	digest := sha256.Sum256(data)
	if _, dup := c.seen[digest]; dup {
		c.duplicates++
		c.logger.Debug().Str("hash", hex.EncodeToString(digest[:8])).Msg("batch: duplicate render skipped")
		return false
	}
	c.seen[digest] = struct{}{}
	c.results = append(c.results, Result{
		Bytes:  data,
		Hash:   hex.EncodeToString(digest[:]),
		Prompt: prompt,
	})
	return true
}

// Results returns the unique results in first-seen order.
func (c *Collector) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Result, len(c.results))
	copy(out, c.results)
	return out
}

// Unique reports how many distinct images were kept. It always equals
// the number of distinct hashes seen.
func (c *Collector) Unique() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

func (c *Collector) Duplicates() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duplicates
}

func (c *Collector) Failures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures
}

package scheduler

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/noah-isme/course-planner/internal/models"
)

// IDGenerator issues schedule unique ids of the form
// <semester>_<run stamp>_<index>_<4 digits>. Run stamps are epoch
// milliseconds forced to strictly increase within the process.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	rnd  *rand.Rand
	now  func() time.Time
}

// NewIDGenerator constructs a generator using the wall clock.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
	}
}

// RunStamp returns a new run stamp, strictly greater than any previous one.
func (g *IDGenerator) RunStamp() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	stamp := g.now().UnixMilli()
	if stamp <= g.last {
		stamp = g.last + 1
	}
	g.last = stamp
	return stamp
}

// Format builds the unique id of the index-th schedule of a run.
func (g *IDGenerator) Format(semester models.Semester, stamp int64, index int) string {
	g.mu.Lock()
	suffix := g.rnd.Intn(10000)
	g.mu.Unlock()
	return fmt.Sprintf("%d_%d_%d_%04d", int(semester), stamp, index, suffix)
}

package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ssuji15/wolf/internal/compiler"
	"github.com/ssuji15/wolf/internal/outputcache"
	"github.com/ssuji15/wolf/internal/sandbox"
)

// Stats is the scheduler's slice of the aggregate-counter record (spec
// §3: "Aggregate counters"). Session-level counters (clients, bytes)
// live alongside the session roster; Scheduler only owns the job-related
// ones.
type Stats struct {
	TotalJobs     uint64
	ActiveJobs    uint64
	QueuedJobs    uint64
	RunningJobs   uint64
	CompletedJobs uint64
	FailedJobs    uint64
	CancelledJobs uint64
	TimeoutJobs   uint64

	// Running totals behind AvgCompileSecs/AvgExecuteSecs (spec §3:
	// "accumulated compile/execute seconds for running averages").
	compileSecs    float64
	compileSamples uint64
	executeSecs    float64
	executeSamples uint64
}

// AvgCompileSecs is the mean wall-clock compile step duration across every
// job that reached one, or 0 if none has yet.
func (st Stats) AvgCompileSecs() float64 {
	if st.compileSamples == 0 {
		return 0
	}
	return st.compileSecs / float64(st.compileSamples)
}

// AvgExecuteSecs is the mean wall-clock execute step duration across every
// job that reached one, or 0 if none has yet.
func (st Stats) AvgExecuteSecs() float64 {
	if st.executeSamples == 0 {
		return 0
	}
	return st.executeSecs / float64(st.executeSamples)
}

// Config bundles the knobs Scheduler needs from internal/config without
// importing that package directly (keeps scheduler testable standalone).
type Config struct {
	MaxQueueDepth   int
	RetentionWindow time.Duration
	SweepInterval   time.Duration
	CompileTimeout  time.Duration
	ExecuteTimeout  time.Duration
	MaxOutputBytes  int
}

// Scheduler is the in-memory priority queue plus single-consumer worker
// described in spec §4.D. Jobs become visible to Find/List strictly
// before Submit returns (spec §5 ordering guarantee).
type Scheduler struct {
	cfg Config

	mu      sync.Mutex
	cond    *sync.Cond
	queue   jobHeap
	jobs    map[uint32]*Job
	nextID  uint32
	nextSeq uint64
	stats   Stats
	closed  bool

	registry *compiler.Registry
	executor sandbox.Executor
	outputs  *outputcache.Cache

	// running maps a currently-executing job id to the context.CancelFunc
	// that RunStep's context derives from; Cancel uses it to interrupt a
	// running job without waiting for the worker loop.
	running map[uint32]context.CancelFunc
}

func New(cfg Config, registry *compiler.Registry, executor sandbox.Executor, outputs *outputcache.Cache) *Scheduler {
	s := &Scheduler{
		cfg:      cfg,
		queue:    jobHeap{},
		jobs:     make(map[uint32]*Job),
		registry: registry,
		executor: executor,
		outputs:  outputs,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Submit assigns the job a never-reused, never-zero id, enqueues it, and
// returns the id. Everything in the Job value except ID is expected to
// be populated by the caller (spec §4.D: "fully populated ... except
// id").
func (s *Scheduler) Submit(j *Job) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) >= s.cfg.MaxQueueDepth {
		return 0, ErrQueueFull
	}

	s.nextID++
	if s.nextID == 0 {
		s.nextID = 1 // never reuse zero on wraparound
	}
	j.ID = s.nextID
	j.seq = s.nextSeq
	s.nextSeq++
	j.State = StateQueued
	j.SubmittedAt = time.Now()

	s.jobs[j.ID] = j
	heap.Push(&s.queue, j)

	s.stats.TotalJobs++
	s.stats.ActiveJobs++
	s.stats.QueuedJobs++

	s.cond.Signal()
	return j.ID, nil
}

// Find returns an immutable snapshot of a job (spec §4.D).
func (s *Scheduler) Find(id uint32) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return j.Snapshot(), true
}

// List returns a snapshot of every non-retired job.
func (s *Scheduler) List() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.Snapshot())
	}
	return out
}

// Stats returns a snapshot of the job-related aggregate counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Scheduler) recordCompileDuration(d time.Duration) {
	s.mu.Lock()
	s.stats.compileSecs += d.Seconds()
	s.stats.compileSamples++
	s.mu.Unlock()
}

func (s *Scheduler) recordExecuteDuration(d time.Duration) {
	s.mu.Lock()
	s.stats.executeSecs += d.Seconds()
	s.stats.executeSamples++
	s.mu.Unlock()
}

// MaxQueueDepth reports the current queue depth cap (admin ConfigGet
// "scheduler.max_queue_depth").
func (s *Scheduler) MaxQueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.MaxQueueDepth
}

// SetMaxQueueDepth changes the queue depth cap live (admin ConfigSet
// "scheduler.max_queue_depth"); it takes effect on the next Submit.
func (s *Scheduler) SetMaxQueueDepth(n int) {
	s.mu.Lock()
	s.cfg.MaxQueueDepth = n
	s.mu.Unlock()
}

// SetPriority mutates a still-queued job's priority and re-heapifies
// (spec §4.D: "Priority may be mutated on a queued job ... a re-sort
// follows. Once a job has begun executing it is not re-ordered.").
func (s *Scheduler) SetPriority(id uint32, priority int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.State != StateQueued {
		return nil // executing jobs are not re-ordered; not an error
	}
	j.Priority = priority
	heap.Fix(&s.queue, indexOf(s.queue, j))
	return nil
}

func indexOf(h jobHeap, target *Job) int {
	for i, j := range h {
		if j == target {
			return i
		}
	}
	return -1
}

// Cancel requests cancellation of a queued or running job. On a terminal
// job it is a no-op, not an error (spec §4.D cancellation policy). A
// queued job is cancelled immediately (visible to Find right away); a
// running job is flagged and the worker signals its process.
func (s *Scheduler) Cancel(id uint32) error {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if j.State.Terminal() {
		s.mu.Unlock()
		return nil
	}
	j.cancelRequested = true
	var runningCancel context.CancelFunc
	switch j.State {
	case StateQueued:
		// Remove from the heap now; dequeue would otherwise run a job
		// whose owner already gave up on it.
		heap.Remove(&s.queue, indexOf(s.queue, j))
		s.stats.QueuedJobs--
		j.State = StateCancelled
		j.EndedAt = time.Now()
		s.finishLocked(j)
	case StateRunning:
		runningCancel = s.running[id]
	}
	s.mu.Unlock()

	// Signalling the running process happens outside the lock: cancelling
	// RunStep's context makes the executor SIGTERM the process group and,
	// after its grace period, SIGKILL it, and the
	// worker goroutine observes cancelRequested and reports Cancelled
	// once the child is reaped (spec §5: "best-effort interrupts").
	if runningCancel != nil {
		runningCancel()
	}
	return nil
}

func (s *Scheduler) finishLocked(j *Job) {
	s.stats.ActiveJobs--
	switch j.State {
	case StateCompleted:
		s.stats.CompletedJobs++
	case StateFailed:
		s.stats.FailedJobs++
	case StateCancelled:
		s.stats.CancelledJobs++
	case StateTimeout:
		s.stats.TimeoutJobs++
	}
}

// Run drives the single scheduler worker until ctx is cancelled. It
// blocks on the condition variable when the queue is empty, woken by
// Submit (spec §5: "the worker blocks when the queue is empty and is
// woken by submission").
func (s *Scheduler) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.closed = true
		s.cond.Broadcast()
		s.mu.Unlock()
	}()

	for {
		j := s.dequeue()
		if j == nil {
			return
		}
		s.runJob(ctx, j)
	}
}

func (s *Scheduler) dequeue() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 {
		if s.closed {
			return nil
		}
		s.cond.Wait()
	}
	j := heap.Pop(&s.queue).(*Job)
	s.stats.QueuedJobs--
	return j
}

// Sweep removes terminal jobs older than RetentionWindow, retiring their
// sandbox directories (spec §4.D retirement).
func (s *Scheduler) Sweep() {
	cutoff := time.Now().Add(-s.cfg.RetentionWindow)

	s.mu.Lock()
	var toRetire []*Job
	for id, j := range s.jobs {
		if j.State.Terminal() && j.EndedAt.Before(cutoff) {
			toRetire = append(toRetire, j)
			delete(s.jobs, id)
		}
	}
	s.mu.Unlock()

	for _, j := range toRetire {
		if j.SandboxDir != "" {
			if err := s.executor.Retire(j.SandboxDir); err != nil {
				log.Warn().Err(err).Uint32("job_id", j.ID).Msg("sandbox retire failed")
			}
		}
		if s.outputs != nil {
			s.outputs.Evict(j.ID)
		}
	}
}

// RunSweeper runs Sweep on cfg.SweepInterval until ctx is cancelled.
func (s *Scheduler) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// CancelSessionJobs cancels every queued/running job owned by sessionID,
// used on inactivity teardown (spec §4.E).
func (s *Scheduler) CancelSessionJobs(sessionID uint32) {
	s.mu.Lock()
	var ids []uint32
	for id, j := range s.jobs {
		if j.SessionID == sessionID && !j.State.Terminal() {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	for _, id := range ids {
		if err := s.Cancel(id); err != nil {
			log.Warn().Err(err).Uint32("job_id", id).Msg("cancel on session teardown failed")
		}
	}
}

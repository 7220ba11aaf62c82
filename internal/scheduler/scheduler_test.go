package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/ssuji15/wolf/internal/compiler"
	"github.com/ssuji15/wolf/internal/sandbox"
)

// fakeExecutor is a small hand-written stand-in (no mocking framework,
// per the teacher's testing style): every RunStep call reports success
// unless the test configures it otherwise.
type fakeExecutor struct {
	runStep  func(ctx context.Context, dir, command string, timeout time.Duration, maxOutputBytes int, onStart func(pid int)) (sandbox.StepResult, error)
	retired  []string
}

func (f *fakeExecutor) CreateSandbox(jobID uint32, submittedAt time.Time) (string, error) {
	return "/tmp/fake-sandbox", nil
}

func (f *fakeExecutor) PlaceSource(dir, filename string, data []byte) error { return nil }

func (f *fakeExecutor) RunStep(ctx context.Context, dir, command string, timeout time.Duration, maxOutputBytes int, onStart func(pid int)) (sandbox.StepResult, error) {
	if onStart != nil {
		onStart(4242)
	}
	if f.runStep != nil {
		return f.runStep(ctx, dir, command, timeout, maxOutputBytes, onStart)
	}
	return sandbox.StepResult{ExitCode: 0, Stdout: []byte("ok")}, nil
}

func (f *fakeExecutor) Retire(dir string) error {
	f.retired = append(f.retired, dir)
	return nil
}

func testConfig() Config {
	return Config{
		MaxQueueDepth:   16,
		RetentionWindow: time.Hour,
		SweepInterval:   time.Minute,
		CompileTimeout:  time.Second,
		ExecuteTimeout:  time.Second,
		MaxOutputBytes:  4096,
	}
}

func newTestScheduler(exec *fakeExecutor) *Scheduler {
	reg := &compiler.Registry{}
	return New(testConfig(), reg, exec, nil)
}

func TestSubmitAssignsIncreasingNeverZeroIDs(t *testing.T) {
	s := newTestScheduler(&fakeExecutor{})
	var ids []uint32
	for i := 0; i < 3; i++ {
		id, err := s.Submit(&Job{Language: compiler.LanguagePython, Mode: ModeInterpret})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if id == 0 {
			t.Fatal("assigned id is zero")
		}
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Errorf("ids not strictly increasing: %v", ids)
		}
	}
}

func TestSubmitRejectsBeyondQueueDepth(t *testing.T) {
	cfg := testConfig()
	cfg.MaxQueueDepth = 1
	s := New(cfg, &compiler.Registry{}, &fakeExecutor{}, nil)

	if _, err := s.Submit(&Job{}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if _, err := s.Submit(&Job{}); err != ErrQueueFull {
		t.Errorf("second Submit = %v, want ErrQueueFull", err)
	}
}

func TestFindReturnsSnapshotImmediatelyAfterSubmit(t *testing.T) {
	s := newTestScheduler(&fakeExecutor{})
	id, err := s.Submit(&Job{Language: compiler.LanguagePython, Mode: ModeInterpret})
	if err != nil {
		t.Fatal(err)
	}
	j, ok := s.Find(id)
	if !ok {
		t.Fatal("job not visible immediately after Submit")
	}
	if j.State != StateQueued {
		t.Errorf("state = %v, want Queued", j.State)
	}
}

func TestCancelQueuedJobIsImmediate(t *testing.T) {
	s := newTestScheduler(&fakeExecutor{})
	id, _ := s.Submit(&Job{})
	if err := s.Cancel(id); err != nil {
		t.Fatal(err)
	}
	j, _ := s.Find(id)
	if j.State != StateCancelled {
		t.Errorf("state = %v, want Cancelled", j.State)
	}
}

func TestCancelTerminalJobIsNoOp(t *testing.T) {
	s := newTestScheduler(&fakeExecutor{})
	id, _ := s.Submit(&Job{})
	_ = s.Cancel(id)
	if err := s.Cancel(id); err != nil {
		t.Errorf("second Cancel on terminal job returned error: %v", err)
	}
}

func TestCancelUnknownJobIsNotFound(t *testing.T) {
	s := newTestScheduler(&fakeExecutor{})
	if err := s.Cancel(999); err != ErrNotFound {
		t.Errorf("Cancel(unknown) = %v, want ErrNotFound", err)
	}
}

func TestRunExecutesQueuedInterpretedJob(t *testing.T) {
	exec := &fakeExecutor{
		runStep: func(ctx context.Context, dir, command string, timeout time.Duration, maxOutputBytes int, onStart func(pid int)) (sandbox.StepResult, error) {
			return sandbox.StepResult{ExitCode: 0, Stdout: []byte("hi")}, nil
		},
	}
	s := newTestScheduler(exec)
	s.registry = compilerRegistryWithPython()

	id, err := s.Submit(&Job{Language: compiler.LanguagePython, Mode: ModeInterpret, Filename: "main.py"})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { s.Run(ctx); close(done) }()

	deadline := time.After(2 * time.Second)
	for {
		j, _ := s.Find(id)
		if j.State.Terminal() {
			if j.State != StateCompleted {
				t.Errorf("state = %v, want Completed", j.State)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("job never reached a terminal state")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestSetPriorityReordersQueuedJobs(t *testing.T) {
	s := newTestScheduler(&fakeExecutor{})
	_, _ = s.Submit(&Job{Priority: 1})
	lowID, _ := s.Submit(&Job{Priority: 1})

	if err := s.SetPriority(lowID, 100); err != nil {
		t.Fatal(err)
	}

	s.mu.Lock()
	top := s.queue[0]
	s.mu.Unlock()
	if top.ID != lowID {
		t.Errorf("top of heap = job %d, want %d after priority bump", top.ID, lowID)
	}
}

func TestSweepRetiresOldTerminalJobsOnly(t *testing.T) {
	exec := &fakeExecutor{}
	s := newTestScheduler(exec)
	s.registry = compilerRegistryWithPython()
	s.cfg.RetentionWindow = 0 // retire immediately

	// The job has to run to get a sandbox dir: a job cancelled while still
	// queued never gets one, and Sweep only retires existing sandboxes.
	id, _ := s.Submit(&Job{Language: compiler.LanguagePython, Mode: ModeInterpret, Filename: "main.py"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { s.Run(ctx); close(done) }()

	deadline := time.After(2 * time.Second)
	for {
		j, _ := s.Find(id)
		if j.State.Terminal() {
			break
		}
		select {
		case <-deadline:
			t.Fatal("job never reached a terminal state")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	// Submitted after the worker stopped, so it stays Queued (not terminal).
	queuedID, _ := s.Submit(&Job{})

	s.Sweep()

	if _, ok := s.Find(id); ok {
		t.Error("job still present after sweep past retention window")
	}
	if len(exec.retired) != 1 {
		t.Errorf("retired count = %d, want 1", len(exec.retired))
	}
	if _, ok := s.Find(queuedID); !ok {
		t.Error("non-terminal job removed by sweep")
	}
}

func compilerRegistryWithPython() *compiler.Registry {
	return compiler.NewRegistryWithDescriptors(map[compiler.Language]compiler.Descriptor{
		compiler.LanguagePython: {Language: compiler.LanguagePython, ExecutablePath: "/usr/bin/python3"},
		compiler.LanguageC:      {Language: compiler.LanguageC, ExecutablePath: "/usr/bin/cc", DefaultFlags: "-O2 -Wall"},
	})
}

// TestSyntaxCheckNeverRunsTheArtifact guards against ModeSyntaxCheck
// falling through to ExecuteCommand (which would run a never-built
// binary for a compiled language): every RunStep invocation here must
// be the syntax-only command, never "./a.out".
func TestSyntaxCheckNeverRunsTheArtifact(t *testing.T) {
	var commands []string
	exec := &fakeExecutor{
		runStep: func(ctx context.Context, dir, command string, timeout time.Duration, maxOutputBytes int, onStart func(pid int)) (sandbox.StepResult, error) {
			commands = append(commands, command)
			return sandbox.StepResult{ExitCode: 0}, nil
		},
	}
	s := newTestScheduler(exec)
	s.registry = compilerRegistryWithPython()

	id, err := s.Submit(&Job{Language: compiler.LanguageC, Mode: ModeSyntaxCheck, Filename: "main.c"})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { s.Run(ctx); close(done) }()

	deadline := time.After(2 * time.Second)
	for {
		j, _ := s.Find(id)
		if j.State.Terminal() {
			if j.State != StateCompleted {
				t.Errorf("state = %v, want Completed", j.State)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("job never reached a terminal state")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if len(commands) != 1 {
		t.Fatalf("expected exactly one RunStep call, got %d: %v", len(commands), commands)
	}
	if commands[0] != "/usr/bin/cc -fsyntax-only -O2 -Wall main.c" {
		t.Errorf("command = %q, want the syntax-only cc invocation", commands[0])
	}
}

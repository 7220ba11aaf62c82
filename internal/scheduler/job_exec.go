package scheduler

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// runJob drives a single job through sandbox creation, compile (if
// applicable), run, and terminal-state recording (spec §4.D worker
// steps 1-4).
func (s *Scheduler) runJob(parent context.Context, j *Job) {
	s.mu.Lock()
	j.State = StateRunning
	j.StartedAt = time.Now()
	s.stats.RunningJobs++
	cancelled := j.cancelRequested
	s.mu.Unlock()

	if cancelled {
		s.finishRunning(j, StateCancelled, -1, nil, nil)
		return
	}

	jobCtx, cancel := context.WithCancel(parent)
	s.registerRunning(j.ID, cancel)
	defer func() {
		cancel()
		s.unregisterRunning(j.ID)
	}()

	dir, err := s.executor.CreateSandbox(j.ID, j.SubmittedAt)
	if err != nil {
		log.Error().Err(err).Uint32("job_id", j.ID).Msg("sandbox create failed")
		s.finishRunning(j, StateFailed, -1, nil, []byte(err.Error()))
		return
	}
	j.SandboxDir = dir

	if err := s.executor.PlaceSource(dir, j.Filename, j.source); err != nil {
		log.Error().Err(err).Uint32("job_id", j.ID).Msg("source write failed")
		s.finishRunning(j, StateFailed, -1, nil, []byte(err.Error()))
		return
	}
	j.source = nil

	artifact := artifactName(j.Filename)

	onPid := func(pid int) {
		s.mu.Lock()
		j.Pid = pid
		s.mu.Unlock()
	}

	if j.Mode == ModeSyntaxCheck {
		checkCmd, err := s.registry.SyntaxCheckCommand(j.Language, j.Filename)
		if err != nil {
			s.finishRunning(j, StateFailed, -1, nil, []byte(err.Error()))
			return
		}
		result, err := s.executor.RunStep(jobCtx, dir, checkCmd, s.cfg.CompileTimeout, s.cfg.MaxOutputBytes, onPid)
		if err != nil {
			s.finishRunning(j, StateFailed, -1, nil, []byte(err.Error()))
			return
		}
		if result.TimedOut {
			s.finishRunning(j, StateTimeout, result.ExitCode, result.Stdout, result.Stderr)
			return
		}
		if s.isCancelled(j) {
			s.finishRunning(j, StateCancelled, result.ExitCode, result.Stdout, result.Stderr)
			return
		}
		if result.ExitCode == 0 {
			s.finishRunning(j, StateCompleted, result.ExitCode, result.Stdout, result.Stderr)
		} else {
			s.finishRunning(j, StateFailed, result.ExitCode, result.Stdout, result.Stderr)
		}
		return
	}

	if j.Mode != ModeInterpret {
		compileCmd, err := s.registry.CompileCommand(j.Language, j.Filename, artifact, j.CompilerArgs)
		if err != nil {
			s.finishRunning(j, StateFailed, -1, nil, []byte(err.Error()))
			return
		}
		if compileCmd != "" {
			compileStart := time.Now()
			result, err := s.executor.RunStep(jobCtx, dir, compileCmd, s.cfg.CompileTimeout, s.cfg.MaxOutputBytes, onPid)
			s.recordCompileDuration(time.Since(compileStart))
			if err != nil {
				s.finishRunning(j, StateFailed, -1, nil, []byte(err.Error()))
				return
			}
			if result.TimedOut {
				s.finishRunning(j, StateTimeout, result.ExitCode, result.Stdout, result.Stderr)
				return
			}
			if s.isCancelled(j) {
				s.finishRunning(j, StateCancelled, result.ExitCode, result.Stdout, result.Stderr)
				return
			}
			if result.ExitCode != 0 {
				// Compile failure short-circuits: the job is terminal
				// Failed with the compile exit code (spec §4.C contract).
				s.finishRunning(j, StateFailed, result.ExitCode, result.Stdout, result.Stderr)
				return
			}
			if j.Mode == ModeCompileOnly {
				s.finishRunning(j, StateCompleted, result.ExitCode, result.Stdout, result.Stderr)
				return
			}
		}
	}

	runCmd, err := s.registry.ExecuteCommand(j.Language, j.Filename, artifact, j.ExecutionArgs)
	if err != nil {
		s.finishRunning(j, StateFailed, -1, nil, []byte(err.Error()))
		return
	}

	executeStart := time.Now()
	result, err := s.executor.RunStep(jobCtx, dir, runCmd, s.cfg.ExecuteTimeout, s.cfg.MaxOutputBytes, onPid)
	s.recordExecuteDuration(time.Since(executeStart))
	if err != nil {
		s.finishRunning(j, StateFailed, -1, nil, []byte(err.Error()))
		return
	}
	if result.TimedOut {
		s.finishRunning(j, StateTimeout, result.ExitCode, result.Stdout, result.Stderr)
		return
	}
	if s.isCancelled(j) {
		s.finishRunning(j, StateCancelled, result.ExitCode, result.Stdout, result.Stderr)
		return
	}
	if result.ExitCode == 0 {
		s.finishRunning(j, StateCompleted, result.ExitCode, result.Stdout, result.Stderr)
	} else {
		s.finishRunning(j, StateFailed, result.ExitCode, result.Stdout, result.Stderr)
	}
}

func (s *Scheduler) finishRunning(j *Job, state State, exitCode int, stdout, stderr []byte) {
	s.mu.Lock()
	j.State = state
	j.ExitCode = exitCode
	j.StdoutSize = len(stdout)
	j.StderrSize = len(stderr)
	j.EndedAt = time.Now()
	s.stats.RunningJobs--
	s.finishLocked(j)
	s.mu.Unlock()

	if s.outputs != nil {
		if err := s.outputs.Put(j.ID, stdout, stderr); err != nil {
			log.Warn().Err(err).Uint32("job_id", j.ID).Msg("output cache put failed")
		}
	}
}

func (s *Scheduler) isCancelled(j *Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return j.cancelRequested
}

func (s *Scheduler) registerRunning(id uint32, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running == nil {
		s.running = make(map[uint32]context.CancelFunc)
	}
	s.running[id] = cancel
}

func (s *Scheduler) unregisterRunning(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, id)
}

// artifactName derives a sandbox-local build artifact name from the
// source filename's stem, e.g. "a.c" -> "a.out".
func artifactName(filename string) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	if stem == "" {
		stem = "a"
	}
	return stem + ".out"
}

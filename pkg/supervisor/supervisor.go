// Package supervisor implements the process supervisor: it forks N OS
// worker processes, each hosting M cooperative consumers, and restarts the
// whole generation when every worker process has exited. The supervisor
// keeps no state across restarts — each generation reloads everything from
// configuration and external systems — so the restart path is just a loop
// around exec.Command, re-invoking the same executable in worker mode.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Config configures the supervisor.
type Config struct {
	// WorkerProcesses is N, the number of OS processes to fork. Default:
	// CPU count, minus one when there are at least 4 (see
	// internal/config.defaultWorkerProcesses).
	WorkerProcesses int

	// ConsumersPerWorker is M, the number of consumers each worker process
	// hosts. Capped at 8, default 4.
	ConsumersPerWorker int
}

func (c *Config) setDefaults() {
	if c.ConsumersPerWorker == 0 {
		c.ConsumersPerWorker = 4
	}
	if c.ConsumersPerWorker > 8 {
		c.ConsumersPerWorker = 8
	}
}

// Supervisor forks copies of the current executable re-invoked with
// WorkerArgs appended, each becoming one worker process in a generation.
type Supervisor struct {
	cfg        Config
	executable string
	workerArgs []string
	logger     hclog.Logger
}

// New builds a Supervisor. workerArgs are passed to every forked child (a
// re-run of os.Executable()) so the re-invoked binary knows to run its worker entrypoint
// (e.g. "-mode=worker") instead of the supervisor entrypoint again.
func New(cfg Config, workerArgs []string, logger hclog.Logger) (*Supervisor, error) {
	cfg.setDefaults()
	if cfg.WorkerProcesses <= 0 {
		return nil, fmt.Errorf("supervisor worker process count must be positive, got %d", cfg.WorkerProcesses)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	executable, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve own executable path: %w", err)
	}

	return &Supervisor{
		cfg:        cfg,
		executable: executable,
		workerArgs: workerArgs,
		logger:     logger.Named("supervisor"),
	}, nil
}

// ConsumersPerWorker reports M, for the worker entrypoint to read.
func (s *Supervisor) ConsumersPerWorker() int { return s.cfg.ConsumersPerWorker }

// Run forks a generation of WorkerProcesses workers and blocks until ctx is
// cancelled. Each time every forked process in a generation has exited —
// whether cleanly or by crash — the supervisor has no state to preserve and
// simply forks a fresh generation, unless ctx was the cause.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		s.logger.Info("forking worker generation", "worker_processes", s.cfg.WorkerProcesses, "consumers_per_worker", s.cfg.ConsumersPerWorker)

		if err := s.runGeneration(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			s.logger.Warn("all worker processes exited, restarting supervised generation")
		}
	}
}

// runGeneration starts cfg.WorkerProcesses children and waits for all of
// them to exit (or for ctx to be cancelled, which kills them).
func (s *Supervisor) runGeneration(ctx context.Context) error {
	cmds := make([]*exec.Cmd, s.cfg.WorkerProcesses)
	for i := range cmds {
		cmd := exec.CommandContext(ctx, s.executable, s.workerArgs...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.Env = os.Environ()
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("failed to start worker process %d: %w", i, err)
		}
		cmds[i] = cmd
		s.logger.Info("worker process started", "index", i, "pid", cmd.Process.Pid)
	}

	var wg sync.WaitGroup
	wg.Add(len(cmds))
	for i, cmd := range cmds {
		go func(i int, cmd *exec.Cmd) {
			defer wg.Done()
			err := cmd.Wait()
			if err != nil && ctx.Err() == nil {
				s.logger.Error("worker process exited unexpectedly", "index", i, "pid", cmd.Process.Pid, "error", err)
			} else {
				s.logger.Info("worker process stopped", "index", i, "pid", cmd.Process.Pid)
			}
		}(i, cmd)
	}
	wg.Wait()

	return nil
}

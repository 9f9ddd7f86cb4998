package runnersvc

import (
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"sync"
	"time"

	"ComputeMesh/internal/config"
)

// Manager supervises the service processes assigned to this worker. A
// service whose config has no command is assumed to be managed outside the
// agent (systemd, docker compose) and is tracked but never started here.
type Manager struct {
	mu     sync.Mutex
	specs  map[string]config.AgentServiceConfig
	procs  map[string]*managedProc
	failed map[string]error
	logger *slog.Logger
}

// managedProc pairs a process with the channel its reaper closes once Wait
// returns. Wait is not safe for concurrent use, so the reaper is the only
// goroutine ever calling it; everyone else watches done.
type managedProc struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func NewManager(specs []config.AgentServiceConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	byName := make(map[string]config.AgentServiceConfig, len(specs))
	for _, spec := range specs {
		byName[spec.Name] = spec
	}

	return &Manager{
		specs:  byName,
		procs:  make(map[string]*managedProc),
		failed: make(map[string]error),
		logger: logger,
	}
}

// StartAssigned launches every assigned service that has a command and is
// not already running. A start failure is recorded for the next heartbeat,
// never returned: one broken service must not take the agent down.
func (m *Manager) StartAssigned(assigned []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, name := range assigned {
		spec, ok := m.specs[name]
		if !ok || spec.Command == "" {
			continue
		}
		if _, running := m.procs[name]; running {
			continue
		}

		cmd := exec.Command(spec.Command, spec.Args...)
		if err := cmd.Start(); err != nil {
			m.logger.Error("failed to start service process",
				"service", name,
				"command", spec.Command,
				"error", err,
			)
			m.failed[name] = fmt.Errorf("start failed: %w", err)
			continue
		}

		m.logger.Info("service process started",
			"service", name,
			"command", spec.Command,
			"pid", cmd.Process.Pid,
		)
		p := &managedProc{cmd: cmd, done: make(chan struct{})}
		m.procs[name] = p
		delete(m.failed, name)

		go m.reap(name, p)
	}
}

// reap waits for process exit, signals completion on done, and records
// unexpected deaths as failures.
func (m *Manager) reap(name string, p *managedProc) {
	err := p.cmd.Wait()
	close(p.done)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.procs[name] != p {
		// replaced or stopped deliberately
		return
	}
	delete(m.procs, name)

	if err != nil {
		m.logger.Warn("service process exited", "service", name, "error", err)
		m.failed[name] = fmt.Errorf("process exited: %w", err)
	} else {
		m.logger.Info("service process exited cleanly", "service", name)
	}
}

// StopAll terminates every managed process, escalating to kill after the
// grace period.
func (m *Manager) StopAll(grace time.Duration) {
	m.mu.Lock()
	procs := make(map[string]*managedProc, len(m.procs))
	for name, p := range m.procs {
		procs[name] = p
	}
	m.procs = make(map[string]*managedProc)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for name, p := range procs {
		wg.Add(1)
		go func(name string, p *managedProc) {
			defer wg.Done()
			stopProcess(name, p, grace, m.logger)
		}(name, p)
	}
	wg.Wait()
}

func stopProcess(name string, p *managedProc, grace time.Duration, logger *slog.Logger) {
	if p.cmd.Process == nil {
		return
	}

	if err := p.cmd.Process.Signal(syscallTerm); err != nil {
		logger.Warn("failed to signal service process", "service", name, "error", err)
	}

	select {
	case <-p.done:
		logger.Info("service process stopped", "service", name)
	case <-time.After(grace):
		logger.Warn("service process did not stop in time, killing", "service", name)
		p.cmd.Process.Kill()
		<-p.done
	}
}

// Degraded reports whether any assigned service failed to start or died.
func (m *Manager) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.failed) > 0
}

// FailedServices returns the names of currently-failed services, sorted.
func (m *Manager) FailedServices() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.failed))
	for name := range m.failed {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

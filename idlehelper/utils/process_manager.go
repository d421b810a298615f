package utils

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

const defaultRestartDelay = 5 * time.Second

// ProcessManager supervises the long running loops of the bot. A loop that fails or
// panics is restarted after a delay until the manager shuts down.
type ProcessManager struct {
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	mu           sync.RWMutex
	processes    map[string]*ProcessInfo
	restartDelay time.Duration
}

type ProcessInfo struct {
	Name        string
	Description string
	StartedAt   time.Time
	Restarts    int

	cancel context.CancelFunc
}

func NewProcessManager() *ProcessManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &ProcessManager{
		ctx:          ctx,
		cancel:       cancel,
		processes:    make(map[string]*ProcessInfo),
		restartDelay: defaultRestartDelay,
	}
}

// SetRestartDelay changes the pause between a failed run and its restart.
func (pm *ProcessManager) SetRestartDelay(d time.Duration) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.restartDelay = d
}

// Start registers and runs fn. Starting a name twice stops the older process.
func (pm *ProcessManager) Start(name, description string, fn func(ctx context.Context) error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if _, exists := pm.processes[name]; exists {
		slog.Warn("Process already exists, stopping existing one",
			slog.String("type", "sys"),
			slog.String("process", name))
		pm.stopLocked(name)
	}

	ctx, cancel := context.WithCancel(pm.ctx)
	info := &ProcessInfo{
		Name:        name,
		Description: description,
		StartedAt:   time.Now().UTC(),
		cancel:      cancel,
	}
	pm.processes[name] = info

	pm.wg.Add(1)
	go func() {
		defer pm.wg.Done()
		slog.Info("Starting background process",
			slog.String("type", "sys"),
			slog.String("process", name),
			slog.String("description", description))

		for {
			err := runGuarded(ctx, fn)
			if ctx.Err() != nil {
				break
			}
			if err == nil {
				pm.forget(name, info)
				break
			}

			slog.Error("Background process failed, restarting",
				slog.String("type", "sys"),
				slog.String("process", name),
				slog.Any("error", err))

			pm.mu.Lock()
			info.Restarts++
			delay := pm.restartDelay
			pm.mu.Unlock()

			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
			if ctx.Err() != nil {
				break
			}
		}

		slog.Info("Background process ended",
			slog.String("type", "sys"),
			slog.String("process", name))
	}()
}

func runGuarded(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	err = fn(ctx)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// forget drops a process that finished on its own.
func (pm *ProcessManager) forget(name string, info *ProcessInfo) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.processes[name] == info {
		delete(pm.processes, name)
	}
}

func (pm *ProcessManager) Stop(name string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.stopLocked(name)
}

func (pm *ProcessManager) stopLocked(name string) {
	if process, exists := pm.processes[name]; exists {
		process.cancel()
		delete(pm.processes, name)
		slog.Info("Stopped background process",
			slog.String("type", "sys"),
			slog.String("process", name))
	}
}

// Shutdown cancels every process and waits for them up to timeout.
func (pm *ProcessManager) Shutdown(timeout time.Duration) error {
	slog.Info("Shutting down background processes",
		slog.String("type", "sys"),
		slog.Int("process_count", pm.Count()))

	pm.cancel()

	done := make(chan struct{})
	go func() {
		pm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("All background processes stopped", slog.String("type", "sys"))
		return nil
	case <-time.After(timeout):
		slog.Warn("Timeout waiting for background processes to stop",
			slog.String("type", "sys"),
			slog.Duration("timeout", timeout))
		return context.DeadlineExceeded
	}
}

func (pm *ProcessManager) Count() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.processes)
}

// List returns the running processes sorted by name.
func (pm *ProcessManager) List() []ProcessInfo {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	processes := make([]ProcessInfo, 0, len(pm.processes))
	for _, p := range pm.processes {
		processes = append(processes, ProcessInfo{
			Name:        p.Name,
			Description: p.Description,
			StartedAt:   p.StartedAt,
			Restarts:    p.Restarts,
		})
	}
	sort.Slice(processes, func(i, j int) bool { return processes[i].Name < processes[j].Name })
	return processes
}

// Context is cancelled when the manager shuts down.
func (pm *ProcessManager) Context() context.Context {
	return pm.ctx
}

package lighting

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"vocalights/internal/domain"
)

var ErrEmptyEffect = errors.New("effect has no steps")

// stepTimeout bounds a single device call made from an effect loop.
const stepTimeout = 5 * time.Second

type runKey struct {
	device string
	effect string
}

type effectRun struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

// Effects runs looping effects in the background. At most one run exists per
// (device, effect) pair; starting a running effect replaces the old run.
// Cancellation is only observed between steps: a device call in flight is
// always allowed to finish.
type Effects struct {
	logger *slog.Logger

	mu   sync.Mutex
	runs map[runKey]*effectRun
	wg   sync.WaitGroup
}

func NewEffects(logger *slog.Logger) *Effects {
	return &Effects{
		logger: logger,
		runs:   make(map[runKey]*effectRun),
	}
}

// Start launches effect on l and returns the run id.
func (e *Effects) Start(l *Light, effect domain.Effect) (string, error) {
	if len(effect.Steps) == 0 {
		return "", ErrEmptyEffect
	}

	key := runKey{device: l.Name, effect: effect.Name}
	ctx, cancel := context.WithCancel(context.Background())
	run := &effectRun{
		id:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	e.mu.Lock()
	if prev, ok := e.runs[key]; ok {
		prev.cancel()
		e.logger.Debug("restarting effect", "light", l.Name, "effect", effect.Name, "previous_run", prev.id)
	}
	e.runs[key] = run
	e.wg.Add(1)
	e.mu.Unlock()

	go e.loop(ctx, key, run, l, effect)

	e.logger.Info("effect started", "light", l.Name, "effect", effect.Name, "run", run.id)
	return run.id, nil
}

// Stop signals the run for (device, effect) to end and returns without
// waiting. It reports whether a run was active.
func (e *Effects) Stop(device, effect string) bool {
	key := runKey{device: device, effect: effect}

	e.mu.Lock()
	run, ok := e.runs[key]
	if ok {
		delete(e.runs, key)
	}
	e.mu.Unlock()

	if !ok {
		return false
	}
	run.cancel()
	e.logger.Info("effect stopped", "light", device, "effect", effect, "run", run.id)
	return true
}

func (e *Effects) IsRunning(device, effect string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.runs[runKey{device: device, effect: effect}]
	return ok
}

// Running returns the number of active runs.
func (e *Effects) Running() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.runs)
}

// StopAll cancels every run.
func (e *Effects) StopAll() {
	e.mu.Lock()
	runs := e.runs
	e.runs = make(map[runKey]*effectRun)
	e.mu.Unlock()

	for _, run := range runs {
		run.cancel()
	}
}

// Wait blocks until every loop goroutine has returned or ctx ends.
func (e *Effects) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Effects) loop(ctx context.Context, key runKey, run *effectRun, l *Light, effect domain.Effect) {
	defer e.wg.Done()
	defer close(run.done)
	defer e.release(key, run)

	logger := e.logger.With("light", l.Name, "effect", effect.Name, "run", run.id)
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for i := 0; ; i = (i + 1) % len(effect.Steps) {
		if ctx.Err() != nil {
			return
		}

		step := effect.Steps[i]
		cmd := step.Command
		if cmd.Transition == 0 {
			cmd.Transition = effect.Transition
		}

		callCtx, cancel := context.WithTimeout(context.Background(), stepTimeout)
		err := l.Apply(callCtx, cmd)
		cancel()
		if err != nil {
			logger.Error("effect step failed, ending loop", "step", step.Label, "error", err)
			return
		}

		timer.Reset(effect.Delay)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

// release drops the run from the registry unless it was already replaced.
func (e *Effects) release(key runKey, run *effectRun) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cur, ok := e.runs[key]; ok && cur == run {
		delete(e.runs, key)
	}
	run.cancel()
}

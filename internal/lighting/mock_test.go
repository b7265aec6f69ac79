package lighting_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"vocalights/internal/domain"
	"vocalights/internal/lighting"
)

type mockDriver struct {
	mu       sync.Mutex
	calls    []domain.Command
	ids      [][]string
	state    domain.DeviceState
	stateErr error
	failAt   int // 1-based call index that fails; 0 never fails
	failIDs  map[string]bool
	applied  chan domain.Command
}

func (m *mockDriver) Apply(_ context.Context, ids []string, cmd domain.Command) ([]domain.Status, error) {
	m.mu.Lock()
	m.calls = append(m.calls, cmd)
	m.ids = append(m.ids, ids)
	n := len(m.calls)
	ch := m.applied
	m.mu.Unlock()

	if ch != nil {
		select {
		case ch <- cmd:
		default:
		}
	}

	if m.failAt > 0 && n >= m.failAt {
		return nil, errors.New("bridge unreachable")
	}

	statuses := make([]domain.Status, 0, len(ids))
	for _, id := range ids {
		if m.failIDs[id] {
			statuses = append(statuses, domain.StatusError(id, errors.New("device not found")))
			continue
		}
		statuses = append(statuses, domain.StatusOK(id))
	}
	return statuses, nil
}

func (m *mockDriver) State(_ context.Context, _ string) (domain.DeviceState, error) {
	return m.state, m.stateErr
}

func (m *mockDriver) Calls() []domain.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Command, len(m.calls))
	copy(out, m.calls)
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLight(name string, backend domain.Backend, driver lighting.Driver) *lighting.Light {
	b := lighting.NewBackend(backend, lighting.DefaultProfile(backend), driver)
	return lighting.NewLight(domain.Device{Name: name, Backend: backend, Address: name + "-addr"}, b)
}

package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/sells-group/prospect-pipeline/internal/ledger"
	"github.com/sells-group/prospect-pipeline/internal/model"
)

// fakeLedger is an in-memory Ledger for orchestrator tests.
type fakeLedger struct {
	mu        sync.Mutex
	claimed   map[string]bool
	attempts  map[string][]model.Attempt
	prospects map[string]*model.Prospect
	appendErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		claimed:   make(map[string]bool),
		attempts:  make(map[string][]model.Attempt),
		prospects: make(map[string]*model.Prospect),
	}
}

func (f *fakeLedger) BeginAttempt(_ context.Context, prospectID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimed[prospectID] {
		return 0, ledger.ErrAttemptInFlight
	}
	f.claimed[prospectID] = true
	return len(f.attempts[prospectID]) + 1, nil
}

func (f *fakeLedger) Append(_ context.Context, prospectID string, attempt *model.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.attempts[prospectID] = append(f.attempts[prospectID], *attempt)
	delete(f.claimed, prospectID)
	return nil
}

func (f *fakeLedger) ReleaseAttempt(_ context.Context, prospectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.claimed, prospectID)
	return nil
}

func (f *fakeLedger) LatestAttempt(_ context.Context, prospectID string) (*model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	history := f.attempts[prospectID]
	if len(history) == 0 {
		return nil, nil
	}
	latest := history[len(history)-1]
	return &latest, nil
}

func (f *fakeLedger) ListAttempts(_ context.Context, prospectID string) ([]model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Attempt(nil), f.attempts[prospectID]...), nil
}

func (f *fakeLedger) AllSucceededOutputs(_ context.Context, prospectID string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	merged := make(map[string]any)
	for _, a := range f.attempts[prospectID] {
		for k, v := range a.SucceededOutputs() {
			merged[k] = v
		}
	}
	return merged, nil
}

func (f *fakeLedger) GetProspect(_ context.Context, id string) (*model.Prospect, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prospects[id]
	if !ok {
		return nil, ledger.ErrProspectNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeLedger) SaveProspect(_ context.Context, p *model.Prospect) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.prospects[p.ID] = &cp
	return nil
}

func (f *fakeLedger) DeleteStaleClaims(context.Context, time.Duration) (int, error) {
	return 0, nil
}

func (f *fakeLedger) Migrate(context.Context) error { return nil }
func (f *fakeLedger) Close() error                  { return nil }

// mockAdapter implements passes.Adapter for testing.
type mockAdapter struct {
	id      model.PassID
	outputs map[string]any
	err     error
	delay   time.Duration

	mu        sync.Mutex
	calls     int
	gotInputs map[string]any
}

func (m *mockAdapter) Pass() model.PassID { return m.id }

func (m *mockAdapter) Invoke(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	m.mu.Lock()
	m.calls++
	m.gotInputs = inputs
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.outputs, nil
}

func (m *mockAdapter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

package action

import (
	"context"
	"sync"

	"github.com/layneYoo/vms/internal/clone"
	"github.com/layneYoo/vms/internal/provider"
)

// mockCloner is a mock implementation of the Cloner interface for testing.
type mockCloner struct {
	mu sync.Mutex

	cloneAndCustomizeFunc func(ctx context.Context, template provider.VM, job clone.Job) (clone.Result, error)

	cloneAndCustomizeCalls []clone.Job
}

func newMockCloner() *mockCloner {
	m := &mockCloner{}
	m.cloneAndCustomizeFunc = func(ctx context.Context, template provider.VM, job clone.Job) (clone.Result, error) {
		return clone.Result{VM: job.NewName, Customized: true, Attempts: 1}, nil
	}
	return m
}

func (m *mockCloner) CloneAndCustomize(ctx context.Context, template provider.VM, job clone.Job) (clone.Result, error) {
	m.mu.Lock()
	m.cloneAndCustomizeCalls = append(m.cloneAndCustomizeCalls, job)
	m.mu.Unlock()
	return m.cloneAndCustomizeFunc(ctx, template, job)
}

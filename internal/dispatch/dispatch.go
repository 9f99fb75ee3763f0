// Package dispatch drives lifecycle actions either from an interactive menu
// loop or from a batch job description. Both modes share one Env holding the
// provider session and the inventory catalog for the run.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/layneYoo/vms/internal/action"
	"github.com/layneYoo/vms/internal/clone"
	"github.com/layneYoo/vms/internal/inventory"
	"github.com/layneYoo/vms/internal/metrics"
	"github.com/layneYoo/vms/internal/output"
	"github.com/layneYoo/vms/internal/provider"
)

// Env is the state shared by every action of a run. The dispatcher owns the
// session and closes it when a run ends.
type Env struct {
	Session  *provider.Session
	Catalog  *inventory.Catalog
	Executor *action.Executor
	Log      logr.Logger
}

// Options configure the executor built by NewEnv.
type Options struct {
	Policy clone.Policy
	// Timeout bounds each provider call of an action. Zero uses
	// action.DefaultTimeout.
	Timeout time.Duration
	// Metrics may be nil.
	Metrics *metrics.Recorder
}

// NewEnv builds the inventory catalog from a connected session and an
// executor whose clone orchestrator resolves host and datastore labels
// against that catalog.
func NewEnv(ctx context.Context, s *provider.Session, opts Options, log logr.Logger) (*Env, error) {
	catalog, err := inventory.Build(ctx, s, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build inventory: %w", err)
	}

	orch := clone.NewOrchestrator(catalog, opts.Policy, log, opts.Metrics)
	exec := action.NewExecutor(log, orch, opts.Metrics, opts.Timeout)
	return &Env{Session: s, Catalog: catalog, Executor: exec, Log: log}, nil
}

// execute acquires a fresh handle for target and runs req against it.
func (e *Env) execute(ctx context.Context, target provider.Item, req action.Request) (action.Outcome, error) {
	vm, err := e.Session.VM(ctx, target.ID)
	if err != nil {
		return action.Outcome{}, &action.Error{VM: target.Name, Action: req.Kind(), Err: err}
	}
	return e.Executor.Execute(ctx, vm, req)
}

func (e *Env) close() {
	if err := e.Session.Close(); err != nil {
		e.Log.Error(err, "failed to close provider session")
	}
}

// statusFormatter renders status reports on the console.
var statusFormatter output.Formatter = &output.TableFormatter{}

// isQuit reports whether err ends interactive input.
func isQuit(err error) bool {
	return errors.Is(err, errQuit)
}

var errQuit = errors.New("quit")

package action

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/layneYoo/vms/internal/clone"
	"github.com/layneYoo/vms/internal/metrics"
	"github.com/layneYoo/vms/internal/provider"
)

// DefaultTimeout bounds each provider call made by an action.
const DefaultTimeout = 5 * time.Minute

// Cloner runs a clone job. It is satisfied by *clone.Orchestrator.
type Cloner interface {
	CloneAndCustomize(ctx context.Context, template provider.VM, job clone.Job) (clone.Result, error)
}

// StatusReport is the snapshot returned by a Status action.
type StatusReport struct {
	VM           string              `json:"vm" yaml:"vm"`
	PowerState   provider.PowerState `json:"powerState" yaml:"powerState"`
	ToolsStatus  string              `json:"toolsStatus" yaml:"toolsStatus"`
	ResourcePool string              `json:"resourcePool" yaml:"resourcePool"`
	ClonedFrom   string              `json:"clonedFrom,omitempty" yaml:"clonedFrom,omitempty"`
}

// Outcome describes a finished action. Changed is false when a power
// action left the VM in a state other than the expected one.
type Outcome struct {
	VM      string
	Action  Kind
	Changed bool
	Status  *StatusReport
	Process *provider.ProcessResult
	Clone   *clone.Result
}

// Executor executes actions against VM handles.
type Executor struct {
	log     logr.Logger
	cloner  Cloner
	metrics *metrics.Recorder
	timeout time.Duration
}

// NewExecutor creates an Executor. cloner and rec may be nil; a nil cloner
// makes Clone requests fail with ErrUnsupported. A zero timeout uses
// DefaultTimeout.
func NewExecutor(log logr.Logger, cloner Cloner, rec *metrics.Recorder, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{
		log:     log,
		cloner:  cloner,
		metrics: rec,
		timeout: timeout,
	}
}

// Execute runs req against vm. Failures are returned as *Error.
func (e *Executor) Execute(ctx context.Context, vm provider.VM, req Request) (Outcome, error) {
	out, err := e.execute(ctx, vm, req)

	outcome := metrics.OutcomeSuccess
	switch {
	case err != nil:
		outcome = metrics.OutcomeError
	case !out.Changed:
		outcome = metrics.OutcomeNoop
	}
	e.metrics.Action(req.Kind().String(), outcome)

	if err != nil {
		return out, &Error{VM: vm.Name(), Action: req.Kind(), Err: err}
	}
	return out, nil
}

func (e *Executor) execute(ctx context.Context, vm provider.VM, req Request) (Outcome, error) {
	out := Outcome{VM: vm.Name(), Action: req.Kind()}
	log := e.log.WithValues("vm", vm.Name(), "action", req.Kind().String())

	// Clone manages its own per-call timeouts and retry deadline.
	if r, ok := req.(CloneRequest); ok {
		return e.clone(ctx, log, vm, r, out)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	switch r := req.(type) {
	case StartRequest:
		if err := vm.PowerOn(ctx); err != nil {
			return out, fmt.Errorf("failed to power on: %w", err)
		}
		return e.postCheck(ctx, log, vm, out, provider.PoweredOn, "vm powered on")

	case StopRequest:
		if err := vm.PowerOff(ctx); err != nil {
			return out, fmt.Errorf("failed to power off: %w", err)
		}
		return e.postCheck(ctx, log, vm, out, provider.PoweredOff, "vm powered off")

	case RebootRequest:
		if err := vm.RebootGuest(ctx); err != nil {
			return out, fmt.Errorf("failed to reboot guest: %w", err)
		}
		return e.postCheck(ctx, log, vm, out, provider.PoweredOn, "vm rebooted")

	case StatusRequest:
		report, err := e.status(ctx, vm)
		if err != nil {
			return out, err
		}
		out.Status = &report
		out.Changed = true
		return out, nil

	case RunCommandRequest:
		return e.runCommand(ctx, log, vm, r, out)

	case MigrateRequest:
		return out, provider.ErrNotImplemented

	default:
		return out, fmt.Errorf("%w: %s", ErrUnsupported, req.Kind())
	}
}

// postCheck re-queries the power state. A state other than want is a
// silent no-op, not an error.
func (e *Executor) postCheck(ctx context.Context, log logr.Logger, vm provider.VM, out Outcome, want provider.PowerState, msg string) (Outcome, error) {
	state, err := vm.Status(ctx)
	if err != nil {
		return out, fmt.Errorf("failed to query power state: %w", err)
	}
	if state != want {
		log.V(1).Info("power state unchanged after action", "state", string(state))
		return out, nil
	}
	out.Changed = true
	log.Info(msg)
	return out, nil
}

func (e *Executor) status(ctx context.Context, vm provider.VM) (StatusReport, error) {
	state, err := vm.Status(ctx)
	if err != nil {
		return StatusReport{}, fmt.Errorf("failed to query power state: %w", err)
	}
	tools, err := vm.ToolsStatus(ctx)
	if err != nil {
		return StatusReport{}, fmt.Errorf("failed to query tools status: %w", err)
	}
	pool, err := vm.ResourcePoolName(ctx)
	if err != nil {
		return StatusReport{}, fmt.Errorf("failed to query resource pool: %w", err)
	}
	report := StatusReport{
		VM:           vm.Name(),
		PowerState:   state,
		ToolsStatus:  tools,
		ResourcePool: pool,
	}

	// Provenance is informational; a failed read does not fail the action.
	if r, ok := vm.(provider.CloneSourceReporter); ok {
		source, err := r.ClonedFrom(ctx)
		if err != nil {
			e.log.Error(err, "clone source unavailable", "vm", vm.Name())
		}
		report.ClonedFrom = source
	}
	return report, nil
}

func (e *Executor) runCommand(ctx context.Context, log logr.Logger, vm provider.VM, r RunCommandRequest, out Outcome) (Outcome, error) {
	if r.Program == "" {
		return out, ErrEmptyCommand
	}

	if err := vm.LoginInGuest(ctx, r.Principal, r.Credential); err != nil {
		log.Error(err, "guest login failed", "principal", r.Principal)
		return out, fmt.Errorf("%w: %w", provider.ErrGuestAuth, err)
	}

	res, err := vm.StartProcess(ctx, r.Program, r.Args)
	if err != nil {
		return out, fmt.Errorf("failed to start %s: %w", r.Program, err)
	}

	out.Process = &res
	out.Changed = true
	log.Info("guest process finished", "program", r.Program, "pid", res.PID, "exitCode", res.ExitCode)
	return out, nil
}

func (e *Executor) clone(ctx context.Context, log logr.Logger, vm provider.VM, r CloneRequest, out Outcome) (Outcome, error) {
	if e.cloner == nil {
		return out, fmt.Errorf("%w: clone", ErrUnsupported)
	}

	res, err := e.cloner.CloneAndCustomize(ctx, vm, clone.Job{
		Template:       vm.Name(),
		NewName:        r.NewName,
		GuestIP:        r.TargetIP,
		HostLabel:      r.HostLabel,
		DatastoreLabel: r.DatastoreLabel,
	})
	if err != nil {
		return out, err
	}

	out.Clone = &res
	out.Changed = true
	log.V(1).Info("clone job finished", "clone", res.VM, "customized", res.Customized)
	return out, nil
}

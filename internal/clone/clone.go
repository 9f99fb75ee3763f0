// Package clone clones a template VM onto a resolved host and datastore and
// then customizes the guest network configuration with bounded retries.
package clone

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-logr/logr"

	"github.com/layneYoo/vms/internal/metrics"
	"github.com/layneYoo/vms/internal/provider"
)

var (
	// ErrUnresolvedTarget is returned when the host or datastore label of a
	// job is not in the inventory. No provider call is made.
	ErrUnresolvedTarget = errors.New("unresolved clone target")

	// ErrInvalidJob is returned for a job missing a name or carrying a guest
	// IP that is not IPv4.
	ErrInvalidJob = errors.New("invalid clone job")

	// ErrCloneFailed is returned when the provider clone call fails.
	ErrCloneFailed = errors.New("clone failed")

	// ErrCloneNotPoweredOn is returned when the clone does not reach the
	// powered on state, so the guest cannot be customized.
	ErrCloneNotPoweredOn = errors.New("clone is not powered on")

	// ErrCustomizationFailed is returned when every customization attempt
	// failed or the deadline passed.
	ErrCustomizationFailed = errors.New("guest customization failed")
)

// Resolver maps host and datastore labels to provider ids.
type Resolver interface {
	ResolveHost(label string) (string, error)
	ResolveDatastore(label string) (string, error)
}

// Policy controls guest customization after a clone.
type Policy struct {
	Enabled  bool
	User     string
	Password string

	// MaxAttempts and Deadline bound the customization loop; whichever is
	// reached first ends it.
	MaxAttempts int
	Backoff     time.Duration
	Deadline    time.Duration

	// PowerWaitAttempts bounds how often the clone's power state is polled
	// before giving up with ErrCloneNotPoweredOn.
	PowerWaitAttempts int

	// CallTimeout applies to each provider call. Zero means no timeout.
	CallTimeout time.Duration

	Network NetworkTemplate
}

// DefaultPolicy returns the customization policy used when nothing is
// configured.
func DefaultPolicy() Policy {
	return Policy{
		Enabled:           true,
		User:              "root",
		MaxAttempts:       120,
		Backoff:           time.Second,
		Deadline:          5 * time.Minute,
		PowerWaitAttempts: 10,
		CallTimeout:       5 * time.Minute,
		Network:           DefaultNetworkTemplate(),
	}
}

// Job is one clone of a template.
type Job struct {
	Template       string
	NewName        string
	GuestIP        string
	HostLabel      string
	DatastoreLabel string
}

// Result describes a finished clone job.
type Result struct {
	VM         string
	Customized bool
	Attempts   int
}

// Orchestrator runs clone jobs.
type Orchestrator struct {
	resolver Resolver
	policy   Policy
	log      logr.Logger
	metrics  *metrics.Recorder
}

// NewOrchestrator creates an Orchestrator. rec may be nil.
func NewOrchestrator(resolver Resolver, policy Policy, log logr.Logger, rec *metrics.Recorder) *Orchestrator {
	return &Orchestrator{
		resolver: resolver,
		policy:   policy,
		log:      log,
		metrics:  rec,
	}
}

// Policy returns the orchestrator's customization policy.
func (o *Orchestrator) Policy() Policy { return o.policy }

// CloneAndCustomize clones template per job, powers the clone on and, when
// the policy allows it, rewrites the guest network config and reboots the
// guest.
//
// Steps:
//  1. Resolve host and datastore labels
//  2. Clone with power on (single attempt)
//  3. Wait for the clone to report powered on
//  4. Log in, write the interface config, reboot; retry from login on failure
func (o *Orchestrator) CloneAndCustomize(ctx context.Context, template provider.VM, job Job) (Result, error) {
	start := time.Now()
	res, err := o.run(ctx, template, job)

	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
	}
	o.metrics.Clone(outcome, time.Since(start))
	return res, err
}

func (o *Orchestrator) run(ctx context.Context, template provider.VM, job Job) (Result, error) {
	log := o.log.WithValues("template", job.Template, "vm", job.NewName)
	res := Result{VM: job.NewName}

	// Step 1: Resolve labels before touching the provider
	hostID, err := o.resolver.ResolveHost(job.HostLabel)
	if err != nil {
		return res, fmt.Errorf("%w: host %q: %w", ErrUnresolvedTarget, job.HostLabel, err)
	}
	datastoreID, err := o.resolver.ResolveDatastore(job.DatastoreLabel)
	if err != nil {
		return res, fmt.Errorf("%w: datastore %q: %w", ErrUnresolvedTarget, job.DatastoreLabel, err)
	}
	if err := o.validate(job); err != nil {
		return res, err
	}

	// Step 2: Clone
	log.Info("cloning vm", "host", job.HostLabel, "datastore", job.DatastoreLabel, "ip", job.GuestIP)
	callCtx, cancel := o.callContext(ctx)
	vm, err := template.Clone(callCtx, provider.CloneSpec{
		Name:        job.NewName,
		HostID:      hostID,
		DatastoreID: datastoreID,
		GuestIP:     job.GuestIP,
		PowerOn:     true,
	})
	cancel()
	if err != nil {
		return res, fmt.Errorf("%w: %s: %w", ErrCloneFailed, job.NewName, err)
	}

	if !o.policy.Enabled {
		log.Info("clone complete, guest customization disabled")
		return res, nil
	}

	// Step 3: The guest can only be customized while running
	if err := o.waitPoweredOn(ctx, vm); err != nil {
		return res, err
	}

	// Step 4: Customize with bounded retries
	attempts, err := o.customizeWithRetry(ctx, log, vm, job.GuestIP)
	res.Attempts = attempts
	if err != nil {
		return res, err
	}

	res.Customized = true
	log.Info("clone customized", "ip", job.GuestIP, "attempts", attempts)
	return res, nil
}

func (o *Orchestrator) validate(job Job) error {
	if job.NewName == "" {
		return fmt.Errorf("%w: new vm name is required", ErrInvalidJob)
	}
	if !o.policy.Enabled && job.GuestIP == "" {
		return nil
	}
	if ip := net.ParseIP(job.GuestIP); ip == nil || ip.To4() == nil {
		return fmt.Errorf("%w: guest ip %q is not an IPv4 address", ErrInvalidJob, job.GuestIP)
	}
	return nil
}

func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.policy.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.policy.CallTimeout)
}

func (o *Orchestrator) waitPoweredOn(ctx context.Context, vm provider.VM) error {
	attempts := max(o.policy.PowerWaitAttempts, 1)

	var last provider.PowerState
	for i := 1; i <= attempts; i++ {
		callCtx, cancel := o.callContext(ctx)
		state, err := vm.Status(callCtx)
		cancel()
		if err == nil && state == provider.PoweredOn {
			return nil
		}
		last = state
		if err != nil {
			o.log.V(1).Info("failed to query clone power state", "vm", vm.Name(), "error", err.Error())
		}
		if i < attempts {
			if err := sleep(ctx, o.policy.Backoff); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrCloneNotPoweredOn, vm.Name(), err)
			}
		}
	}
	return fmt.Errorf("%w: %s reports %q", ErrCloneNotPoweredOn, vm.Name(), last)
}

func (o *Orchestrator) customizeWithRetry(ctx context.Context, log logr.Logger, vm provider.VM, ip string) (int, error) {
	maxAttempts := max(o.policy.MaxAttempts, 1)
	deadline := time.Now().Add(o.policy.Deadline)

	var lastErr error
	attempt := 0
	for attempt < maxAttempts {
		attempt++
		o.metrics.CustomizationAttempt()

		lastErr = o.customizeBefore(ctx, vm, ip, deadline)
		if lastErr == nil {
			return attempt, nil
		}
		log.V(1).Info("customization attempt failed", "attempt", attempt, "error", lastErr.Error())

		if attempt == maxAttempts {
			break
		}
		if err := ctx.Err(); err != nil {
			lastErr = fmt.Errorf("%w (last error: %v)", err, lastErr)
			break
		}
		if o.policy.Deadline > 0 && time.Now().Add(o.policy.Backoff).After(deadline) {
			lastErr = fmt.Errorf("deadline of %v reached: %w", o.policy.Deadline, lastErr)
			break
		}
		if err := sleep(ctx, o.policy.Backoff); err != nil {
			lastErr = fmt.Errorf("%w (last error: %v)", err, lastErr)
			break
		}
	}
	return attempt, fmt.Errorf("%w: %s after %d attempts: %w", ErrCustomizationFailed, vm.Name(), attempt, lastErr)
}

// customizeBefore runs one pass that cannot outlive the retry deadline.
func (o *Orchestrator) customizeBefore(ctx context.Context, vm provider.VM, ip string, deadline time.Time) error {
	if o.policy.Deadline <= 0 {
		return o.customize(ctx, vm, ip)
	}
	passCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	return o.customize(passCtx, vm, ip)
}

// customize runs one full pass: login, config rewrite, reboot.
func (o *Orchestrator) customize(ctx context.Context, vm provider.VM, ip string) error {
	callCtx, cancel := o.callContext(ctx)
	defer cancel()

	if err := vm.LoginInGuest(callCtx, o.policy.User, o.policy.Password); err != nil {
		return fmt.Errorf("failed to log into guest: %w", err)
	}

	for _, cmd := range o.policy.Network.Commands(ip) {
		res, err := vm.StartProcess(callCtx, cmd.Program, cmd.Args)
		if err != nil {
			return fmt.Errorf("failed to run %s: %w", cmd.Program, err)
		}
		if res.ExitCode != 0 {
			return fmt.Errorf("guest command exited with code %d: %v", res.ExitCode, cmd.Args)
		}
	}

	if err := vm.RebootGuest(callCtx); err != nil {
		return fmt.Errorf("failed to reboot guest: %w", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

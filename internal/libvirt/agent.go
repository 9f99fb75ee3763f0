package libvirt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/digitalocean/go-libvirt"

	"github.com/layneYoo/vms/internal/provider"
)

// Guest transports.
const (
	TransportAgent = "agent"
	TransportSSH   = "ssh"
)

// GuestOptions select how in-guest commands are run.
type GuestOptions struct {
	// Transport is TransportAgent (default) or TransportSSH.
	Transport string
	// SSHPort is the guest sshd port for TransportSSH.
	SSHPort int
	// Timeout bounds the SSH handshake.
	Timeout time.Duration
}

// guestTransport opens guest sessions.
type guestTransport interface {
	Login(ctx context.Context, dom libvirt.Domain, principal, credential string) (guestSession, error)
}

// guestSession runs processes in a guest after a successful login.
type guestSession interface {
	Run(ctx context.Context, program string, args []string) (provider.ProcessResult, error)
}

const (
	// agentCommandTimeout is the per-command guest agent timeout in seconds.
	agentCommandTimeout int32 = 5

	// agentPollInterval is how often guest-exec-status is polled.
	agentPollInterval = 500 * time.Millisecond
)

// agentTransport runs commands through the QEMU guest agent.
type agentTransport struct {
	lv           libvirtClient
	pollInterval time.Duration
}

func newAgentTransport(lv libvirtClient) *agentTransport {
	return &agentTransport{lv: lv, pollInterval: agentPollInterval}
}

type agentRequest struct {
	Execute   string `json:"execute"`
	Arguments any    `json:"arguments,omitempty"`
}

type guestExecArgs struct {
	Path          string   `json:"path"`
	Arg           []string `json:"arg,omitempty"`
	CaptureOutput bool     `json:"capture-output"`
}

type guestExecStatusArgs struct {
	PID int64 `json:"pid"`
}

type guestExecReply struct {
	PID int64 `json:"pid"`
}

type guestExecStatusReply struct {
	Exited   bool   `json:"exited"`
	ExitCode int    `json:"exitcode"`
	OutData  string `json:"out-data"`
	ErrData  string `json:"err-data"`
}

// command sends req to the guest agent and decodes the "return" member of
// the reply into out, which may be nil.
func (a *agentTransport) command(ctx context.Context, dom libvirt.Domain, req agentRequest, out any) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode agent command: %w", err)
	}

	reply, err := call(ctx, func() (libvirt.OptString, error) {
		return a.lv.QEMUDomainAgentCommand(dom, string(data), agentCommandTimeout, 0)
	})
	if err != nil {
		return fmt.Errorf("guest agent command %s failed: %w", req.Execute, err)
	}
	if len(reply) == 0 {
		return fmt.Errorf("guest agent command %s returned no reply", req.Execute)
	}

	var envelope struct {
		Return json.RawMessage `json:"return"`
	}
	if err := json.Unmarshal([]byte(reply[0]), &envelope); err != nil {
		return fmt.Errorf("failed to decode agent reply: %w", err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Return, out); err != nil {
		return fmt.Errorf("failed to decode agent reply: %w", err)
	}
	return nil
}

func (a *agentTransport) ping(ctx context.Context, dom libvirt.Domain) error {
	return a.command(ctx, dom, agentRequest{Execute: "guest-ping"}, nil)
}

// Login checks that the agent answers. The agent has no notion of guest
// users: commands run with the agent's privileges whatever the principal.
func (a *agentTransport) Login(ctx context.Context, dom libvirt.Domain, principal, credential string) (guestSession, error) {
	if err := a.ping(ctx, dom); err != nil {
		return nil, fmt.Errorf("guest agent not responding: %w", err)
	}
	return &agentSession{agent: a, dom: dom}, nil
}

type agentSession struct {
	agent *agentTransport
	dom   libvirt.Domain
}

// Run starts program with guest-exec and polls guest-exec-status until it
// exits or ctx is done.
func (s *agentSession) Run(ctx context.Context, program string, args []string) (provider.ProcessResult, error) {
	var started guestExecReply
	err := s.agent.command(ctx, s.dom, agentRequest{
		Execute:   "guest-exec",
		Arguments: guestExecArgs{Path: program, Arg: args, CaptureOutput: true},
	}, &started)
	if err != nil {
		return provider.ProcessResult{}, err
	}

	ticker := time.NewTicker(s.agent.pollInterval)
	defer ticker.Stop()

	for {
		var status guestExecStatusReply
		err := s.agent.command(ctx, s.dom, agentRequest{
			Execute:   "guest-exec-status",
			Arguments: guestExecStatusArgs{PID: started.PID},
		}, &status)
		if err != nil {
			return provider.ProcessResult{PID: started.PID}, err
		}

		if status.Exited {
			return provider.ProcessResult{
				PID:      started.PID,
				ExitCode: status.ExitCode,
				Output:   decodeOutput(status.OutData) + decodeOutput(status.ErrData),
			}, nil
		}

		select {
		case <-ctx.Done():
			return provider.ProcessResult{PID: started.PID}, fmt.Errorf("waiting for guest process %d: %w", started.PID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func decodeOutput(data string) string {
	if data == "" {
		return ""
	}
	out, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return ""
	}
	return string(out)
}

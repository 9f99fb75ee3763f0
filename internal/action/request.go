// Package action defines the lifecycle action vocabulary and executes one
// action against one VM handle.
package action

import (
	"fmt"
	"strings"
)

// Kind identifies a lifecycle action.
type Kind int

const (
	Start Kind = iota + 1
	Stop
	Status
	Reboot
	RunCommand
	Clone
	Migrate
)

var kindNames = map[Kind]string{
	Start:      "start",
	Stop:       "stop",
	Status:     "status",
	Reboot:     "reboot",
	RunCommand: "runcmd",
	Clone:      "clone",
	Migrate:    "migrate",
}

// String returns the action name used in logs and metrics.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int(k))
}

// Request is one action to execute. Requests are immutable values.
type Request interface {
	Kind() Kind
}

type (
	StartRequest   struct{}
	StopRequest    struct{}
	StatusRequest  struct{}
	RebootRequest  struct{}
	MigrateRequest struct{}
)

func (StartRequest) Kind() Kind   { return Start }
func (StopRequest) Kind() Kind    { return Stop }
func (StatusRequest) Kind() Kind  { return Status }
func (RebootRequest) Kind() Kind  { return Reboot }
func (MigrateRequest) Kind() Kind { return Migrate }

// RunCommandRequest runs a program inside the guest.
type RunCommandRequest struct {
	Principal  string
	Credential string
	Program    string
	Args       []string
}

func (RunCommandRequest) Kind() Kind { return RunCommand }

// CloneRequest clones the target VM.
type CloneRequest struct {
	NewName        string
	TargetIP       string
	HostLabel      string
	DatastoreLabel string
}

func (CloneRequest) Kind() Kind { return Clone }

// SplitCommandLine splits line on whitespace into a program and its
// arguments. Quotes and escapes are not interpreted, so an argument cannot
// contain whitespace.
func SplitCommandLine(line string) (program string, args []string, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil, ErrEmptyCommand
	}
	return fields[0], fields[1:], nil
}

// NewRunCommandRequest builds a RunCommandRequest from a command line.
func NewRunCommandRequest(principal, credential, line string) (RunCommandRequest, error) {
	program, args, err := SplitCommandLine(line)
	if err != nil {
		return RunCommandRequest{}, err
	}
	return RunCommandRequest{
		Principal:  principal,
		Credential: credential,
		Program:    program,
		Args:       args,
	}, nil
}

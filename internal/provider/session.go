package provider

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
)

// State is the connection state of a Session.
type State int

const (
	Disconnected State = iota
	Connected
)

// String returns the state name.
func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// Session owns the one provider connection of a run. All inventory and VM
// operations go through Conn or VM, which refuse to work once the session
// is disconnected.
type Session struct {
	address   string
	principal string
	state     State
	kind      Kind
	conn      Conn
	log       logr.Logger
}

// Open connects to the endpoint and returns a connected Session.
// Connection failures are wrapped with ErrConnection.
func Open(ctx context.Context, p Provider, ep Endpoint, log logr.Logger) (*Session, error) {
	address := ep.Address
	if address == "" {
		address = "local"
	}

	log.V(1).Info("connecting to provider", "address", address, "principal", ep.Principal)
	conn, err := p.Connect(ctx, ep)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, address, err)
	}

	s := &Session{
		address:   address,
		principal: ep.Principal,
		state:     Connected,
		kind:      conn.Kind(),
		conn:      conn,
		log:       log,
	}
	log.Info("connected to provider", "address", address, "kind", s.kind.String())
	return s, nil
}

// Address returns the endpoint address ("local" for the default socket).
func (s *Session) Address() string { return s.address }

// Principal returns the principal the session authenticated as.
func (s *Session) Principal() string { return s.principal }

// State returns the current connection state.
func (s *Session) State() State { return s.state }

// Kind returns the provider kind reported at connect time.
func (s *Session) Kind() Kind { return s.kind }

// Conn returns the live connection, or ErrNotConnected.
func (s *Session) Conn() (Conn, error) {
	if s == nil || s.state != Connected || s.conn == nil {
		return nil, ErrNotConnected
	}
	return s.conn, nil
}

// VM acquires a fresh handle for the VM at path.
func (s *Session) VM(ctx context.Context, path string) (VM, error) {
	conn, err := s.Conn()
	if err != nil {
		return nil, err
	}
	vm, err := conn.VMByPath(ctx, path)
	if err != nil {
		return nil, err
	}
	if vm == nil {
		return nil, fmt.Errorf("%w: %s", ErrVMNotFound, path)
	}
	return vm, nil
}

// Close disconnects the session. It is safe to call Close multiple times.
func (s *Session) Close() error {
	if s == nil || s.state != Connected {
		return nil
	}
	s.state = Disconnected
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to disconnect from %s: %w", s.address, err)
	}
	s.log.Info("disconnected from provider", "address", s.address)
	return nil
}

package provider_test

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layneYoo/vms/internal/provider"
	"github.com/layneYoo/vms/internal/provider/providertest"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    provider.Kind
		wantErr bool
	}{
		{in: "host", want: provider.SingleHost},
		{in: "HOST", want: provider.SingleHost},
		{in: "single-host", want: provider.SingleHost},
		{in: "cluster", want: provider.ManagementCluster},
		{in: " management-cluster ", want: provider.ManagementCluster},
		{in: "esx", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := provider.ParseKind(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen(t *testing.T) {
	conn := providertest.NewConn(provider.ManagementCluster)
	p := &providertest.Provider{
		ConnectFunc: func(ctx context.Context, ep provider.Endpoint) (provider.Conn, error) {
			return conn, nil
		},
	}

	s, err := provider.Open(context.Background(), p, provider.Endpoint{Address: "10.0.0.1", Principal: "root"}, logr.Discard())
	require.NoError(t, err)

	assert.Equal(t, provider.Connected, s.State())
	assert.Equal(t, provider.ManagementCluster, s.Kind())
	assert.Equal(t, "10.0.0.1", s.Address())
	assert.Equal(t, "root", s.Principal())
	require.Len(t, p.ConnectCalls, 1)

	got, err := s.Conn()
	require.NoError(t, err)
	assert.Same(t, conn, got)
}

func TestOpen_DefaultAddress(t *testing.T) {
	s, err := provider.Open(context.Background(), &providertest.Provider{}, provider.Endpoint{}, logr.Discard())
	require.NoError(t, err)
	assert.Equal(t, "local", s.Address())
}

func TestOpen_ConnectionError(t *testing.T) {
	boom := errors.New("auth rejected")
	p := &providertest.Provider{
		ConnectFunc: func(ctx context.Context, ep provider.Endpoint) (provider.Conn, error) {
			return nil, boom
		},
	}

	s, err := provider.Open(context.Background(), p, provider.Endpoint{Address: "esx01"}, logr.Discard())
	require.Error(t, err)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, provider.ErrConnection)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "esx01")
}

func TestSession_NotConnectedAfterClose(t *testing.T) {
	conn := providertest.NewConn(provider.SingleHost)
	conn.AddVM("web01 (a)", "a", nil)
	p := &providertest.Provider{
		ConnectFunc: func(ctx context.Context, ep provider.Endpoint) (provider.Conn, error) {
			return conn, nil
		},
	}

	s, err := provider.Open(context.Background(), p, provider.Endpoint{}, logr.Discard())
	require.NoError(t, err)

	_, err = s.VM(context.Background(), "a")
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, conn.CloseCalls)
	assert.Equal(t, provider.Disconnected, s.State())

	_, err = s.Conn()
	assert.ErrorIs(t, err, provider.ErrNotConnected)

	_, err = s.VM(context.Background(), "a")
	assert.ErrorIs(t, err, provider.ErrNotConnected)
}

func TestSession_NilIsNotConnected(t *testing.T) {
	var s *provider.Session
	_, err := s.Conn()
	assert.ErrorIs(t, err, provider.ErrNotConnected)
	assert.NoError(t, s.Close())
}

func TestSession_VMNotFound(t *testing.T) {
	s, err := provider.Open(context.Background(), &providertest.Provider{}, provider.Endpoint{}, logr.Discard())
	require.NoError(t, err)

	_, err = s.VM(context.Background(), "missing")
	assert.ErrorIs(t, err, provider.ErrVMNotFound)
}

func TestSession_CloseError(t *testing.T) {
	conn := providertest.NewConn(provider.SingleHost)
	conn.CloseErr = errors.New("socket closed")
	p := &providertest.Provider{
		ConnectFunc: func(ctx context.Context, ep provider.Endpoint) (provider.Conn, error) {
			return conn, nil
		},
	}

	s, err := provider.Open(context.Background(), p, provider.Endpoint{}, logr.Discard())
	require.NoError(t, err)

	err = s.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to disconnect")
	assert.Equal(t, provider.Disconnected, s.State())
}

package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_String(t *testing.T) {
	assert.Equal(t, "start", Start.String())
	assert.Equal(t, "runcmd", RunCommand.String())
	assert.Equal(t, "migrate", Migrate.String())
	assert.Equal(t, "action(42)", Kind(42).String())
}

func TestRequest_Kind(t *testing.T) {
	tests := []struct {
		req  Request
		want Kind
	}{
		{StartRequest{}, Start},
		{StopRequest{}, Stop},
		{StatusRequest{}, Status},
		{RebootRequest{}, Reboot},
		{RunCommandRequest{}, RunCommand},
		{CloneRequest{}, Clone},
		{MigrateRequest{}, Migrate},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.req.Kind())
	}
}

func TestSplitCommandLine(t *testing.T) {
	tests := []struct {
		name        string
		line        string
		wantProgram string
		wantArgs    []string
		wantErr     bool
	}{
		{name: "program only", line: "uptime", wantProgram: "uptime", wantArgs: []string{}},
		{name: "args", line: "/bin/ls -l /tmp", wantProgram: "/bin/ls", wantArgs: []string{"-l", "/tmp"}},
		{name: "collapses whitespace", line: "  echo \t a   b ", wantProgram: "echo", wantArgs: []string{"a", "b"}},
		{name: "quotes are not interpreted", line: `echo "a b"`, wantProgram: "echo", wantArgs: []string{`"a`, `b"`}},
		{name: "empty", line: "", wantErr: true},
		{name: "blank", line: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			program, args, err := SplitCommandLine(tt.line)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrEmptyCommand)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantProgram, program)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestNewRunCommandRequest(t *testing.T) {
	req, err := NewRunCommandRequest("root", "pw", "/sbin/reboot -f")
	require.NoError(t, err)
	assert.Equal(t, RunCommandRequest{Principal: "root", Credential: "pw", Program: "/sbin/reboot", Args: []string{"-f"}}, req)

	_, err = NewRunCommandRequest("root", "pw", "")
	assert.ErrorIs(t, err, ErrEmptyCommand)
}

package cli

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestServe_StopsOnCancel serves until the command context ends.
func TestServe_StopsOnCancel(t *testing.T) {
	workspace(t)
	mustRun(t, "new", "factory")

	ctx, cancel := context.WithCancel(context.Background())
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"serve", "factory", "--listen", "127.0.0.1:0"})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
	assert.Contains(t, out.String(), "Serving factory on 127.0.0.1:0")
}

// TestServe_BadAddress fails without hanging.
func TestServe_BadAddress(t *testing.T) {
	workspace(t)
	mustRun(t, "new", "factory")

	_, err := runCLI(t, "serve", "factory", "--listen", "not-an-address")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

// TestServe_MissingSave is a command error.
func TestServe_MissingSave(t *testing.T) {
	workspace(t)
	_, err := runCLI(t, "serve", "nope")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package container

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockExecutor records calls and returns configured responses.
type mockExecutor struct {
	availableBins map[string]bool // binary -> whether LookPath succeeds
	runnableCmds  map[string]bool // "bin arg1 arg2" -> whether RunSilent succeeds
	pipedArgs     []string
	runPipedFunc  func(name string, stdin io.Reader, stdout io.Writer) error
}

func (m *mockExecutor) LookPath(file string) (string, error) {
	if m.availableBins[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("not found: " + file)
}

func (m *mockExecutor) RunSilent(_ context.Context, name string, args ...string) error {
	key := name + " " + strings.Join(args, " ")
	if m.runnableCmds[key] {
		return nil
	}
	return errors.New("command failed: " + key)
}

func (m *mockExecutor) RunPiped(_ context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error {
	m.pipedArgs = args
	if m.runPipedFunc != nil {
		return m.runPipedFunc(name, stdin, stdout)
	}
	return nil
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		exec     *mockExecutor
		wantName string
		wantErr  bool
	}{
		{
			name: "docker available",
			exec: &mockExecutor{
				availableBins: map[string]bool{"docker": true},
				runnableCmds:  map[string]bool{"docker info": true},
			},
			wantName: "docker",
		},
		{
			name: "podman fallback when docker missing",
			exec: &mockExecutor{
				availableBins: map[string]bool{"podman": true},
				runnableCmds:  map[string]bool{"podman info": true},
			},
			wantName: "podman",
		},
		{
			name:    "neither available",
			exec:    &mockExecutor{},
			wantErr: true,
		},
		{
			name: "docker daemon down, podman works",
			exec: &mockExecutor{
				availableBins: map[string]bool{"docker": true, "podman": true},
				runnableCmds:  map[string]bool{"podman info": true},
			},
			wantName: "podman",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := detect(context.Background(), tt.exec)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "no container runtime available")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, rt.Name())
		})
	}
}

func TestImageExists(t *testing.T) {
	tests := []struct {
		name    string
		mkRT    func(*mockExecutor) Runtime
		cmds    map[string]bool
		wantErr bool
	}{
		{"docker found", func(e *mockExecutor) Runtime { return newDockerRuntime(e) }, map[string]bool{"docker image inspect markitdown:latest": true}, false},
		{"docker missing", func(e *mockExecutor) Runtime { return newDockerRuntime(e) }, nil, true},
		{"podman found", func(e *mockExecutor) Runtime { return newPodmanRuntime(e) }, map[string]bool{"podman image exists markitdown:latest": true}, false},
		{"podman missing", func(e *mockExecutor) Runtime { return newPodmanRuntime(e) }, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := tt.mkRT(&mockExecutor{runnableCmds: tt.cmds})
			err := rt.ImageExists(context.Background(), "markitdown:latest")
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "markitdown:latest")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRun(t *testing.T) {
	e := &mockExecutor{runPipedFunc: func(name string, stdin io.Reader, stdout io.Writer) error {
		data, _ := io.ReadAll(stdin)
		_, _ = stdout.Write([]byte(name + ": " + string(data)))
		return nil
	}}
	var out bytes.Buffer
	err := newPodmanRuntime(e).Run(context.Background(), "markitdown:latest", strings.NewReader("%PDF"), &out)
	require.NoError(t, err)
	assert.Equal(t, "podman: %PDF", out.String())
	assert.Equal(t, []string{"run", "--rm", "-i", "--network=none", "markitdown:latest"}, e.pipedArgs)
}

func TestRun_Failure(t *testing.T) {
	e := &mockExecutor{runPipedFunc: func(string, io.Reader, io.Writer) error {
		return errors.New("exit status 1")
	}}
	err := newDockerRuntime(e).Run(context.Background(), "markitdown:latest", strings.NewReader(""), io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "running docker container markitdown:latest")
}

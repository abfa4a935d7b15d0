// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schedule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/mtb-analyzer/internal/task"
)

type fakeStarter struct {
	accept bool
	names  []string
}

func (f *fakeStarter) Start(name string, _ task.Func) bool {
	f.names = append(f.names, name)
	return f.accept
}

func noop(context.Context, *task.Run) error { return nil }

func TestValidate(t *testing.T) {
	tests := []struct {
		spec    string
		wantErr bool
	}{
		{"0 7 * * *", false},
		{"*/30 6-18 * * 1-5", false},
		{"@daily", true},
		{"0 7 * *", true},
		{"61 * * * *", true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			err := Validate(tt.spec)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New("not a schedule", &fakeStarter{}, "sync", noop, nil)
	assert.Error(t, err)
}

func TestTrigger(t *testing.T) {
	starter := &fakeStarter{accept: true}
	s, err := New("0 7 * * *", starter, "sync: starting", noop, nil)
	require.NoError(t, err)

	s.trigger("sync: starting", noop)
	starter.accept = false
	s.trigger("sync: starting", noop)
	assert.Equal(t, []string{"sync: starting", "sync: starting"}, starter.names)
}

func TestStartStop(t *testing.T) {
	s, err := New("0 7 * * *", &fakeStarter{}, "sync", noop, nil)
	require.NoError(t, err)
	assert.True(t, s.Next().IsZero())

	s.Start()
	assert.False(t, s.Next().IsZero())
	assert.Equal(t, 7, s.Next().Hour())
	s.Stop(context.Background())
}

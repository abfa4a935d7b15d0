// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package task

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	t := time.Date(2026, 3, 12, 9, 5, 7, 0, time.UTC)
	return func() time.Time { return t }
}

func TestStart_RejectsSecondWhileRunning(t *testing.T) {
	e := New(context.Background(), WithClock(fixedClock()))
	release := make(chan struct{})
	started := make(chan struct{})

	ok := e.Start("scrape", func(ctx context.Context, r *Run) error {
		r.SetTotal(4)
		r.SetProgress(1)
		r.Logf("Scraping MTB 10/2026")
		close(started)
		<-release
		return nil
	})
	require.True(t, ok)
	<-started

	st := e.Status()
	assert.True(t, st.Running)
	assert.Equal(t, "scrape", st.Task)

	called := false
	assert.False(t, e.Start("analyze", func(context.Context, *Run) error { called = true; return nil }))
	after := e.Status()
	assert.Equal(t, st, after, "rejected start leaves the running operation untouched")
	assert.Equal(t, []string{"[09:05:07] Scraping MTB 10/2026"}, after.Logs)
	assert.Equal(t, 1, after.Progress)
	assert.Equal(t, 4, after.Total)
	assert.Empty(t, after.Error)

	close(release)
	e.Wait()
	assert.False(t, called)

	st = e.Status()
	assert.False(t, st.Running)
	assert.Empty(t, st.Task)
	assert.True(t, e.Start("analyze", func(context.Context, *Run) error { return nil }))
	e.Wait()
}

func TestStart_ResetsState(t *testing.T) {
	e := New(context.Background(), WithClock(fixedClock()))
	e.Start("first", func(_ context.Context, r *Run) error {
		r.SetTotal(3)
		r.SetProgress(2)
		r.Logf("old line")
		return errors.New("boom")
	})
	e.Wait()

	st := e.Status()
	assert.Equal(t, "boom", st.Error)
	assert.Equal(t, 2, st.Progress)
	assert.Equal(t, 3, st.Total)

	seen := make(chan struct{})
	e.Start("second", func(_ context.Context, r *Run) error {
		st := e.Status()
		assert.Empty(t, st.Error)
		assert.Empty(t, st.Logs)
		assert.Zero(t, st.Progress)
		assert.Zero(t, st.Total)
		close(seen)
		return nil
	})
	<-seen
	e.Wait()
}

func TestRun_ErrorRecorded(t *testing.T) {
	e := New(context.Background(), WithClock(fixedClock()))
	e.Start("sync", func(context.Context, *Run) error {
		return fmt.Errorf("sync finished with %d failure(s)", 2)
	})
	e.Wait()

	st := e.Status()
	assert.False(t, st.Running)
	assert.Equal(t, "sync finished with 2 failure(s)", st.Error)
	require.NotEmpty(t, st.Logs)
	assert.Equal(t, "[09:05:07] ERROR: sync finished with 2 failure(s)", st.Logs[len(st.Logs)-1])
}

func TestRun_PanicBecomesError(t *testing.T) {
	e := New(context.Background())
	e.Start("scan", func(context.Context, *Run) error { panic("nil edition") })
	e.Wait()
	assert.Equal(t, "panic: nil edition", e.Status().Error)
	assert.False(t, e.Running())
}

func TestLogs_CappedAndTail(t *testing.T) {
	e := New(context.Background(), WithClock(fixedClock()))
	e.Start("scrape", func(_ context.Context, r *Run) error {
		for i := 0; i < 150; i++ {
			r.Logf("line %d", i)
		}
		return nil
	})
	e.Wait()

	e.mu.Lock()
	assert.Len(t, e.logs, maxLogs)
	assert.Equal(t, "[09:05:07] line 50", e.logs[0])
	e.mu.Unlock()

	st := e.Status()
	require.Len(t, st.Logs, statusLogs)
	assert.Equal(t, "[09:05:07] line 100", st.Logs[0])
	assert.Equal(t, "[09:05:07] line 149", st.Logs[statusLogs-1])

	e.ClearLogs()
	assert.Empty(t, e.Status().Logs)
}

func TestSetTask(t *testing.T) {
	e := New(context.Background())
	phase := make(chan struct{})
	release := make(chan struct{})
	e.Start("sync", func(_ context.Context, r *Run) error {
		r.SetTask("sync: scraping")
		close(phase)
		<-release
		return nil
	})
	<-phase
	assert.Equal(t, "sync: scraping", e.Status().Task)
	close(release)
	e.Wait()
}

func TestExclusive(t *testing.T) {
	e := New(context.Background())

	called := false
	ok, err := e.Exclusive(func() error { called = true; return nil })
	assert.True(t, ok)
	assert.NoError(t, err)
	assert.True(t, called)
	assert.False(t, e.Running())

	ok, err = e.Exclusive(func() error { return errors.New("db locked") })
	assert.True(t, ok)
	assert.EqualError(t, err, "db locked")

	release := make(chan struct{})
	started := make(chan struct{})
	e.Start("analyze", func(context.Context, *Run) error {
		close(started)
		<-release
		return nil
	})
	<-started

	called = false
	ok, err = e.Exclusive(func() error { called = true; return nil })
	assert.False(t, ok)
	assert.NoError(t, err)
	assert.False(t, called)

	close(release)
	e.Wait()
}

func TestRunSync(t *testing.T) {
	var out bytes.Buffer
	e := New(context.Background(), WithOutput(&out), WithClock(fixedClock()))

	err := e.RunSync("scan", func(_ context.Context, r *Run) error {
		r.Logf("Found %d editions", 3)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "[09:05:07] Found 3 editions\n", out.String())

	err = e.RunSync("scan", func(context.Context, *Run) error { return errors.New("archive down") })
	assert.EqualError(t, err, "archive down")
	assert.True(t, strings.HasSuffix(out.String(), "ERROR: archive down\n"))
}

func TestRunSync_Panic(t *testing.T) {
	e := New(context.Background(), WithClock(fixedClock()))

	err := e.RunSync("scan", func(context.Context, *Run) error { panic("boom") })
	assert.EqualError(t, err, "panic: boom")
	assert.Equal(t, "panic: boom", e.Status().Error)
	assert.False(t, e.Running())
	e.Wait()
}

func TestRunSync_Busy(t *testing.T) {
	e := New(context.Background())
	release := make(chan struct{})
	e.Start("sync", func(context.Context, *Run) error { <-release; return nil })

	err := e.RunSync("scan", func(context.Context, *Run) error { return nil })
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	e.Wait()
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := New(ctx)
	e.Start("scrape", func(ctx context.Context, _ *Run) error {
		<-ctx.Done()
		return ctx.Err()
	})
	cancel()
	e.Wait()
	assert.Equal(t, context.Canceled.Error(), e.Status().Error)
}

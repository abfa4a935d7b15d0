// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package schedule triggers periodic syncs from a cron expression.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/pdiddy/mtb-analyzer/internal/task"
)

// Starter is the part of task.Engine the scheduler needs.
type Starter interface {
	Start(name string, fn task.Func) bool
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Scheduler starts a job on a cron schedule. A trigger that arrives while
// another operation runs is skipped.
type Scheduler struct {
	cron    *cron.Cron
	starter Starter
	log     *zap.Logger
	entry   cron.EntryID
}

// Validate reports whether spec is a valid five-field cron expression.
func Validate(spec string) error {
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("parsing cron expression %q: %w", spec, err)
	}
	return nil
}

// New registers the job name/fn under spec. Call Start to begin.
func New(spec string, starter Starter, name string, fn task.Func, log *zap.Logger) (*Scheduler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		starter: starter,
		log:     log.With(zap.String("component", "schedule")),
	}
	entry, err := s.cron.AddFunc(spec, func() { s.trigger(name, fn) })
	if err != nil {
		return nil, fmt.Errorf("parsing cron expression %q: %w", spec, err)
	}
	s.entry = entry
	return s, nil
}

func (s *Scheduler) trigger(name string, fn task.Func) {
	if !s.starter.Start(name, fn) {
		s.log.Info("scheduled run skipped, another task is running", zap.String("task", name))
		return
	}
	s.log.Info("scheduled run started", zap.String("task", name))
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Time("next_run", s.Next()))
}

// Next returns the next trigger time, zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// Stop halts the scheduler. It does not wait for started operations; the
// task engine owns those.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

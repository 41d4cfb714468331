package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name     string
	schedule string
}

func (j *stubJob) Name() string              { return j.name }
func (j *stubJob) Schedule() string          { return j.schedule }
func (j *stubJob) Run(context.Context) error { return nil }

func TestRegisterJob_Duplicate(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil)
	if err := s.RegisterJob(&stubJob{name: "a", schedule: "* * * * *"}); err != nil {
		t.Fatal(err)
	}
	if err := s.RegisterJob(&stubJob{name: "a", schedule: "* * * * *"}); err == nil {
		t.Error("expected duplicate name error")
	}
}

func TestStart_InvalidSchedule(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil)
	if err := s.RegisterJob(&stubJob{name: "bad", schedule: "not a schedule"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err == nil {
		t.Error("expected error for invalid schedule expression")
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil)
	if err := s.RegisterJob(&stubJob{name: "ok", schedule: "0 * * * *"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

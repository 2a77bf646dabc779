// Package engine drives periodic background jobs (fps broadcast, health
// and resource sampling) off a single cron scheduler, grounded in the
// teacher's flow Scheduler.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a named periodic task.
type Job struct {
	Name     string
	CronExpr string
	Enabled  bool
}

// Scheduler runs named jobs on cron or fixed-interval schedules.
type Scheduler struct {
	cron    *cron.Cron
	mu      sync.RWMutex
	entries map[string]cron.EntryID
	exprs   map[string]string
}

// NewScheduler builds a stopped Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		entries: make(map[string]cron.EntryID),
		exprs:   make(map[string]string),
	}
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler, waiting for any in-flight job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// AddCronJob schedules fn on a standard 5+second cron expression.
func (s *Scheduler) AddCronJob(name, cronExpr string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("scheduler: job %q already registered", name)
	}

	id, err := s.cron.AddFunc(cronExpr, fn)
	if err != nil {
		return fmt.Errorf("scheduler: add job %q: %w", name, err)
	}

	s.entries[name] = id
	s.exprs[name] = cronExpr
	return nil
}

// AddIntervalJob schedules fn to run every interval.
func (s *Scheduler) AddIntervalJob(name string, interval time.Duration, fn func()) error {
	return s.AddCronJob(name, fmt.Sprintf("@every %s", interval), fn)
}

// RemoveJob cancels a previously scheduled job.
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, exists := s.entries[name]
	if !exists {
		return fmt.Errorf("scheduler: no job named %q", name)
	}

	s.cron.Remove(id)
	delete(s.entries, name)
	delete(s.exprs, name)
	return nil
}

// Jobs returns every currently scheduled job.
func (s *Scheduler) Jobs() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]Job, 0, len(s.entries))
	for name, expr := range s.exprs {
		jobs = append(jobs, Job{Name: name, CronExpr: expr, Enabled: true})
	}
	return jobs
}

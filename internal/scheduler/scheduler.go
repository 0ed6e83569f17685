// Package scheduler implements cron-triggered jobs: a small persistent
// table of 5-field cron expressions, reloaded on start, each firing an
// event-bus notification and a generic command execution.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/nextlevelbuilder/clara/internal/eventbus"
	"github.com/nextlevelbuilder/clara/internal/tools"
)

// EventTypeTriggered is the event type emitted on the bus when a job fires.
const EventTypeTriggered = "schedule_triggered"

// systemCommandSkill is the generic skill name jobs execute their command
// through, matching the on-fire sequence's "generic system-command skill".
const systemCommandSkill = "system_command"

// Notifier is the thin contract to the notification service: scheduled jobs
// send their (truncated) result as a server-initiated notification when one
// is wired.
type Notifier interface {
	Notify(ctx context.Context, message string, channels []string)
}

// Job is one persisted scheduled command.
type Job struct {
	Name      string    `json:"name"`
	Cron      string    `json:"cron"`
	Command   string    `json:"command"`
	CreatedAt time.Time `json:"created_at"`

	lastFired string // "YYYY-MM-DD HH:MM" of the last minute this job fired, dedupes same-minute ticks
}

// Scheduler is the cron-triggered job engine.
type Scheduler struct {
	mu       sync.Mutex
	jobs     map[string]*Job
	path     string
	bus      *eventbus.Bus
	registry *tools.Registry
	notifier Notifier

	cancel context.CancelFunc
	done   chan struct{}
}

func New(storageDir string, bus *eventbus.Bus, registry *tools.Registry, notifier Notifier) *Scheduler {
	s := &Scheduler{
		jobs:     make(map[string]*Job),
		bus:      bus,
		registry: registry,
		notifier: notifier,
	}
	if storageDir != "" {
		s.path = filepath.Join(storageDir, "jobs.json")
		s.load()
	}
	return s
}

// Add registers a new job. Duplicate names and malformed cron expressions
// both return an error string rather than panicking — callers (a skill, an
// RPC handler) render the error as the operation's result.
func (s *Scheduler) Add(name, cronExpr, command string) error {
	if !gronx.IsValid(cronExpr) {
		return fmt.Errorf("invalid cron expression %q", cronExpr)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already exists", name)
	}
	s.jobs[name] = &Job{Name: name, Cron: cronExpr, Command: command, CreatedAt: time.Now()}
	return s.saveLocked()
}

// Remove deletes a job by name. Removing an unknown name is a no-op.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, name)
	return s.saveLocked()
}

// List returns every job, order unspecified.
func (s *Scheduler) List() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	return out
}

// Start begins the cron-tick loop. Jobs for distinct names are independent;
// a single name never fires twice for the same matching minute.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.tick(ctx, now)
			}
		}
	}()
}

// Stop cancels the driving task and awaits clean shutdown.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	minuteKey := now.Format("2006-01-02 15:04")

	s.mu.Lock()
	var due []*Job
	for _, j := range s.jobs {
		if j.lastFired == minuteKey {
			continue
		}
		ok, err := gronx.NewGronx().IsDue(j.Cron, now)
		if err != nil || !ok {
			continue
		}
		j.lastFired = minuteKey
		due = append(due, j)
	}
	s.mu.Unlock()

	for _, j := range due {
		go s.fire(ctx, j)
	}
}

func (s *Scheduler) fire(ctx context.Context, j *Job) {
	if s.bus != nil {
		s.bus.Emit(eventbus.Event{
			Type:   EventTypeTriggered,
			Source: "scheduler:" + j.Name,
			Data:   map[string]interface{}{"name": j.Name, "command": j.Command, "time": time.Now().Format("15:04")},
		})
	}

	var result string
	if s.registry != nil {
		result = s.registry.Execute(ctx, systemCommandSkill, map[string]interface{}{"command": j.Command})
	}

	if s.notifier != nil && result != "" {
		truncated := result
		if len(truncated) > 500 {
			truncated = truncated[:500] + "…"
		}
		s.notifier.Notify(ctx, fmt.Sprintf("Scheduled job %q: %s", j.Name, truncated), nil)
	}
	slog.Info("scheduler: job fired", "name", j.Name)
}

func (s *Scheduler) saveLocked() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.jobs, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Scheduler) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var jobs map[string]*Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		slog.Warn("scheduler: failed to parse persisted jobs", "error", err)
		return
	}
	s.jobs = jobs
}

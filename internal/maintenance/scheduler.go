// Package maintenance runs periodic cleanup jobs such as expiring sessions
// and dropping stale rate-limit counters.
package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"image-editor/internal/logging"

	"github.com/robfig/cron/v3"
)

// Task is a named cleanup job. Run returns the number of items it removed.
type Task struct {
	Name     string
	Schedule string // cron expression, e.g. "@every 1m" or "@hourly"
	Run      func(ctx context.Context) (int64, error)
}

// Scheduler runs Tasks on their schedules. A task never overlaps with itself.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	tasks []string
}

// New creates a stopped Scheduler.
func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers a task.
func (s *Scheduler) Add(task Task) error {
	if task.Run == nil {
		return fmt.Errorf("maintenance: task %q has no Run func", task.Name)
	}
	if _, err := s.cron.AddFunc(task.Schedule, func() { s.run(task) }); err != nil {
		return fmt.Errorf("maintenance: schedule %q for %s: %w", task.Schedule, task.Name, err)
	}

	s.mu.Lock()
	s.tasks = append(s.tasks, task.Name)
	s.mu.Unlock()

	logging.Debug("  Scheduled %s (%s)", task.Name, task.Schedule)
	return nil
}

// RunNow runs every task once, synchronously. Used at startup and in tests.
func (s *Scheduler) RunNow(tasks ...Task) {
	for _, t := range tasks {
		s.run(t)
	}
}

func (s *Scheduler) run(task Task) {
	start := time.Now()
	n, err := task.Run(s.ctx)
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		logging.Warn("maintenance: %s failed: %v", task.Name, err)
		return
	}
	if n > 0 {
		logging.Debug("maintenance: %s removed %d in %v", task.Name, n, time.Since(start))
	}
}

// Tasks returns the names of registered tasks.
func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tasks...)
}

// Start begins running tasks in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running tasks and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

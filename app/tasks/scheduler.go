package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/lysyi3m/rss-harvest/app/feed"
	"github.com/robfig/cron/v3"
)

const (
	taskQueueSize      = 300
	defaultTaskTimeout = 5 * time.Minute
	// Time a task gets beyond its fetch for parsing and storing
	taskTimeoutMargin = time.Minute
)

var (
	_ TaskSchedulerInterface = (*Scheduler)(nil)

	ErrNotStarted    = errors.New("scheduler not started")
	ErrQueueFull     = errors.New("task queue is full")
	ErrInvalidPeriod = errors.New("poll interval must be positive")
)

// Scheduler keeps one cron entry per stored feed and runs the resulting
// tasks on a fixed pool of workers. Tasks sharing a key never overlap: a
// trigger for a feed that is already queued or running is dropped.
//
// Scheduler is the ingest.PeriodicTasks of the orchestrator, so every
// refresh reschedules its own feed through SetInterval.
type Scheduler struct {
	store       FeedStore
	executor    Executor
	workerCount int
	taskTimeout time.Duration
	cron        *cron.Cron
	now         func() time.Time

	mu       sync.Mutex
	entries  map[string]cron.EntryID
	inFlight map[string]struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	taskQueue chan TaskInterface
}

// NewScheduler sizes each task's deadline past fetchTimeout, so a slow
// source fails as a fetch error and backs off instead of being cancelled.
func NewScheduler(store FeedStore, workerCount int, fetchTimeout time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		store:       store,
		workerCount: max(workerCount, 1),
		taskTimeout: max(defaultTaskTimeout, fetchTimeout+taskTimeoutMargin),
		cron:        cron.New(),
		now:         time.Now,
		entries:     make(map[string]cron.EntryID),
		inFlight:    make(map[string]struct{}),
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, taskQueueSize),
	}
}

// Start restores the schedule of every stored feed, starts the workers and
// queues a refresh for each feed that is already due.
func (s *Scheduler) Start(executor Executor) error {
	if s.executor != nil {
		return fmt.Errorf("scheduler already started")
	}
	s.executor = executor

	feeds, err := s.store.ListFeeds(s.ctx)
	if err != nil {
		return fmt.Errorf("failed to list feeds: %w", err)
	}

	now := s.now()
	var due []string
	for _, f := range feeds {
		if f.Interval <= 0 {
			due = append(due, f.ID)
			continue
		}

		next := now
		if f.NextFetchAt != nil {
			next = *f.NextFetchAt
		}
		if !next.After(now) {
			due = append(due, f.ID)
		}
		s.schedule(f.ID, next, f.Interval)
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	s.cron.Start()

	slog.Debug("Scheduler started", "feeds", len(feeds), "due", len(due), "workers", s.workerCount)

	for _, feedID := range due {
		if err := s.EnqueueRefresh(feedID); err != nil {
			slog.Warn("Failed to enqueue RefreshFeedTask", "feed", feedID, "error", err)
		}
	}

	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.cancel()
	s.wg.Wait()
}

// SetInterval persists the feed's interval and arms its next poll one
// interval from now, replacing any earlier schedule.
func (s *Scheduler) SetInterval(ctx context.Context, feedID string, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidPeriod, interval)
	}

	next := s.now().Add(interval)
	if err := s.store.UpdateSchedule(ctx, feedID, interval, next); err != nil {
		return fmt.Errorf("failed to persist schedule: %w", err)
	}

	s.schedule(feedID, next, interval)

	slog.Debug("Feed scheduled", "feed", feedID, "interval", interval, "next_fetch_at", next)

	return nil
}

// SyncConfigs queues creation of every enabled seed feed. Feeds that are
// already stored are left as they are.
func (s *Scheduler) SyncConfigs(configs map[string]*feed.Config) {
	for _, name := range slices.Sorted(maps.Keys(configs)) {
		feedConfig := configs[name]
		if !feedConfig.Settings.Enabled {
			continue
		}
		if err := s.EnqueueCreate(feedConfig.URL); err != nil {
			slog.Warn("Failed to enqueue CreateFeedTask", "feed", name, "error", err)
		}
	}
}

func (s *Scheduler) EnqueueCreate(url string) error {
	if s.executor == nil {
		return ErrNotStarted
	}
	return s.EnqueueTask(NewCreateFeedTask(url, s.executor))
}

func (s *Scheduler) EnqueueRefresh(feedID string) error {
	if s.executor == nil {
		return ErrNotStarted
	}
	return s.EnqueueTask(NewRefreshFeedTask(feedID, s.executor))
}

// EnqueueTask queues task unless a task with the same key is pending.
func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	if !s.acquire(task.GetKey()) {
		slog.Debug("Task already in flight, skipping", "type", string(task.GetType()), "key", task.GetKey())
		return nil
	}

	if err := s.push(task); err != nil {
		s.release(task.GetKey())
		return err
	}
	return nil
}

// ScheduledCount reports how many feeds have a live poll schedule.
func (s *Scheduler) ScheduledCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Scheduler) schedule(feedID string, first time.Time, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[feedID]; ok {
		s.cron.Remove(id)
	}

	s.entries[feedID] = s.cron.Schedule(pollSchedule{first: first, interval: interval}, cron.FuncJob(func() {
		if err := s.EnqueueRefresh(feedID); err != nil {
			slog.Warn("Failed to enqueue RefreshFeedTask", "feed", feedID, "error", err)
		}
	}))
}

func (s *Scheduler) push(task TaskInterface) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}

	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (s *Scheduler) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inFlight[key]; ok {
		return false
	}
	s.inFlight[key] = struct{}{}
	return true
}

func (s *Scheduler) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, s.taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		s.release(task.GetKey())
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "key", task.GetKey(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() || s.ctx.Err() != nil {
		if task.GetMaxRetries() > 0 {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
		s.release(task.GetKey())
		return
	}

	task.IncrementRetryCount()
	delay := retryDelay(task.GetRetryCount())

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "key", task.GetKey(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", delay.String())

	// The key stays held until the retry has run
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			s.release(task.GetKey())
		case <-timer.C:
			if retryErr := s.push(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
				s.release(task.GetKey())
			}
		}
	}()
}

// pollSchedule fires at first, then every interval after the previous run.
type pollSchedule struct {
	first    time.Time
	interval time.Duration
}

func (p pollSchedule) Next(t time.Time) time.Time {
	if t.Before(p.first) {
		return p.first
	}
	return t.Add(p.interval)
}

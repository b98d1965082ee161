// Package cleanup deletes transient chat messages after a delay.
package cleanup

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/hectic-downloader/server/internal/telegram"
	logx "github.com/hectic-downloader/server/pkg/logger"
	"github.com/hectic-downloader/server/pkg/metrics"
)

// deleteTimeout bounds each individual delete call.
const deleteTimeout = 10 * time.Second

// Report summarizes one sweep. Failures never abort the sweep.
type Report struct {
	Attempted []int
	Failed    []int
}

type task struct {
	timer  *time.Timer
	chatID int64
	ids    []int
	then   func()
}

// Scheduler runs keyed, cancellable deletion tasks. A task that fires after
// the conversation moved on is harmless: deleting a gone message succeeds.
type Scheduler struct {
	messenger telegram.Messenger

	mu     sync.Mutex
	tasks  map[string]*task
	seq    uint64
	closed bool
	wg     sync.WaitGroup
}

func NewScheduler(m telegram.Messenger) *Scheduler {
	return &Scheduler{messenger: m, tasks: make(map[string]*task)}
}

// Schedule registers an anonymous task and returns its key.
func (s *Scheduler) Schedule(chatID int64, ids []int, delay time.Duration) string {
	s.mu.Lock()
	s.seq++
	key := "auto:" + strconv.FormatUint(s.seq, 10)
	s.mu.Unlock()

	s.ScheduleKeyed(key, chatID, ids, delay)
	return key
}

// ScheduleKeyed registers a task under key, replacing any pending task with
// the same key.
func (s *Scheduler) ScheduleKeyed(key string, chatID int64, ids []int, delay time.Duration) {
	s.ScheduleKeyedThen(key, chatID, ids, delay, nil)
}

// ScheduleKeyedThen is ScheduleKeyed with a hook run after the sweep. The
// hook is skipped when the task is cancelled, replaced or dropped by Close.
func (s *Scheduler) ScheduleKeyedThen(key string, chatID int64, ids []int, delay time.Duration, then func()) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if old, ok := s.tasks[key]; ok && old.timer.Stop() {
		metrics.CleanupsPending.Dec()
	}

	t := &task{chatID: chatID, ids: ids, then: then}
	t.timer = time.AfterFunc(delay, func() { s.fire(key, t) })
	s.tasks[key] = t
	metrics.CleanupsPending.Inc()
}

// Cancel stops a pending task. It reports false when the task already fired
// or never existed.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[key]
	if !ok {
		return false
	}
	delete(s.tasks, key)
	if t.timer.Stop() {
		metrics.CleanupsPending.Dec()
		return true
	}
	return false
}

// Pending counts tasks that have not fired yet.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Scheduler) fire(key string, t *task) {
	s.mu.Lock()
	metrics.CleanupsPending.Dec()
	if cur, ok := s.tasks[key]; ok && cur == t {
		delete(s.tasks, key)
	}
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	s.Sweep(context.Background(), t.chatID, t.ids)
	if t.then != nil {
		t.then()
	}
}

// Sweep deletes every id independently and reports which deletions failed.
func (s *Scheduler) Sweep(ctx context.Context, chatID int64, ids []int) Report {
	var r Report
	for _, id := range ids {
		r.Attempted = append(r.Attempted, id)

		dctx, cancel := context.WithTimeout(ctx, deleteTimeout)
		a := telegram.TryDelete(dctx, s.messenger, chatID, id)
		cancel()

		if !a.OK() {
			r.Failed = append(r.Failed, id)
			metrics.CleanupDeletes.WithLabelValues("error").Inc()
			a.Tolerate()
			continue
		}
		metrics.CleanupDeletes.WithLabelValues("ok").Inc()
	}
	if len(r.Failed) > 0 {
		logx.Debug().Int64("chat_id", chatID).Ints("failed", r.Failed).Msg("cleanup sweep finished with failures")
	}
	return r
}

// Close drops pending tasks and waits for sweeps already running.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	for key, t := range s.tasks {
		if t.timer.Stop() {
			metrics.CleanupsPending.Dec()
		}
		delete(s.tasks, key)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func dedupe(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

package bot

import "sync"

type queue struct {
	jobs []func()
}

// Serializer runs jobs one at a time per key while different keys run in
// parallel. A key's worker exits once its queue drains.
type Serializer struct {
	mu     sync.Mutex
	queues map[int64]*queue
	wg     sync.WaitGroup
}

func NewSerializer() *Serializer {
	return &Serializer{queues: make(map[int64]*queue)}
}

// Submit enqueues job behind any pending jobs for key.
func (s *Serializer) Submit(key int64, job func()) {
	s.mu.Lock()
	q, running := s.queues[key]
	if !running {
		q = &queue{}
		s.queues[key] = q
	}
	q.jobs = append(q.jobs, job)
	if running {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go s.drain(key, q)
}

func (s *Serializer) drain(key int64, q *queue) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		if len(q.jobs) == 0 {
			delete(s.queues, key)
			s.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs[0] = nil
		q.jobs = q.jobs[1:]
		s.mu.Unlock()

		job()
	}
}

// Active counts keys with queued or running jobs.
func (s *Serializer) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues)
}

// Wait blocks until every submitted job has finished.
func (s *Serializer) Wait() { s.wg.Wait() }

package queue

import (
	"context"
	"sort"
	"sync"

	"statusq/internal/accounts"
	"statusq/internal/jobs"
)

// memStore is an in-memory JobStore with the same conditional-update
// semantics as the SQL store.
type memStore struct {
	mu   sync.Mutex
	rows map[string]*jobs.Job
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]*jobs.Job)}
}

func (s *memStore) Exists(ctx context.Context, username, account string, scheduledAt int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.rows {
		if j.Username == username && j.Account == account && j.ScheduledAt == scheduledAt {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) Insert(ctx context.Context, j *jobs.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *j
	s.rows[j.ID] = &cp
	return nil
}

func (s *memStore) Due(ctx context.Context, now int64) ([]jobs.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []jobs.Job
	for _, j := range s.rows {
		if j.ScheduledAt <= now && !j.Processing {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ScheduledAt < out[k].ScheduledAt })
	return out, nil
}

func (s *memStore) Claim(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.rows[id]
	if !ok || j.Processing {
		return false, nil
	}
	j.Processing = true
	return true, nil
}

func (s *memStore) Release(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.rows[id]; ok {
		j.Processing = false
	}
	return nil
}

func (s *memStore) MarkRetry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.rows[id]; ok {
		j.Status = jobs.StatusRetry
		j.Processing = false
	}
	return nil
}

func (s *memStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func (s *memStore) ResetAllProcessing(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, j := range s.rows {
		if j.Processing {
			j.Processing = false
			n++
		}
	}
	return n, nil
}

func (s *memStore) DeleteFuture(ctx context.Context, username, account string, from int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, j := range s.rows {
		if j.Username == username && j.Account == account && j.ScheduledAt >= from {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

func (s *memStore) DeleteForAccount(ctx context.Context, username, account string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, j := range s.rows {
		if j.Username == username && j.Account == account {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

func (s *memStore) DeleteAll(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.rows))
	s.rows = make(map[string]*jobs.Job)
	return n, nil
}

func (s *memStore) all() []jobs.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []jobs.Job
	for _, j := range s.rows {
		out = append(out, *j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ScheduledAt < out[k].ScheduledAt })
	return out
}

func (s *memStore) get(id string) (jobs.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.rows[id]
	if !ok {
		return jobs.Job{}, false
	}
	return *j, true
}

type fakeAccounts struct {
	list []accounts.Account
}

func (f *fakeAccounts) All(ctx context.Context) ([]accounts.Account, error) {
	return f.list, nil
}

type fakeQuota struct {
	allowed  bool
	consumed int
}

func (q *fakeQuota) Allow(ctx context.Context, username string) (bool, error) {
	return q.allowed, nil
}

func (q *fakeQuota) Consume(ctx context.Context, username string) error {
	q.consumed++
	return nil
}

// fakeGen records calls and fails while failures > 0.
type fakeGen struct {
	failures int
	calls    []string
}

func (g *fakeGen) GenerateStatus(ctx context.Context, account, username string) error {
	g.calls = append(g.calls, username+"/"+account)
	if g.failures > 0 {
		g.failures--
		return context.DeadlineExceeded
	}
	return nil
}

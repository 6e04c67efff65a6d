package lecture

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lumalearn/assess/internal/quiz"
)

type memoryStore struct {
	mu       sync.RWMutex
	lectures map[string]Lecture
	attempts []StoredAttempt
}

// NewInMemoryStore is used by tests and throwaway dev setups.
func NewInMemoryStore() Store {
	return &memoryStore{lectures: map[string]Lecture{}}
}

func (m *memoryStore) Put(_ context.Context, l Lecture) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.lectures[l.ID]; ok && l.Questions == nil {
		l.Questions = existing.Questions
	}
	if l.CreatedAt == 0 {
		l.CreatedAt = time.Now().Unix()
	}
	m.lectures[l.ID] = l
	return nil
}

func (m *memoryStore) Get(_ context.Context, id string) (Lecture, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.lectures[id]
	if !ok {
		return Lecture{}, ErrNotFound
	}
	return l, nil
}

func (m *memoryStore) List(_ context.Context, opts ListOpts) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Summary
	for _, l := range m.lectures {
		if opts.Q != "" && !strings.Contains(strings.ToLower(l.Title), strings.ToLower(opts.Q)) {
			continue
		}
		out = append(out, Summary{ID: l.ID, Title: l.Title, PassThreshold: l.PassThreshold, CreatedAt: l.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

func (m *memoryStore) SaveQuestions(_ context.Context, id string, qs []quiz.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lectures[id]
	if !ok {
		return ErrNotFound
	}
	l.Questions = append([]quiz.Question(nil), qs...)
	m.lectures[id] = l
	return nil
}

func (m *memoryStore) SaveAttempt(_ context.Context, a StoredAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *memoryStore) ListAttempts(_ context.Context, opts AttemptListOpts) ([]StoredAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []StoredAttempt
	for _, a := range m.attempts {
		if opts.LectureID != "" && a.LectureID != opts.LectureID {
			continue
		}
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

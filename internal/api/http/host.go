// Package http hosts the quiz engine over REST. Each (user, lecture)
// pair owns at most one live quiz.Session; the host subscribes to the
// session's events to persist graded attempts and feed the event log.
package http

import (
	"context"
	"log"
	"sync"

	"github.com/lumalearn/assess/internal/eventlog"
	"github.com/lumalearn/assess/internal/lecture"
	"github.com/lumalearn/assess/internal/quiz"
)

// QuizConfig carries the deployment-wide quiz defaults.
type QuizConfig struct {
	Seconds       int
	QuestionCount int
	PassThreshold float64
}

// QuizHost owns the in-memory session registry.
type QuizHost struct {
	store  lecture.Store
	events *eventlog.Repo // optional
	gen    quiz.Generator
	cfg    QuizConfig

	mu       sync.Mutex
	sessions map[string]*quiz.Session
}

func NewQuizHost(store lecture.Store, events *eventlog.Repo, gen quiz.Generator, cfg QuizConfig) *QuizHost {
	return &QuizHost{
		store:    store,
		events:   events,
		gen:      gen,
		cfg:      cfg,
		sessions: map[string]*quiz.Session{},
	}
}

func sessionKey(userID, lectureID string) string { return userID + "|" + lectureID }

// session returns the live session for (user, lecture), or nil.
func (h *QuizHost) session(userID, lectureID string) *quiz.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[sessionKey(userID, lectureID)]
}

// getOrCreate loads the lecture and binds a session to its content.
func (h *QuizHost) getOrCreate(ctx context.Context, userID, lectureID string) (*quiz.Session, lecture.Lecture, error) {
	lec, err := h.store.Get(ctx, lectureID)
	if err != nil {
		return nil, lecture.Lecture{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	key := sessionKey(userID, lectureID)
	if s, ok := h.sessions[key]; ok {
		return s, lec, nil
	}
	threshold := lec.PassThreshold
	if threshold <= 0 {
		threshold = h.cfg.PassThreshold
	}
	sink := &sessionSink{host: h, lectureID: lectureID, userID: userID}
	s := quiz.NewSession(
		quiz.Config{
			QuizSeconds:   h.cfg.Seconds,
			PassThreshold: threshold,
			QuestionCount: h.cfg.QuestionCount,
		},
		quiz.Source{LectureID: lec.ID, Title: lec.Title, Content: lec.Content},
		h.gen,
		sink,
	)
	h.sessions[key] = s
	return s, lec, nil
}

// drop closes and forgets a session. Closing stops any running clock
// and makes an in-flight generation result discard itself.
func (h *QuizHost) drop(userID, lectureID string) {
	h.mu.Lock()
	s := h.sessions[sessionKey(userID, lectureID)]
	delete(h.sessions, sessionKey(userID, lectureID))
	h.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

// CloseAll tears down every live session (server shutdown).
func (h *QuizHost) CloseAll() {
	h.mu.Lock()
	sessions := make([]*quiz.Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.sessions = map[string]*quiz.Session{}
	h.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

func (h *QuizHost) logEvent(typ, key string, data any) {
	if h.events == nil {
		return
	}
	if err := h.events.Append(context.Background(), typ, key, data); err != nil {
		log.Printf("eventlog append %s: %v", typ, err)
	}
}

// sessionSink translates engine events into persistence and log lines.
type sessionSink struct {
	quiz.NopEvents
	host      *QuizHost
	lectureID string
	userID    string
}

func (s *sessionSink) key() string { return s.lectureID + "|" + s.userID }

func (s *sessionSink) QuizCompleted(passed bool, att quiz.Attempt) {
	stored := lecture.StoredAttempt{Attempt: att, LectureID: s.lectureID, UserID: s.userID}
	if err := s.host.store.SaveAttempt(context.Background(), stored); err != nil {
		log.Printf("save attempt %s: %v", att.ID, err)
	}
	s.host.logEvent(eventlog.TypeAttemptGraded, s.key(), stored)
	log.Printf("quiz graded lecture=%s user=%s score=%.2f grade=%s passed=%v forced=%v",
		s.lectureID, s.userID, att.Score, att.LetterGrade, passed, att.Forced)
}

func (s *sessionSink) QuizStateChanged(active bool) {
	if active {
		s.host.logEvent(eventlog.TypeQuizStarted, s.key(), map[string]string{
			"lecture_id": s.lectureID, "user_id": s.userID,
		})
	}
}

func (s *sessionSink) CancelRequested() {
	s.host.logEvent(eventlog.TypeQuizCancelled, s.key(), map[string]string{
		"lecture_id": s.lectureID, "user_id": s.userID,
	})
}

func (s *sessionSink) TimeWarning(secondsLeft int) {
	log.Printf("quiz warning lecture=%s user=%s %ds remaining", s.lectureID, s.userID, secondsLeft)
}

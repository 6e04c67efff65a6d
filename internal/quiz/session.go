package quiz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumalearn/assess/internal/grading"
)

// warnMarks are the remaining-second values at which the session emits
// a one-time TimeWarning per Active period.
var warnMarks = []int{180, 60}

// Session is the quiz state machine for one lecture. It owns the
// countdown clock, consults the generation gate, and calls the grading
// engine; it is the only type hosts talk to.
//
// Lifecycle: NoQuiz → Generating → Active → Submitting → Graded, with
// Graded re-enterable via Retake (→ Active) or RequestMoreQuestions
// (→ Generating). The Active → Submitting edge is the exclusion point
// between a user Submit and the timeout auto-submit: whichever takes
// the lock first wins, the loser observes a non-Active state and is
// suppressed.
//
// A session is owned by exactly one host view. The internal mutex
// serializes user operations and clock ticks, so events are processed
// strictly in arrival order, never reordered or batched. The only
// suspension point is the generation call, which runs outside the lock.
type Session struct {
	mu sync.Mutex

	cfg    Config
	source Source
	gen    Generator
	events Events

	state     State
	questions []Question
	answers   []int
	remaining int
	attempts  []Attempt

	clk    *clock
	gate   gate
	warned map[int]bool
	closed bool
}

// NewSession binds a session to a lecture's content. A nil events sink
// is replaced with NopEvents.
func NewSession(cfg Config, src Source, gen Generator, events Events) *Session {
	if events == nil {
		events = NopEvents{}
	}
	return &Session{
		cfg:    cfg.withDefaults(),
		source: src,
		gen:    gen,
		events: events,
		state:  StateNoQuiz,
	}
}

// Start begins a timed round over the supplied question set. Valid in
// NoQuiz or Graded; an empty question set is a caller defect.
func (s *Session) Start(questions []Question) error {
	if len(questions) == 0 {
		panic("quiz: Start requires a non-empty question set")
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state != StateNoQuiz && s.state != StateGraded {
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.questions = append([]Question(nil), questions...)
	s.startLocked()
	s.mu.Unlock()
	s.events.QuizStateChanged(true)
	return nil
}

// Answer records the user's choice for one question. Valid only while
// Active; out-of-range indices and wrong-state calls are host defects
// and panic rather than clamp.
func (s *Session) Answer(questionIndex, choiceIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		panic(fmt.Sprintf("quiz: Answer called in state %s", s.state))
	}
	if questionIndex < 0 || questionIndex >= len(s.questions) {
		panic(fmt.Sprintf("quiz: question index %d out of range (have %d questions)", questionIndex, len(s.questions)))
	}
	if choiceIndex < 0 || choiceIndex >= len(s.questions[questionIndex].Choices) {
		panic(fmt.Sprintf("quiz: choice index %d out of range for question %d", choiceIndex, questionIndex))
	}
	s.answers[questionIndex] = choiceIndex
}

// Submit grades the round. Every slot must be answered; otherwise a
// ValidationError is returned and the session stays Active. A Submit
// that lost the race against the timeout returns ErrInvalidState.
func (s *Session) Submit() (Attempt, error) {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return Attempt{}, ErrInvalidState
	}
	if n := s.unansweredLocked(); n > 0 {
		s.mu.Unlock()
		return Attempt{}, &ValidationError{Unanswered: n}
	}
	s.state = StateSubmitting
	s.stopClockLocked()
	att := s.gradeLocked(false)
	s.mu.Unlock()
	s.events.QuizStateChanged(false)
	s.events.QuizCompleted(att.Passed, att)
	return att, nil
}

// Retake clears the answers and restarts the clock at the ceiling,
// keeping both the question set and the attempt history. Valid only in
// Graded.
func (s *Session) Retake() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state != StateGraded {
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.startLocked()
	s.mu.Unlock()
	s.events.QuizStateChanged(true)
	return nil
}

// RequestMoreQuestions asks the generation collaborator for a fresh
// question set and, on success, starts a round over it. Valid in NoQuiz
// or Graded. At most one request is in flight per session; a second
// call while one is pending returns ErrGenerationInFlight without
// touching the collaborator. Failures are surfaced as a GenerationError
// and the session returns to the state it was leaving; nothing retries
// automatically.
func (s *Session) RequestMoreQuestions(ctx context.Context) error {
	if s.gen == nil {
		panic("quiz: no generator configured")
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if err := s.gate.begin(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.state != StateNoQuiz && s.state != StateGraded {
		s.gate.end()
		s.mu.Unlock()
		return ErrInvalidState
	}
	prev := s.state
	s.state = StateGenerating
	src := s.source
	count := s.cfg.QuestionCount
	s.mu.Unlock()
	s.events.GenerationStateChanged(true)

	questions, err := s.gen.GenerateQuestions(ctx, src, count)
	if err == nil && len(questions) == 0 {
		err = errors.New("generator returned no questions")
	}

	s.mu.Lock()
	s.gate.end()
	if s.closed {
		// Late result after teardown: discard rather than apply.
		s.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		s.state = prev
		s.mu.Unlock()
		s.events.GenerationStateChanged(false)
		return &GenerationError{Err: err}
	}
	s.questions = append([]Question(nil), questions...)
	s.startLocked()
	s.mu.Unlock()
	s.events.GenerationStateChanged(false)
	s.events.QuizStateChanged(true)
	return nil
}

// Cancel abandons an active round: the clock stops, in-progress answers
// are discarded, no Attempt is produced. Valid only in Active.
func (s *Session) Cancel() error {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.stopClockLocked()
	s.answers = nil
	s.state = StateNoQuiz
	s.mu.Unlock()
	s.events.QuizStateChanged(false)
	s.events.CancelRequested()
	return nil
}

// Close tears the session down. Idempotent. Guarantees the clock is
// stopped and that any in-flight generation result will be discarded.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	wasActive := s.state == StateActive
	s.stopClockLocked()
	s.mu.Unlock()
	if wasActive {
		s.events.QuizStateChanged(false)
	}
}

// tick handles one logical second. A tick from a superseded or halted
// clock, or one arriving outside Active, is a no-op.
func (s *Session) tick(c *clock) {
	s.mu.Lock()
	if s.closed || s.clk != c || s.state != StateActive {
		s.mu.Unlock()
		return
	}
	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining == 0 {
		// Timeout auto-submit: same effect as Submit but unanswered
		// slots are graded as incorrect.
		s.state = StateSubmitting
		s.stopClockLocked()
		att := s.gradeLocked(true)
		s.mu.Unlock()
		s.events.QuizStateChanged(false)
		s.events.QuizCompleted(att.Passed, att)
		return
	}
	warn := 0
	for _, m := range warnMarks {
		if s.remaining == m && !s.warned[m] {
			s.warned[m] = true
			warn = m
		}
	}
	s.mu.Unlock()
	if warn > 0 {
		s.events.TimeWarning(warn)
	}
}

// startLocked resets answers and the countdown and swaps in a fresh
// clock. Caller holds the lock and has validated the transition.
func (s *Session) startLocked() {
	s.answers = make([]int, len(s.questions))
	for i := range s.answers {
		s.answers[i] = Unanswered
	}
	s.remaining = s.cfg.QuizSeconds
	s.warned = make(map[int]bool, len(warnMarks))
	s.stopClockLocked()
	c := newClock()
	c.run(s.cfg.TickInterval, func() { s.tick(c) })
	s.clk = c
	s.state = StateActive
}

func (s *Session) stopClockLocked() {
	if s.clk != nil {
		s.clk.halt()
		s.clk = nil
	}
}

func (s *Session) unansweredLocked() int {
	n := 0
	for _, a := range s.answers {
		if a == Unanswered {
			n++
		}
	}
	return n
}

// gradeLocked computes the Attempt for the current round, transitions
// to Graded and appends to history (the append is deliberately the last
// step of the terminal transition).
func (s *Session) gradeLocked(forced bool) Attempt {
	correct := make([]int, len(s.questions))
	for i, q := range s.questions {
		correct[i] = q.CorrectIndex
	}
	res := grading.Grade(correct, s.answers, grading.EffectiveThreshold(s.cfg.PassThreshold))
	att := Attempt{
		ID:             uuid.NewString(),
		Answers:        append([]int(nil), s.answers...),
		CorrectCount:   res.CorrectCount,
		TotalQuestions: res.TotalQuestions,
		Score:          res.Score,
		LetterGrade:    res.LetterGrade,
		Passed:         res.Passed,
		Forced:         forced,
		Timestamp:      time.Now(),
	}
	s.state = StateGraded
	s.attempts = append(s.attempts, att)
	return att
}

// --- read-side accessors ---

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) RemainingSeconds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

func (s *Session) Questions() []Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Question(nil), s.questions...)
}

func (s *Session) Answers() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.answers...)
}

func (s *Session) Attempts() []Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Attempt(nil), s.attempts...)
}

func (s *Session) Source() Source {
	return s.source
}

// Snapshot is a consistent read of everything a host needs to render
// the session.
type Snapshot struct {
	State            State      `json:"state"`
	RemainingSeconds int        `json:"remaining_seconds"`
	Questions        []Question `json:"questions"`
	Answers          []int      `json:"answers"`
	Attempts         []Attempt  `json:"attempts"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:            s.state,
		RemainingSeconds: s.remaining,
		Questions:        append([]Question(nil), s.questions...),
		Answers:          append([]int(nil), s.answers...),
		Attempts:         append([]Attempt(nil), s.attempts...),
	}
}

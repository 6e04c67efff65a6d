package quiz

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// Tests drive logical seconds by calling tick directly; the real ticker
// is parked on a huge interval so it never interferes.
const parkedInterval = time.Hour

func testConfig(seconds int) Config {
	return Config{
		QuizSeconds:   seconds,
		PassThreshold: 0.8,
		QuestionCount: 3,
		TickInterval:  parkedInterval,
	}
}

func threeQuestions() []Question {
	return []Question{
		{ID: "q1", Prompt: "2 ** 3?", Choices: []string{"6", "8", "9"}, CorrectIndex: 1},
		{ID: "q2", Prompt: "def keyword?", Choices: []string{"func", "def"}, CorrectIndex: 1},
		{ID: "q3", Prompt: "3 / 2 type?", Choices: []string{"int", "float"}, CorrectIndex: 1},
	}
}

type recorder struct {
	mu         sync.Mutex
	completed  []Attempt
	passed     []bool
	genStates  []bool
	quizStates []bool
	cancels    int
	warnings   []int
}

func (r *recorder) QuizCompleted(passed bool, att Attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, att)
	r.passed = append(r.passed, passed)
}
func (r *recorder) GenerationStateChanged(g bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.genStates = append(r.genStates, g)
}
func (r *recorder) QuizStateChanged(a bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quizStates = append(r.quizStates, a)
}
func (r *recorder) CancelRequested() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels++
}
func (r *recorder) TimeWarning(s int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, s)
}

func (r *recorder) completedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.completed)
}

type stubGen struct {
	questions []Question
	err       error
	calls     int32
	release   chan struct{} // if set, block until closed
}

func (g *stubGen) GenerateQuestions(ctx context.Context, _ Source, _ int) ([]Question, error) {
	atomic.AddInt32(&g.calls, 1)
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.err != nil {
		return nil, g.err
	}
	return g.questions, nil
}

// tickOnce delivers one logical second through the live clock handle.
func tickOnce(t *testing.T, s *Session) {
	t.Helper()
	s.mu.Lock()
	c := s.clk
	s.mu.Unlock()
	if c == nil {
		t.Fatalf("no running clock")
	}
	s.tick(c)
}

func TestStartResetsAnswersAndCountdown(t *testing.T) {
	rec := &recorder{}
	s := NewSession(testConfig(600), Source{LectureID: "lec-1"}, nil, rec)
	defer s.Close()

	if err := s.Start(threeQuestions()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.State() != StateActive {
		t.Fatalf("state = %s, want active", s.State())
	}
	if got := s.RemainingSeconds(); got != 600 {
		t.Fatalf("remaining = %d, want 600", got)
	}
	for i, a := range s.Answers() {
		if a != Unanswered {
			t.Fatalf("answer[%d] = %d, want unanswered", i, a)
		}
	}
	if len(rec.quizStates) != 1 || !rec.quizStates[0] {
		t.Fatalf("quizStates = %v, want [true]", rec.quizStates)
	}
}

func TestStartWhileActiveRejected(t *testing.T) {
	s := NewSession(testConfig(600), Source{}, nil, nil)
	defer s.Close()
	if err := s.Start(threeQuestions()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(threeQuestions()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second start err = %v, want ErrInvalidState", err)
	}
}

func TestStartEmptyQuestionsPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	s := NewSession(testConfig(600), Source{}, nil, nil)
	defer s.Close()
	_ = s.Start(nil)
}

func TestSubmitAllCorrect(t *testing.T) {
	rec := &recorder{}
	s := NewSession(testConfig(600), Source{}, nil, rec)
	defer s.Close()
	if err := s.Start(threeQuestions()); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 3; i++ {
		s.Answer(i, 1)
	}
	att, err := s.Submit()
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if att.CorrectCount != 3 || att.TotalQuestions != 3 {
		t.Fatalf("got %d/%d", att.CorrectCount, att.TotalQuestions)
	}
	if att.LetterGrade != "A+" || !att.Passed || att.Forced {
		t.Fatalf("attempt = %+v", att)
	}
	if s.State() != StateGraded {
		t.Fatalf("state = %s, want graded", s.State())
	}
	if rec.completedCount() != 1 {
		t.Fatalf("completed events = %d, want 1", rec.completedCount())
	}
	if len(rec.passed) != 1 || !rec.passed[0] {
		t.Fatalf("passed events = %v", rec.passed)
	}
}

func TestSubmitWithUnansweredSlotsIsValidationError(t *testing.T) {
	s := NewSession(testConfig(600), Source{}, nil, nil)
	defer s.Close()
	if err := s.Start(threeQuestions()); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Answer(0, 1)
	_, err := s.Submit()
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if vErr.Unanswered != 2 {
		t.Fatalf("unanswered = %d, want 2", vErr.Unanswered)
	}
	if s.State() != StateActive {
		t.Fatalf("state = %s, want active (validation must not transition)", s.State())
	}
	if len(s.Attempts()) != 0 {
		t.Fatalf("attempts = %d, want 0", len(s.Attempts()))
	}
}

func TestDoubleSubmitYieldsOneAttempt(t *testing.T) {
	rec := &recorder{}
	s := NewSession(testConfig(600), Source{}, nil, rec)
	defer s.Close()
	if err := s.Start(threeQuestions()); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 3; i++ {
		s.Answer(i, 1)
	}
	if _, err := s.Submit(); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := s.Submit(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second submit err = %v, want ErrInvalidState", err)
	}
	if got := len(s.Attempts()); got != 1 {
		t.Fatalf("attempts = %d, want exactly 1", got)
	}
	if rec.completedCount() != 1 {
		t.Fatalf("completed events = %d, want 1", rec.completedCount())
	}
}

func TestTimeoutAutoSubmitGradesUnansweredAsIncorrect(t *testing.T) {
	rec := &recorder{}
	s := NewSession(testConfig(5), Source{}, nil, rec)
	defer s.Close()
	if err := s.Start(threeQuestions()); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Answer(0, 1)
	s.Answer(1, 1)
	// third question left unanswered
	for i := 0; i < 5; i++ {
		tickOnce(t, s)
	}
	if s.State() != StateGraded {
		t.Fatalf("state = %s, want graded", s.State())
	}
	atts := s.Attempts()
	if len(atts) != 1 {
		t.Fatalf("attempts = %d, want exactly 1", len(atts))
	}
	att := atts[0]
	if !att.Forced {
		t.Fatalf("attempt not marked forced")
	}
	if att.CorrectCount != 2 || att.Answers[2] != Unanswered {
		t.Fatalf("attempt = %+v", att)
	}
	if att.Passed {
		t.Fatalf("2/3 should not pass the 0.8 floor")
	}
	if rec.completedCount() != 1 {
		t.Fatalf("completed events = %d, want 1", rec.completedCount())
	}
}

func TestLateTickAfterGradingIsNoOp(t *testing.T) {
	s := NewSession(testConfig(600), Source{}, nil, nil)
	defer s.Close()
	if err := s.Start(threeQuestions()); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.mu.Lock()
	stale := s.clk
	s.mu.Unlock()
	for i := 0; i < 3; i++ {
		s.Answer(i, 1)
	}
	if _, err := s.Submit(); err != nil {
		t.Fatalf("submit: %v", err)
	}
	remaining := s.RemainingSeconds()
	s.tick(stale) // tick from the halted clock must change nothing
	if got := s.RemainingSeconds(); got != remaining {
		t.Fatalf("remaining changed by stale tick: %d -> %d", remaining, got)
	}
	if len(s.Attempts()) != 1 {
		t.Fatalf("stale tick produced an attempt")
	}
}

func TestTimeWarningsFireOncePerActivePeriod(t *testing.T) {
	rec := &recorder{}
	s := NewSession(testConfig(182), Source{}, nil, rec)
	defer s.Close()
	if err := s.Start(threeQuestions()); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 125; i++ { // down to 57s, crossing both marks
		tickOnce(t, s)
	}
	if len(rec.warnings) != 2 || rec.warnings[0] != 180 || rec.warnings[1] != 60 {
		t.Fatalf("warnings = %v, want [180 60]", rec.warnings)
	}
}

func TestRetakeKeepsHistoryAndResetsCountdown(t *testing.T) {
	s := NewSession(testConfig(600), Source{}, nil, nil)
	defer s.Close()
	if err := s.Start(threeQuestions()); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 3; i++ {
		s.Answer(i, 0)
	}
	if _, err := s.Submit(); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := s.Retake(); err != nil {
		t.Fatalf("retake: %v", err)
	}
	if s.State() != StateActive {
		t.Fatalf("state = %s, want active", s.State())
	}
	if got := s.RemainingSeconds(); got != 600 {
		t.Fatalf("remaining = %d, want ceiling 600", got)
	}
	for i, a := range s.Answers() {
		if a != Unanswered {
			t.Fatalf("answer[%d] not cleared", i)
		}
	}
	for i := 0; i < 3; i++ {
		s.Answer(i, 1)
	}
	if _, err := s.Submit(); err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if got := len(s.Attempts()); got != 2 {
		t.Fatalf("attempts = %d, want prior history + 1", got)
	}
}

func TestRetakeOutsideGradedRejected(t *testing.T) {
	s := NewSession(testConfig(600), Source{}, nil, nil)
	defer s.Close()
	if err := s.Retake(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("retake in NoQuiz err = %v, want ErrInvalidState", err)
	}
}

func TestCancelProducesNoAttempt(t *testing.T) {
	rec := &recorder{}
	s := NewSession(testConfig(600), Source{}, nil, rec)
	defer s.Close()
	if err := s.Start(threeQuestions()); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Answer(0, 1)
	if err := s.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if s.State() != StateNoQuiz {
		t.Fatalf("state = %s, want no_quiz", s.State())
	}
	if len(s.Attempts()) != 0 {
		t.Fatalf("cancel must not grade")
	}
	if rec.cancels != 1 {
		t.Fatalf("cancel events = %d, want 1", rec.cancels)
	}
	if err := s.Cancel(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second cancel err = %v, want ErrInvalidState", err)
	}
}

func TestAnswerOutOfRangePanics(t *testing.T) {
	s := NewSession(testConfig(600), Source{}, nil, nil)
	defer s.Close()
	if err := s.Start(threeQuestions()); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, tc := range []struct{ q, c int }{
		{3, 0},  // question out of range
		{-1, 0}, // negative question
		{0, 3},  // choice out of range
		{0, -1}, // negative choice (no silent clamp)
	} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("Answer(%d,%d) did not panic", tc.q, tc.c)
				}
			}()
			s.Answer(tc.q, tc.c)
		}()
	}
}

func TestAnswerOutsideActivePanics(t *testing.T) {
	s := NewSession(testConfig(600), Source{}, nil, nil)
	defer s.Close()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	s.Answer(0, 0)
}

func TestRequestMoreQuestionsStartsRound(t *testing.T) {
	rec := &recorder{}
	gen := &stubGen{questions: threeQuestions()}
	s := NewSession(testConfig(600), Source{LectureID: "lec-1", Content: "body"}, gen, rec)
	defer s.Close()

	if err := s.RequestMoreQuestions(context.Background()); err != nil {
		t.Fatalf("request: %v", err)
	}
	if s.State() != StateActive {
		t.Fatalf("state = %s, want active", s.State())
	}
	if got := len(s.Questions()); got != 3 {
		t.Fatalf("questions = %d, want 3", got)
	}
	if len(rec.genStates) != 2 || !rec.genStates[0] || rec.genStates[1] {
		t.Fatalf("genStates = %v, want [true false]", rec.genStates)
	}
}

func TestGenerationGateRejectsSecondRequest(t *testing.T) {
	gen := &stubGen{questions: threeQuestions(), release: make(chan struct{})}
	s := NewSession(testConfig(600), Source{Content: "body"}, gen, nil)
	defer s.Close()

	done := make(chan error, 1)
	go func() { done <- s.RequestMoreQuestions(context.Background()) }()

	waitFor(t, func() bool { return s.State() == StateGenerating })
	if err := s.RequestMoreQuestions(context.Background()); !errors.Is(err, ErrGenerationInFlight) {
		t.Fatalf("second request err = %v, want ErrGenerationInFlight", err)
	}
	if got := atomic.LoadInt32(&gen.calls); got != 1 {
		t.Fatalf("collaborator called %d times, want 1", got)
	}

	close(gen.release)
	if err := <-done; err != nil {
		t.Fatalf("first request: %v", err)
	}
	if s.State() != StateActive {
		t.Fatalf("state = %s, want active", s.State())
	}
}

func TestGenerationFailureRestoresPriorState(t *testing.T) {
	rec := &recorder{}
	gen := &stubGen{err: errors.New("webhook down")}
	s := NewSession(testConfig(600), Source{Content: "body"}, gen, rec)
	defer s.Close()

	err := s.RequestMoreQuestions(context.Background())
	var gErr *GenerationError
	if !errors.As(err, &gErr) {
		t.Fatalf("err = %v, want GenerationError", err)
	}
	if s.State() != StateNoQuiz {
		t.Fatalf("state = %s, want no_quiz after failure", s.State())
	}
	// not retried automatically; a manual re-request must be possible
	gen.err = nil
	gen.questions = threeQuestions()
	if err := s.RequestMoreQuestions(context.Background()); err != nil {
		t.Fatalf("re-request: %v", err)
	}
	if got := atomic.LoadInt32(&gen.calls); got != 2 {
		t.Fatalf("collaborator called %d times, want 2", got)
	}
}

func TestEmptyGenerationIsError(t *testing.T) {
	gen := &stubGen{questions: nil}
	s := NewSession(testConfig(600), Source{Content: "body"}, gen, nil)
	defer s.Close()
	err := s.RequestMoreQuestions(context.Background())
	var gErr *GenerationError
	if !errors.As(err, &gErr) {
		t.Fatalf("err = %v, want GenerationError for empty set", err)
	}
}

func TestRegenerateAfterGraded(t *testing.T) {
	gen := &stubGen{questions: threeQuestions()}
	s := NewSession(testConfig(600), Source{Content: "body"}, gen, nil)
	defer s.Close()
	if err := s.RequestMoreQuestions(context.Background()); err != nil {
		t.Fatalf("request: %v", err)
	}
	for i := 0; i < 3; i++ {
		s.Answer(i, 1)
	}
	if _, err := s.Submit(); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := s.RequestMoreQuestions(context.Background()); err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if s.State() != StateActive {
		t.Fatalf("state = %s, want active", s.State())
	}
	if got := len(s.Attempts()); got != 1 {
		t.Fatalf("history lost on regenerate: attempts = %d", got)
	}
}

func TestRequestWhileActiveRejected(t *testing.T) {
	gen := &stubGen{questions: threeQuestions()}
	s := NewSession(testConfig(600), Source{Content: "body"}, gen, nil)
	defer s.Close()
	if err := s.Start(threeQuestions()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.RequestMoreQuestions(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("request while active err = %v, want ErrInvalidState", err)
	}
}

func TestCloseDiscardsLateGenerationResult(t *testing.T) {
	rec := &recorder{}
	gen := &stubGen{questions: threeQuestions(), release: make(chan struct{})}
	s := NewSession(testConfig(600), Source{Content: "body"}, gen, rec)

	done := make(chan error, 1)
	go func() { done <- s.RequestMoreQuestions(context.Background()) }()
	waitFor(t, func() bool { return s.State() == StateGenerating })

	s.Close()
	close(gen.release)
	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
	if got := len(s.Questions()); got != 0 {
		t.Fatalf("late result applied after close: %d questions", got)
	}
}

func TestCloseStopsClock(t *testing.T) {
	s := NewSession(testConfig(600), Source{}, nil, nil)
	if err := s.Start(threeQuestions()); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.mu.Lock()
	c := s.clk
	s.mu.Unlock()
	s.Close()
	select {
	case <-c.stop:
	default:
		t.Fatalf("clock still running after Close")
	}
	s.Close() // idempotent
}

func TestRemainingSecondsMonotonic(t *testing.T) {
	s := NewSession(testConfig(10), Source{}, nil, nil)
	defer s.Close()
	if err := s.Start(threeQuestions()); err != nil {
		t.Fatalf("start: %v", err)
	}
	prev := s.RemainingSeconds()
	for i := 0; i < 9; i++ {
		tickOnce(t, s)
		cur := s.RemainingSeconds()
		if cur > prev {
			t.Fatalf("remaining increased: %d -> %d", prev, cur)
		}
		prev = cur
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}

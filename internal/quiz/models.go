package quiz

import "time"

// Unanswered is the sentinel stored in an answer slot the user has not
// filled yet.
const Unanswered = -1

// Question is a single multiple-choice question as issued by the
// generation collaborator. Immutable once issued.
type Question struct {
	ID           string   `json:"id"`
	Prompt       string   `json:"prompt"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correct_index"`
}

// Source is the lecture material a session generates its questions from.
type Source struct {
	LectureID string `json:"lecture_id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
}

// Attempt is one completed or timed-out grading of a question set.
// Created exactly once per transition into StateGraded; immutable.
type Attempt struct {
	ID             string    `json:"id"`
	Answers        []int     `json:"answers"`
	CorrectCount   int       `json:"correct_count"`
	TotalQuestions int       `json:"total_questions"`
	Score          float64   `json:"score"`
	LetterGrade    string    `json:"letter_grade"`
	Passed         bool      `json:"passed"`
	Forced         bool      `json:"forced"` // graded by timeout auto-submit
	Timestamp      time.Time `json:"timestamp"`
}

// State is the session lifecycle state.
type State int

const (
	StateNoQuiz State = iota
	StateGenerating
	StateActive
	StateSubmitting
	StateGraded
)

func (s State) String() string {
	switch s {
	case StateNoQuiz:
		return "no_quiz"
	case StateGenerating:
		return "generating"
	case StateActive:
		return "active"
	case StateSubmitting:
		return "submitting"
	case StateGraded:
		return "graded"
	default:
		return "unknown"
	}
}

// Config holds per-session tunables supplied by the hosting course.
type Config struct {
	// QuizSeconds is the countdown ceiling every (re)start resets to.
	QuizSeconds int
	// PassThreshold is the course-configured pass bar (0..1). The
	// effective bar is floored at 0.8 regardless; see grading package.
	PassThreshold float64
	// QuestionCount is how many questions to request from the generator.
	QuestionCount int
	// TickInterval is the real duration of one logical second. Tests
	// shrink or enlarge it; zero means one second.
	TickInterval time.Duration
}

const (
	DefaultQuizSeconds   = 600
	DefaultQuestionCount = 5
)

func (c Config) withDefaults() Config {
	if c.QuizSeconds <= 0 {
		c.QuizSeconds = DefaultQuizSeconds
	}
	if c.QuestionCount <= 0 {
		c.QuestionCount = DefaultQuestionCount
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	return c
}

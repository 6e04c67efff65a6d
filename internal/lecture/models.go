package lecture

import "github.com/lumalearn/assess/internal/quiz"

// Lecture is a unit of course content. Its text is the source the
// question-generation workflow works from; the most recently generated
// question set is cached alongside it.
type Lecture struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Content       string          `json:"content"`
	Questions     []quiz.Question `json:"questions,omitempty"`
	PassThreshold float64         `json:"pass_threshold"`
	CreatedAt     int64           `json:"created_at,omitempty"`
}

// Summary is the list-view shape (no content body, no questions).
type Summary struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	PassThreshold float64 `json:"pass_threshold"`
	CreatedAt     int64   `json:"created_at"`
}

// StoredAttempt is a graded attempt as persisted by the host, annotated
// with who took it and for which lecture.
type StoredAttempt struct {
	quiz.Attempt
	LectureID string `json:"lecture_id"`
	UserID    string `json:"user_id"`
}

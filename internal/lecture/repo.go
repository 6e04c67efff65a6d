package lecture

import (
	"context"

	"github.com/lumalearn/assess/internal/quiz"
)

type ListOpts struct {
	Q      string
	Limit  int
	Offset int
}

type AttemptListOpts struct {
	LectureID string
	UserID    string
	Limit     int
}

type Store interface {
	Put(ctx context.Context, l Lecture) error
	Get(ctx context.Context, id string) (Lecture, error)
	List(ctx context.Context, opts ListOpts) ([]Summary, error)

	// SaveQuestions caches the latest generated question set so a
	// reopened lecture can offer a quiz without regenerating.
	SaveQuestions(ctx context.Context, id string, qs []quiz.Question) error

	SaveAttempt(ctx context.Context, a StoredAttempt) error
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]StoredAttempt, error)
}

package quiz

// Events is the outbound notification surface of a session. Hosts embed
// NopEvents and override the methods they care about. Callbacks are
// invoked outside the session lock, in the order the transitions they
// describe occurred.
type Events interface {
	// QuizCompleted fires exactly once per terminal transition into
	// StateGraded, whether submitted manually or forced by timeout.
	QuizCompleted(passed bool, attempt Attempt)

	// GenerationStateChanged fires on entry (true) and exit (false) of
	// StateGenerating.
	GenerationStateChanged(generating bool)

	// QuizStateChanged fires on entry (true) and exit (false) of
	// StateActive. Hosts use it to block unrelated navigation while a
	// timed quiz is live.
	QuizStateChanged(active bool)

	// CancelRequested fires when the user abandons an active quiz.
	CancelRequested()

	// TimeWarning is an advisory fired at fixed remaining-time marks,
	// at most once per mark per Active period.
	TimeWarning(secondsLeft int)
}

// NopEvents ignores every notification.
type NopEvents struct{}

func (NopEvents) QuizCompleted(bool, Attempt)    {}
func (NopEvents) GenerationStateChanged(bool)    {}
func (NopEvents) QuizStateChanged(bool)          {}
func (NopEvents) CancelRequested()               {}
func (NopEvents) TimeWarning(int)                {}

package quiz

import "context"

// Generator is the external question-generation collaborator. It may
// fail with a network or service error and has no latency bound.
type Generator interface {
	GenerateQuestions(ctx context.Context, src Source, count int) ([]Question, error)
}

// gate guarantees at most one in-flight generation request per session.
// A second request while one is pending is rejected, not queued, which
// keeps a double-click or an automatic retry from racing a manual retry
// into duplicate question sets. Methods are called under the session
// lock.
type gate struct {
	inFlight bool
}

func (g *gate) begin() error {
	if g.inFlight {
		return ErrGenerationInFlight
	}
	g.inFlight = true
	return nil
}

func (g *gate) end() {
	g.inFlight = false
}

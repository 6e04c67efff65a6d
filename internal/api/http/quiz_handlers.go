package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	auth "github.com/lumalearn/assess/internal/auth/middleware"
	"github.com/lumalearn/assess/internal/eventlog"
	"github.com/lumalearn/assess/internal/lecture"
	"github.com/lumalearn/assess/internal/quiz"
)

// sanitizedSnapshot is a session snapshot with correct indices removed,
// safe to serve to the quiz taker.
type sanitizedSnapshot struct {
	State            string          `json:"state"`
	RemainingSeconds int             `json:"remaining_seconds"`
	Questions        []quiz.Question `json:"questions"`
	Answers          []int           `json:"answers"`
	Attempts         []quiz.Attempt  `json:"attempts"`
}

func sanitize(snap quiz.Snapshot) sanitizedSnapshot {
	qs := make([]quiz.Question, len(snap.Questions))
	for i, q := range snap.Questions {
		q.CorrectIndex = -1
		qs[i] = q
	}
	return sanitizedSnapshot{
		State:            snap.State.String(),
		RemainingSeconds: snap.RemainingSeconds,
		Questions:        qs,
		Answers:          snap.Answers,
		Attempts:         snap.Attempts,
	}
}

func writeQuizError(w http.ResponseWriter, err error) {
	var vErr *quiz.ValidationError
	var gErr *quiz.GenerationError
	switch {
	case errors.Is(err, lecture.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &vErr):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &gErr):
		http.Error(w, err.Error(), http.StatusBadGateway)
	case errors.Is(err, quiz.ErrGenerationInFlight),
		errors.Is(err, quiz.ErrInvalidState),
		errors.Is(err, quiz.ErrClosed):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// StartQuizHandler creates (or reuses) the caller's session for the
// lecture and requests a question set. With {"reuse_cached": true} and
// a previously generated set on the lecture, the round starts without
// calling the generation workflow.
func StartQuizHandler(h *QuizHost) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lectureID := chi.URLParam(r, "lectureID")
		userID := auth.SubjectFromContext(r.Context())

		var req struct {
			ReuseCached bool `json:"reuse_cached"`
		}
		if r.Body != nil && r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "bad json", http.StatusBadRequest)
				return
			}
		}

		sess, lec, err := h.getOrCreate(r.Context(), userID, lectureID)
		if err != nil {
			writeQuizError(w, err)
			return
		}

		if req.ReuseCached && len(lec.Questions) > 0 {
			err = sess.Start(lec.Questions)
		} else {
			err = sess.RequestMoreQuestions(r.Context())
			if err == nil {
				// Cache the fresh set so a reopened lecture can reuse it.
				if saveErr := h.store.SaveQuestions(r.Context(), lectureID, sess.Questions()); saveErr != nil {
					writeQuizError(w, saveErr)
					return
				}
			}
		}
		if err != nil {
			var gErr *quiz.GenerationError
			if errors.As(err, &gErr) {
				h.logEvent(eventlog.TypeGenerationFailed, userID+"|"+lectureID, map[string]string{
					"lecture_id": lectureID, "user_id": userID, "error": gErr.Error(),
				})
			}
			writeQuizError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(sanitize(sess.Snapshot()))
	}
}

func GetQuizHandler(h *QuizHost) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lectureID := chi.URLParam(r, "lectureID")
		userID := auth.SubjectFromContext(r.Context())
		sess := h.session(userID, lectureID)
		if sess == nil {
			http.Error(w, "no quiz session", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(sanitize(sess.Snapshot()))
	}
}

// AnswerHandler records one choice. Malformed indices are a 400; an
// answer that arrives after the round left Active (e.g. the countdown
// expired mid-flight) is a 409, not a crash: the engine treats
// out-of-state answers as caller defects, so the host validates and
// absorbs the unavoidable race.
func AnswerHandler(h *QuizHost) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lectureID := chi.URLParam(r, "lectureID")
		userID := auth.SubjectFromContext(r.Context())
		sess := h.session(userID, lectureID)
		if sess == nil {
			http.Error(w, "no quiz session", http.StatusNotFound)
			return
		}
		var req struct {
			Question int `json:"question"`
			Choice   int `json:"choice"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		snap := sess.Snapshot()
		if req.Question < 0 || req.Question >= len(snap.Questions) {
			http.Error(w, "question index out of range", http.StatusBadRequest)
			return
		}
		if req.Choice < 0 || req.Choice >= len(snap.Questions[req.Question].Choices) {
			http.Error(w, "choice index out of range", http.StatusBadRequest)
			return
		}
		if !tryAnswer(sess, req.Question, req.Choice) {
			http.Error(w, "quiz is not active", http.StatusConflict)
			return
		}
		_ = json.NewEncoder(w).Encode(sanitize(sess.Snapshot()))
	}
}

// tryAnswer absorbs the panic the engine raises when the round left
// Active between the handler's validation and the call.
func tryAnswer(sess *quiz.Session, question, choice int) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	sess.Answer(question, choice)
	return true
}

func SubmitQuizHandler(h *QuizHost) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lectureID := chi.URLParam(r, "lectureID")
		userID := auth.SubjectFromContext(r.Context())
		sess := h.session(userID, lectureID)
		if sess == nil {
			http.Error(w, "no quiz session", http.StatusNotFound)
			return
		}
		att, err := sess.Submit()
		if err != nil {
			writeQuizError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(att)
	}
}

func RetakeQuizHandler(h *QuizHost) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lectureID := chi.URLParam(r, "lectureID")
		userID := auth.SubjectFromContext(r.Context())
		sess := h.session(userID, lectureID)
		if sess == nil {
			http.Error(w, "no quiz session", http.StatusNotFound)
			return
		}
		if err := sess.Retake(); err != nil {
			writeQuizError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(sanitize(sess.Snapshot()))
	}
}

// CancelQuizHandler abandons an active round and drops the session.
func CancelQuizHandler(h *QuizHost) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lectureID := chi.URLParam(r, "lectureID")
		userID := auth.SubjectFromContext(r.Context())
		sess := h.session(userID, lectureID)
		if sess == nil {
			http.Error(w, "no quiz session", http.StatusNotFound)
			return
		}
		if err := sess.Cancel(); err != nil {
			writeQuizError(w, err)
			return
		}
		h.drop(userID, lectureID)
		w.WriteHeader(http.StatusNoContent)
	}
}

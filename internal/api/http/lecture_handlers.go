package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	auth "github.com/lumalearn/assess/internal/auth/middleware"
	"github.com/lumalearn/assess/internal/lecture"
	"github.com/lumalearn/assess/internal/rbac"
)

func UploadLectureHandler(store lecture.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID            string  `json:"id"`
			Title         string  `json:"title"`
			Content       string  `json:"content"`
			PassThreshold float64 `json:"pass_threshold"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Content) == "" {
			http.Error(w, "title and content required", http.StatusBadRequest)
			return
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}
		l := lecture.Lecture{
			ID:            req.ID,
			Title:         req.Title,
			Content:       req.Content,
			PassThreshold: req.PassThreshold,
		}
		if err := store.Put(r.Context(), l); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(l)
	}
}

// GetLectureHandler serves the lecture body. Cached questions are
// stripped of their correct indices for non-teachers (parity with the
// quiz snapshot).
func GetLectureHandler(store lecture.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "lectureID")
		l, err := store.Get(r.Context(), id)
		if err != nil {
			writeQuizError(w, err)
			return
		}
		role := rbac.RoleFromContext(r.Context())
		if role != "teacher" && role != "admin" {
			for i := range l.Questions {
				l.Questions[i].CorrectIndex = -1
			}
		}
		_ = json.NewEncoder(w).Encode(l)
	}
}

func ListLecturesHandler(store lecture.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		out, err := store.List(r.Context(), lecture.ListOpts{
			Q:      r.URL.Query().Get("q"),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if out == nil {
			out = []lecture.Summary{}
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

// ListAttemptsHandler returns the caller's attempt history for a
// lecture, oldest first. Roles with attempt:view-all may pass ?all=1.
func ListAttemptsHandler(store lecture.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lectureID := chi.URLParam(r, "lectureID")
		userID := auth.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())

		opts := lecture.AttemptListOpts{LectureID: lectureID, UserID: userID}
		if r.URL.Query().Get("all") == "1" {
			if !rbac.NewChecker(nil).Has(role, "attempt:view-all") {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			opts.UserID = ""
		}
		out, err := store.ListAttempts(r.Context(), opts)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if out == nil {
			out = []lecture.StoredAttempt{}
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

package lecture

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/lumalearn/assess/internal/quiz"
)

var ErrNotFound = errors.New("lecture not found")

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) Put(ctx context.Context, l Lecture) error {
	qj, err := json.Marshal(l.Questions)
	if err != nil {
		return err
	}
	if l.Questions == nil {
		qj = []byte("[]")
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO lectures (id,title,content,questions_json,pass_threshold,created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, content=EXCLUDED.content, pass_threshold=EXCLUDED.pass_threshold`,
		l.ID, l.Title, l.Content, string(qj), l.PassThreshold, time.Now().Unix())
	return err
}

func (s *SQLStore) Get(ctx context.Context, id string) (Lecture, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,title,content,questions_json,pass_threshold,created_at FROM lectures WHERE id=$1`, id)
	var l Lecture
	var qjson string
	if err := row.Scan(&l.ID, &l.Title, &l.Content, &qjson, &l.PassThreshold, &l.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Lecture{}, ErrNotFound
		}
		return Lecture{}, err
	}
	if err := json.Unmarshal([]byte(qjson), &l.Questions); err != nil {
		return Lecture{}, err
	}
	return l, nil
}

func (s *SQLStore) List(ctx context.Context, opts ListOpts) ([]Summary, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := `SELECT id,title,pass_threshold,created_at FROM lectures`
	args := []any{}
	if opts.Q != "" {
		q += ` WHERE title LIKE $1`
		args = append(args, "%"+opts.Q+"%")
	}
	q += ` ORDER BY created_at DESC LIMIT ` + strconv.Itoa(limit) + ` OFFSET ` + strconv.Itoa(opts.Offset)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var sm Summary
		if err := rows.Scan(&sm.ID, &sm.Title, &sm.PassThreshold, &sm.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

func (s *SQLStore) SaveQuestions(ctx context.Context, id string, qs []quiz.Question) error {
	qj, err := json.Marshal(qs)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE lectures SET questions_json=$1 WHERE id=$2`, string(qj), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) SaveAttempt(ctx context.Context, a StoredAttempt) error {
	aj, err := json.Marshal(a.Answers)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO attempts
		(id,lecture_id,user_id,answers_json,correct_count,total_questions,score,letter_grade,passed,forced,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		a.ID, a.LectureID, a.UserID, string(aj), a.CorrectCount, a.TotalQuestions,
		a.Score, a.LetterGrade, a.Passed, a.Forced, a.Timestamp.Unix())
	return err
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]StoredAttempt, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT id,lecture_id,user_id,answers_json,correct_count,total_questions,score,letter_grade,passed,forced,created_at
		FROM attempts WHERE 1=1`
	args := []any{}
	n := 0
	if opts.LectureID != "" {
		n++
		q += ` AND lecture_id=$` + strconv.Itoa(n)
		args = append(args, opts.LectureID)
	}
	if opts.UserID != "" {
		n++
		q += ` AND user_id=$` + strconv.Itoa(n)
		args = append(args, opts.UserID)
	}
	q += ` ORDER BY created_at ASC LIMIT ` + strconv.Itoa(limit)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StoredAttempt
	for rows.Next() {
		var a StoredAttempt
		var ajson string
		var createdAt int64
		if err := rows.Scan(&a.ID, &a.LectureID, &a.UserID, &ajson, &a.CorrectCount,
			&a.TotalQuestions, &a.Score, &a.LetterGrade, &a.Passed, &a.Forced, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(ajson), &a.Answers); err != nil {
			return nil, err
		}
		a.Timestamp = time.Unix(createdAt, 0).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

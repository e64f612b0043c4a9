package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/russianmaster/russianmaster-lms/internal/cefr"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

// PutTest upserts the test row and replaces its questions in one transaction.
func (s *SQLStore) PutTest(ctx context.Context, t Test) error {
	if t.CreatedAt == 0 {
		t.CreatedAt = time.Now().Unix()
	}
	data := string(t.QuestionsData)
	if data == "" {
		data = "[]"
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO tests (id,title,description,duration,audio_url,questions_data,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, description=EXCLUDED.description,
			duration=EXCLUDED.duration, audio_url=EXCLUDED.audio_url, questions_data=EXCLUDED.questions_data`,
		t.ID, t.Title, t.Description, t.Duration, t.AudioURL, data, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert test: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE test_id=$1`, t.ID); err != nil {
		return fmt.Errorf("clear questions: %w", err)
	}
	for _, q := range t.Questions {
		var opts sql.NullString
		if len(q.OptionsJSON) > 0 {
			opts = sql.NullString{String: string(q.OptionsJSON), Valid: true}
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO questions
			(id,test_id,position,content,type,difficulty_level,score_weight,options_json,correct_key)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			q.ID, t.ID, q.Position, q.Content, q.Type, q.DifficultyLevel.String(), q.ScoreWeight, opts, q.CorrectKey)
		if err != nil {
			return fmt.Errorf("insert question %d: %w", q.Position, err)
		}
	}
	return tx.Commit()
}

func (s *SQLStore) GetTest(ctx context.Context, id string) (Test, error) {
	t, err := s.GetTestAdmin(ctx, id)
	if err != nil {
		return Test{}, err
	}
	return StripAnswers(t), nil
}

func (s *SQLStore) GetTestAdmin(ctx context.Context, id string) (Test, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,title,description,duration,audio_url,questions_data,created_at FROM tests WHERE id=$1`, id)
	var t Test
	var data string
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Duration, &t.AudioURL, &data, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Test{}, ErrNotFound
		}
		return Test{}, err
	}
	t.QuestionsData = json.RawMessage(data)

	rows, err := s.db.QueryContext(ctx, `SELECT id,test_id,position,content,type,difficulty_level,score_weight,options_json,correct_key
		FROM questions WHERE test_id=$1 ORDER BY position`, id)
	if err != nil {
		return Test{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var q Question
		var level string
		var opts sql.NullString
		if err := rows.Scan(&q.ID, &q.TestID, &q.Position, &q.Content, &q.Type, &level, &q.ScoreWeight, &opts, &q.CorrectKey); err != nil {
			return Test{}, err
		}
		q.DifficultyLevel = cefr.Parse(level)
		if opts.Valid && opts.String != "" {
			q.OptionsJSON = json.RawMessage(opts.String)
		}
		t.Questions = append(t.Questions, q)
	}
	return t, rows.Err()
}

func (s *SQLStore) ListTests(ctx context.Context, opts ListOpts) ([]TestSummary, error) {
	limit, offset := clampList(opts.Limit, opts.Offset)
	q := `SELECT t.id, t.title, t.description, t.duration, t.created_at,
		(SELECT COUNT(*) FROM questions qq WHERE qq.test_id = t.id)
		FROM tests t`
	args := []any{}
	if f := strings.TrimSpace(opts.Q); f != "" {
		q += ` WHERE LOWER(t.title) LIKE $1`
		args = append(args, "%"+strings.ToLower(f)+"%")
	}
	q += fmt.Sprintf(` ORDER BY t.created_at DESC, t.id LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []TestSummary{}
	for rows.Next() {
		var ts TestSummary
		if err := rows.Scan(&ts.ID, &ts.Title, &ts.Description, &ts.Duration, &ts.CreatedAt, &ts.QuestionCount); err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

// DeleteTest removes children explicitly so it also works where foreign key
// enforcement is off.
func (s *SQLStore) DeleteTest(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE test_id=$1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE test_id=$1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM tests WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *SQLStore) SaveResult(ctx context.Context, r Result) error {
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().Unix()
	}
	answers, err := json.Marshal(r.UserAnswers)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO results
		(id,test_id,user_id,score,total_weighted_score,percentage,detected_level,correct_count,user_answers,admin_feedback,is_reviewed,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		r.ID, r.TestID, r.UserID, r.Score, r.MaxScore, r.Percentage, r.DetectedLevel.String(), r.Correct, string(answers),
		r.Feedback, r.Reviewed, r.CreatedAt)
	return err
}

const resultColumns = `id,test_id,user_id,score,total_weighted_score,percentage,detected_level,correct_count,user_answers,admin_feedback,is_reviewed,created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResult(row rowScanner) (Result, error) {
	var r Result
	var level, answers string
	if err := row.Scan(&r.ID, &r.TestID, &r.UserID, &r.Score, &r.MaxScore, &r.Percentage, &level, &r.Correct, &answers,
		&r.Feedback, &r.Reviewed, &r.CreatedAt); err != nil {
		return Result{}, err
	}
	r.DetectedLevel = cefr.Parse(level)
	if err := json.Unmarshal([]byte(answers), &r.UserAnswers); err != nil {
		r.UserAnswers = map[string]any{}
	}
	return r, nil
}

func (s *SQLStore) GetResult(ctx context.Context, id string) (Result, error) {
	r, err := scanResult(s.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM results WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, ErrNotFound
	}
	return r, err
}

func (s *SQLStore) SetFeedback(ctx context.Context, resultID, feedback string) (Result, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE results SET admin_feedback=$1, is_reviewed=$2 WHERE id=$3`, feedback, true, resultID)
	if err != nil {
		return Result{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Result{}, ErrNotFound
	}
	return s.GetResult(ctx, resultID)
}

func (s *SQLStore) ListResults(ctx context.Context, opts ResultListOpts) ([]Result, error) {
	limit, offset := clampList(opts.Limit, opts.Offset)
	var (
		where []string
		args  []any
	)
	if opts.TestID != "" {
		args = append(args, opts.TestID)
		where = append(where, fmt.Sprintf("test_id = $%d", len(args)))
	}
	if opts.UserID != "" {
		args = append(args, opts.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	q := `SELECT ` + resultColumns + ` FROM results`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT %d OFFSET %d", limit, offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Result{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

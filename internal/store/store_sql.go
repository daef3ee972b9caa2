package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/segeval/internal/scoring"
)

var ErrRunNotFound = errors.New("run not found")

// Run is one persisted evaluation.
type Run struct {
	ID             string
	CreatedAt      time.Time
	OptimalSource  string
	StudentSource  string
	Params         scoring.MatchParams
	ReferenceCount int
	Aggregate      float64
	Candidates     []scoring.CandidateScore
}

// NewRun captures an evaluation result for storage.
func NewRun(result *scoring.EvaluationResult, params scoring.MatchParams, optimalSource, studentSource string, referenceCount int) Run {
	return Run{
		CreatedAt:      time.Now(),
		OptimalSource:  optimalSource,
		StudentSource:  studentSource,
		Params:         params,
		ReferenceCount: referenceCount,
		Aggregate:      result.Aggregate,
		Candidates:     result.Candidates,
	}
}

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// SaveRun stores the run and its candidate scores in one transaction and
// returns the run id.
func (s *SQLStore) SaveRun(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs (id,created_at,optimal_source,student_source,
		color_value_slack_range,black_value_threshold,pixel_range_check,check_eight_surrounding_pixels,
		reference_count,aggregate)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		run.ID, run.CreatedAt.UnixMilli(), run.OptimalSource, run.StudentSource,
		run.Params.ColorValueSlackRange, run.Params.BlackValueThreshold, run.Params.PixelRangeCheck,
		run.Params.CheckEightSurroundingPixels, run.ReferenceCount, run.Aggregate)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, c := range run.Candidates {
		_, err = tx.ExecContext(ctx, `INSERT INTO candidate_scores (run_id,position,candidate,score,
			best_reference,best_reference_name,reference_to_candidate,candidate_to_reference)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			run.ID, c.Position, c.Candidate, c.Score,
			c.BestReference, c.BestReferenceName, c.ReferenceToCandidate, c.CandidateToReference)
		if err != nil {
			return "", fmt.Errorf("insert candidate %s: %w", c.Candidate, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	log.Debug().Str("run_id", run.ID).Int("candidates", len(run.Candidates)).Msg("run saved")
	return run.ID, nil
}

func (s *SQLStore) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,created_at,optimal_source,student_source,
		color_value_slack_range,black_value_threshold,pixel_range_check,check_eight_surrounding_pixels,
		reference_count,aggregate FROM runs WHERE id=$1`, id)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrRunNotFound
		}
		return Run{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT position,candidate,score,best_reference,best_reference_name,
		reference_to_candidate,candidate_to_reference
		FROM candidate_scores WHERE run_id=$1 ORDER BY position`, id)
	if err != nil {
		return Run{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var c scoring.CandidateScore
		if err := rows.Scan(&c.Position, &c.Candidate, &c.Score, &c.BestReference, &c.BestReferenceName,
			&c.ReferenceToCandidate, &c.CandidateToReference); err != nil {
			return Run{}, err
		}
		run.Candidates = append(run.Candidates, c)
	}
	return run, rows.Err()
}

// ListRuns returns the most recent runs without their candidate rows.
func (s *SQLStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id,created_at,optimal_source,student_source,
		color_value_slack_range,black_value_threshold,pixel_range_check,check_eight_surrounding_pixels,
		reference_count,aggregate FROM runs ORDER BY created_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var createdAt int64
	if err := row.Scan(&run.ID, &createdAt, &run.OptimalSource, &run.StudentSource,
		&run.Params.ColorValueSlackRange, &run.Params.BlackValueThreshold, &run.Params.PixelRangeCheck,
		&run.Params.CheckEightSurroundingPixels, &run.ReferenceCount, &run.Aggregate); err != nil {
		return Run{}, err
	}
	run.CreatedAt = time.UnixMilli(createdAt)
	return run, nil
}

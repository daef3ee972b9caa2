package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorplex-labs/segeval/internal/scoring"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "runs.db")
	db, err := Open(context.Background(), DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleRun(createdAt time.Time) Run {
	return Run{
		CreatedAt:      createdAt,
		OptimalSource:  "Optimal_Segmentation_Files",
		StudentSource:  "Student_Segmentation_Files",
		Params:         scoring.DefaultMatchParams(),
		ReferenceCount: 2,
		Aggregate:      0.65,
		Candidates: []scoring.CandidateScore{
			{Position: 0, Candidate: "s1.png", Score: 0.4, BestReference: 1, BestReferenceName: "o2.png", ReferenceToCandidate: 0.4, CandidateToReference: 0.7},
			{Position: 1, Candidate: "s2.png", Score: 0.9, BestReference: 0, BestReferenceName: "o1.png", ReferenceToCandidate: 0.95, CandidateToReference: 0.9},
		},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := NewSQLStore(openTestDB(t))
	ctx := context.Background()

	run := sampleRun(time.UnixMilli(1_700_000_000_000))
	id, err := s.SaveRun(ctx, run)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := s.GetRun(ctx, id)
	require.NoError(t, err)

	run.ID = id
	assert.Equal(t, run.ID, got.ID)
	assert.True(t, run.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, run.Params, got.Params)
	assert.Equal(t, run.Aggregate, got.Aggregate)
	assert.Equal(t, run.ReferenceCount, got.ReferenceCount)
	assert.Equal(t, run.Candidates, got.Candidates)
}

func TestGetRunNotFound(t *testing.T) {
	s := NewSQLStore(openTestDB(t))
	_, err := s.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := NewSQLStore(openTestDB(t))
	ctx := context.Background()

	older, err := s.SaveRun(ctx, sampleRun(time.UnixMilli(1_000)))
	require.NoError(t, err)
	newer, err := s.SaveRun(ctx, sampleRun(time.UnixMilli(2_000)))
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer, runs[0].ID)
	assert.Equal(t, older, runs[1].ID)
	assert.Empty(t, runs[0].Candidates)
}

func TestNewRunFromResult(t *testing.T) {
	result := &scoring.EvaluationResult{
		Candidates: []scoring.CandidateScore{{Candidate: "a", Score: 0.3, BestReference: -1}},
		Aggregate:  0.3,
	}
	run := NewRun(result, scoring.DefaultMatchParams(), "opt", "stud", 0)
	assert.Equal(t, "opt", run.OptimalSource)
	assert.Equal(t, 0.3, run.Aggregate)
	assert.Len(t, run.Candidates, 1)
	assert.False(t, run.CreatedAt.IsZero())
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Driver("oracle"), "")
	assert.Error(t, err)
}

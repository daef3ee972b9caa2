package scoring

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// BatchEvaluator grades every candidate against the whole reference set.
type BatchEvaluator struct {
	Scorer  *PairScorer
	Workers int
}

type BatchEvaluatorOption func(*BatchEvaluator)

// WithWorkers bounds how many candidates are scored concurrently. Values
// below 1 fall back to runtime.NumCPU().
func WithWorkers(workers int) BatchEvaluatorOption {
	return func(e *BatchEvaluator) {
		e.Workers = workers
	}
}

func NewBatchEvaluator(scorer *PairScorer, opts ...BatchEvaluatorOption) *BatchEvaluator {
	if scorer == nil {
		scorer = &PairScorer{Params: DefaultMatchParams()}
	}

	e := &BatchEvaluator{
		Scorer:  scorer,
		Workers: runtime.NumCPU(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.Workers < 1 {
		e.Workers = runtime.NumCPU()
	}

	return e
}

// Evaluate scores each candidate as the best min(score(ref, cand), score(cand, ref))
// over all references and averages the candidate scores. A shape mismatch
// between any candidate and reference fails the whole run.
func (e *BatchEvaluator) Evaluate(ctx context.Context, candidates, references []IntensityImage) (*EvaluationResult, error) {
	startTime := time.Now()

	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	result := &EvaluationResult{
		Candidates: make([]CandidateScore, len(candidates)),
	}
	for i, candidate := range candidates {
		result.Candidates[i] = CandidateScore{
			Position:      i,
			Candidate:     candidate.Name,
			BestReference: -1,
		}
	}

	if len(references) == 0 {
		log.Warn().Int("candidates", len(candidates)).Msg("No reference images, every candidate scores 0")
		return result, nil
	}

	refToCand, candToRef, err := e.scoreAllPairs(ctx, candidates, references)
	if err != nil {
		return nil, err
	}

	rows, cols := refToCand.Dims()
	pairScores := mat.NewDense(rows, cols, nil)
	pairScores.Apply(func(i, j int, _ float64) float64 {
		return math.Min(refToCand.At(i, j), candToRef.At(i, j))
	}, pairScores)
	result.PairScores = pairScores

	bestScores, bestRefs := BestPerCandidate(pairScores)
	for i := range result.Candidates {
		c := &result.Candidates[i]
		c.Score = bestScores[i]
		c.BestReference = bestRefs[i]
		if c.BestReference >= 0 {
			c.BestReferenceName = references[c.BestReference].Name
			c.ReferenceToCandidate = refToCand.At(i, c.BestReference)
			c.CandidateToReference = candToRef.At(i, c.BestReference)
		}
		log.Debug().
			Str("candidate", c.Candidate).
			Int("best_reference", c.BestReference).
			Float64("score", c.Score).
			Msgf("candidate %s scored %f", c.Candidate, c.Score)
	}

	result.Aggregate, err = MeanScore(bestScores)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("candidates", len(candidates)).
		Int("references", len(references)).
		Float64("aggregate", result.Aggregate).
		Dur("elapsed", time.Since(startTime)).
		Msg("Evaluated candidates")

	return result, nil
}

// scoreAllPairs fills candidates x references matrices with both directional
// scores. Each worker owns one row.
func (e *BatchEvaluator) scoreAllPairs(
	ctx context.Context,
	candidates, references []IntensityImage,
) (refToCand, candToRef *mat.Dense, err error) {
	refToCand = mat.NewDense(len(candidates), len(references), nil)
	candToRef = mat.NewDense(len(candidates), len(references), nil)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.Workers)

	for i := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			candidate := candidates[i]
			for j, reference := range references {
				s1, err := e.Scorer.Score(reference, candidate)
				if err != nil {
					return fmt.Errorf("scoring reference %s against candidate %s: %w", reference.Name, candidate.Name, err)
				}
				s2, err := e.Scorer.Score(candidate, reference)
				if err != nil {
					return fmt.Errorf("scoring candidate %s against reference %s: %w", candidate.Name, reference.Name, err)
				}
				refToCand.Set(i, j, s1)
				candToRef.Set(i, j, s2)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return refToCand, candToRef, nil
}

// BestPerCandidate reduces each row of a candidates x references matrix to its
// maximum, starting from a floor of 0. The returned index is the first
// reference reaching that maximum, or -1 when no reference scored above 0.
func BestPerCandidate(pairScores *mat.Dense) (scores []float64, best []int) {
	rows, _ := pairScores.Dims()
	scores = make([]float64, rows)
	best = make([]int, rows)

	for rowIdx := range rows {
		row := mat.Row(nil, rowIdx, pairScores)
		best[rowIdx] = -1
		if len(row) == 0 {
			continue
		}
		idx := floats.MaxIdx(row)
		if row[idx] > 0 {
			scores[rowIdx] = row[idx]
			best[rowIdx] = idx
		}
	}

	return scores, best
}

// MeanScore averages candidate scores.
func MeanScore(scores []float64) (float64, error) {
	if len(scores) == 0 {
		return 0, ErrNoCandidates
	}
	return stat.Mean(scores, nil), nil
}

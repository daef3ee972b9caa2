package scoring

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// IntensityImage is a single-channel mask. Pixels holds one row per image
// row and one column per image column, each an integer intensity in 0..255.
type IntensityImage struct {
	Name   string
	Pixels *mat.Dense
}

// NewIntensityImage builds an image from row-major integer intensities.
func NewIntensityImage(name string, rows [][]int) (IntensityImage, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return IntensityImage{}, fmt.Errorf("%s: %w", name, ErrEmptyImage)
	}

	height, width := len(rows), len(rows[0])
	data := make([]float64, 0, height*width)
	for rowIdx, row := range rows {
		if len(row) != width {
			return IntensityImage{}, fmt.Errorf("%s: row %d has %d values, expected %d: %w",
				name, rowIdx, len(row), width, ErrRaggedRows)
		}
		for _, v := range row {
			data = append(data, float64(v))
		}
	}

	return IntensityImage{Name: name, Pixels: mat.NewDense(height, width, data)}, nil
}

// NewIntensityImageFromDense wraps an existing matrix. The matrix must not be
// mutated afterwards.
func NewIntensityImageFromDense(name string, pixels *mat.Dense) (IntensityImage, error) {
	if pixels == nil || pixels.IsEmpty() {
		return IntensityImage{}, fmt.Errorf("%s: %w", name, ErrEmptyImage)
	}
	return IntensityImage{Name: name, Pixels: pixels}, nil
}

// Dims returns height and width.
func (img IntensityImage) Dims() (height, width int) {
	return img.Pixels.Dims()
}

// MatchParams are the tolerances used by PairScorer.
type MatchParams struct {
	ColorValueSlackRange        int  `json:"color_value_slack_range"`
	BlackValueThreshold         int  `json:"black_value_threshold"`
	PixelRangeCheck             int  `json:"pixel_range_check"`
	CheckEightSurroundingPixels bool `json:"check_eight_surrounding_pixels"`
}

func (p MatchParams) Validate() error {
	if p.ColorValueSlackRange < 0 {
		return fmt.Errorf("color value slack range %d is negative: %w", p.ColorValueSlackRange, ErrInvalidParams)
	}
	if p.PixelRangeCheck < 0 {
		return fmt.Errorf("pixel range check %d is negative: %w", p.PixelRangeCheck, ErrInvalidParams)
	}
	return nil
}

type CandidateScore struct {
	Position  int     // index in the candidate set
	Candidate string  // candidate image name
	Score     float64 // best min(s1, s2) over all references

	BestReference     int // -1 when there are no references
	BestReferenceName string

	ReferenceToCandidate float64 // score(reference, candidate) for the best reference
	CandidateToReference float64 // score(candidate, reference) for the best reference
}

type EvaluationResult struct {
	Candidates []CandidateScore
	PairScores *mat.Dense // candidates x references, min of both directions; nil without references
	Aggregate  float64
}

// Scores returns the candidate scores in candidate order.
func (r *EvaluationResult) Scores() []float64 {
	scores := make([]float64, len(r.Candidates))
	for i, c := range r.Candidates {
		scores[i] = c.Score
	}
	return scores
}

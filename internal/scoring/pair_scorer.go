package scoring

import (
	"iter"

	"github.com/rs/zerolog/log"
)

// PairScorer computes the directional similarity of two masks.
type PairScorer struct {
	Params MatchParams
}

type PairScorerOption func(*PairScorer)

func WithColorValueSlackRange(slack int) PairScorerOption {
	return func(s *PairScorer) {
		s.Params.ColorValueSlackRange = slack
	}
}

func WithBlackValueThreshold(threshold int) PairScorerOption {
	return func(s *PairScorer) {
		s.Params.BlackValueThreshold = threshold
	}
}

func WithPixelRangeCheck(radius int) PairScorerOption {
	return func(s *PairScorer) {
		s.Params.PixelRangeCheck = radius
	}
}

// WithNeighbourhoodSearch toggles the tolerant window search. When disabled
// only exact intensity matches count.
func WithNeighbourhoodSearch(enabled bool) PairScorerOption {
	return func(s *PairScorer) {
		s.Params.CheckEightSurroundingPixels = enabled
	}
}

func WithMatchParams(params MatchParams) PairScorerOption {
	return func(s *PairScorer) {
		s.Params = params
	}
}

func NewPairScorer(opts ...PairScorerOption) (*PairScorer, error) {
	s := &PairScorer{
		Params: DefaultMatchParams(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.Params.Validate(); err != nil {
		return nil, err
	}

	return s, nil
}

// Score returns the fraction of foreground pixels of a that are explained by b.
// A foreground pixel is matched when b holds the same intensity at the same
// position, or, with the neighbourhood search enabled, when any pixel of b within
// PixelRangeCheck rows and columns lies strictly within ColorValueSlackRange of it.
// An image without foreground pixels scores 0.
func (s *PairScorer) Score(a, b IntensityImage) (float64, error) {
	if err := checkSameShape(a, b); err != nil {
		return 0, err
	}

	height, width := a.Dims()
	threshold := float64(s.Params.BlackValueThreshold)

	var foreground, matched int
	for w := range width {
		for h := range height {
			colorA := a.Pixels.At(h, w)
			if colorA >= threshold {
				continue
			}
			foreground++

			if int(colorA) == int(b.Pixels.At(h, w)) {
				matched++
				continue
			}

			if s.Params.CheckEightSurroundingPixels && s.neighbourMatch(colorA, b, h, w) {
				matched++
			}
		}
	}

	score := float64(matched) / float64(max(foreground, 1))
	log.Trace().
		Str("first", a.Name).
		Str("second", b.Name).
		Int("foreground", foreground).
		Int("matched", matched).
		Float64("score", score).
		Msg("scored pair")

	return score, nil
}

func (s *PairScorer) neighbourMatch(colorA float64, b IntensityImage, h, w int) bool {
	height, width := b.Dims()
	slack := float64(s.Params.ColorValueSlackRange)

	for h2, w2 := range windowPositions(h, w, s.Params.PixelRangeCheck, height, width) {
		colorB := b.Pixels.At(h2, w2)
		if colorA-slack < colorB && colorB < colorA+slack {
			return true
		}
	}
	return false
}

// windowPositions yields the (row, col) positions of the square window of
// radius r centred on (h, w), clipped to the image. Columns are the outer
// loop and rows the inner one; the centre is included. Radii beyond the image
// size are clamped so h+r and w+r cannot overflow.
func windowPositions(h, w, r, height, width int) iter.Seq2[int, int] {
	r = min(r, max(height, width))
	return func(yield func(int, int) bool) {
		for w2 := max(w-r, 0); w2 <= min(w+r, width-1); w2++ {
			for h2 := max(h-r, 0); h2 <= min(h+r, height-1); h2++ {
				if !yield(h2, w2) {
					return
				}
			}
		}
	}
}

package scoring

import (
	"errors"
	"fmt"
)

var (
	ErrNoCandidates  = errors.New("no candidate images to evaluate")
	ErrInvalidParams = errors.New("invalid match params")
	ErrEmptyImage    = errors.New("image has no pixels")
	ErrRaggedRows    = errors.New("image rows have different lengths")
)

// ShapeMismatchError is returned when two compared images differ in size.
type ShapeMismatchError struct {
	First, Second             string
	FirstHeight, FirstWidth   int
	SecondHeight, SecondWidth int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch: %s is %dx%d but %s is %dx%d",
		e.First, e.FirstHeight, e.FirstWidth, e.Second, e.SecondHeight, e.SecondWidth)
}

func checkSameShape(a, b IntensityImage) error {
	ah, aw := a.Dims()
	bh, bw := b.Dims()
	if ah != bh || aw != bw {
		return &ShapeMismatchError{
			First: a.Name, FirstHeight: ah, FirstWidth: aw,
			Second: b.Name, SecondHeight: bh, SecondWidth: bw,
		}
	}
	return nil
}

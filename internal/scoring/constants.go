package scoring

const (
	DefaultColorValueSlackRange = 40
	DefaultBlackValueThreshold  = 100 // intensities below this are foreground
	DefaultPixelRangeCheck      = 4
)

func DefaultMatchParams() MatchParams {
	return MatchParams{
		ColorValueSlackRange:        DefaultColorValueSlackRange,
		BlackValueThreshold:         DefaultBlackValueThreshold,
		PixelRangeCheck:             DefaultPixelRangeCheck,
		CheckEightSurroundingPixels: true,
	}
}

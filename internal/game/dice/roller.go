package dice

import (
	"sort"

	"go.uber.org/zap"
)

// D20 is the single twenty-sided die used for initiative and death saves.
var D20 = MustParse("1d20")

// Roll evaluates expr with src.
//
// Precondition: expr must come from Parse; src must be non-nil.
// Postcondition: len(Dice) == Count, or KeepHighest when that is set.
func Roll(expr Expression, src Source) RollResult {
	rolled := make([]int, expr.Count)
	for i := range rolled {
		rolled[i] = src.Intn(expr.Sides) + 1
	}
	if expr.KeepHighest > 0 {
		sort.Sort(sort.Reverse(sort.IntSlice(rolled)))
		rolled = rolled[:expr.KeepHighest]
	}
	return RollResult{Expression: expr.Raw, Dice: rolled, Modifier: expr.Modifier}
}

// Roller rolls with a Source and logs every roll at debug level.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller. A nil logger disables logging.
//
// Precondition: src must be non-nil.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Roller{src: src, logger: logger}
}

// Source exposes the underlying randomness, e.g. for death-save rolls.
func (r *Roller) Source() Source { return r.src }

// Roll evaluates expr and logs the result.
func (r *Roller) Roll(expr Expression) RollResult {
	res := Roll(expr, r.src)
	r.logger.Debug("dice roll",
		zap.String("expression", res.Expression),
		zap.Ints("dice", res.Dice),
		zap.Int("modifier", res.Modifier),
		zap.Int("total", res.Total()),
	)
	return res
}

// RollExpr parses and rolls expr.
func (r *Roller) RollExpr(expr string) (RollResult, error) {
	e, err := Parse(expr)
	if err != nil {
		return RollResult{}, err
	}
	return r.Roll(e), nil
}
